package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"
)

// MergeRequestEvent is the subset of a GitLab MR webhook payload glmr reads
type MergeRequestEvent struct {
	ObjectKind string `json:"object_kind"`
	EventType  string `json:"event_type"`
	User       struct {
		Name     string `json:"name"`
		Username string `json:"username"`
	} `json:"user"`
	Project struct {
		ID                int    `json:"id"`
		PathWithNamespace string `json:"path_with_namespace"`
	} `json:"project"`
	ObjectAttributes struct {
		IID          int    `json:"iid"`
		AuthorID     int    `json:"author_id"`
		Title        string `json:"title"`
		Description  string `json:"description"`
		State        string `json:"state"`
		SourceBranch string `json:"source_branch"`
		TargetBranch string `json:"target_branch"`
		URL          string `json:"url"`
		Action       string `json:"action"`
	} `json:"object_attributes"`
	Reviewers []struct {
		Username string `json:"username"`
	} `json:"reviewers"`
}

// WebhookTestConfig holds the target and MR to simulate
type WebhookTestConfig struct {
	ServerURL string
	ProjectID int
	MRIID     int
	Action    string
}

// Usage: go run scripts/test_webhook.go <project-id> <mr-iid> [action] [server-url]
func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: go run scripts/test_webhook.go <project-id> <mr-iid> [action] [server-url]")
		os.Exit(1)
	}

	projectID, err := strconv.Atoi(os.Args[1])
	if err != nil {
		fmt.Printf("Invalid project ID: %v\n", err)
		os.Exit(1)
	}
	mrIID, err := strconv.Atoi(os.Args[2])
	if err != nil {
		fmt.Printf("Invalid MR IID: %v\n", err)
		os.Exit(1)
	}

	action := "open"
	if len(os.Args) > 3 {
		action = os.Args[3]
	}

	serverURL := "http://localhost:3000"
	if len(os.Args) > 4 {
		serverURL = os.Args[4]
	}

	config := WebhookTestConfig{
		ServerURL: serverURL,
		ProjectID: projectID,
		MRIID:     mrIID,
		Action:    action,
	}

	fmt.Printf("Sending %s event for project %d MR !%d to %s\n", config.Action, config.ProjectID, config.MRIID, config.ServerURL)

	if err := testWebhook(config); err != nil {
		fmt.Printf("Webhook test failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Webhook test completed successfully")
}

func testWebhook(config WebhookTestConfig) error {
	jsonPayload, err := json.Marshal(createWebhookPayload(config))
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	url := config.ServerURL + "/webhook"
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(jsonPayload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "GitLab/16.0.0")
	req.Header.Set("X-Gitlab-Event", "Merge Request Hook")
	req.Header.Set("X-Gitlab-Event-UUID", fmt.Sprintf("test-uuid-%d", time.Now().Unix()))

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	fmt.Printf("Response Status: %s\n", resp.Status)
	fmt.Printf("Response Body: %s\n", string(body))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func createWebhookPayload(config WebhookTestConfig) MergeRequestEvent {
	var event MergeRequestEvent
	event.ObjectKind = "merge_request"
	event.EventType = "merge_request"
	event.User.Name = "Test User"
	event.User.Username = "testuser"
	event.Project.ID = config.ProjectID

	attrs := &event.ObjectAttributes
	attrs.IID = config.MRIID
	attrs.AuthorID = 12345
	attrs.Title = fmt.Sprintf("Test MR %d - Webhook Test", config.MRIID)
	attrs.Description = "This is a test MR for webhook testing"
	attrs.State = "opened"
	attrs.SourceBranch = "test-glmr"
	attrs.TargetBranch = "main"
	attrs.Action = config.Action

	return event
}
