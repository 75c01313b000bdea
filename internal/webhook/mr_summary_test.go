package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redhat-data-and-ai/glmr/internal/config"
	apperrors "github.com/redhat-data-and-ai/glmr/internal/errors"
	"github.com/redhat-data-and-ai/glmr/internal/gitlab"
)

type fakeGitLab struct {
	mu       sync.Mutex
	mr       *gitlab.MergeRequest
	notes    []gitlab.Note
	getErr   error
	notesErr error
	addErr   error
	comments []string
}

func (f *fakeGitLab) GetMergeRequest(ctx context.Context, projectID, mrIID int) (*gitlab.MergeRequest, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.mr, nil
}

func (f *fakeGitLab) ListMRNotes(ctx context.Context, projectID, mrIID int) ([]gitlab.Note, error) {
	return f.notes, f.notesErr
}

func (f *fakeGitLab) AddMRComment(ctx context.Context, projectID, mrIID int, comment string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.comments = append(f.comments, comment)
	return nil
}

const mergeRequestEvent = `{
	"object_kind": "merge_request",
	"project": {"id": 42},
	"object_attributes": {
		"iid": 7,
		"title": "Add ingestion job",
		"description": "Loads the daily extract",
		"state": "opened",
		"url": "https://gitlab.example.com/data/ingest/-/merge_requests/7"
	},
	"reviewers": [{"username": "alice"}]
}`

func postWebhook(t *testing.T, client Client, body string) (int, map[string]interface{}) {
	t.Helper()
	app := createTestApp()
	app.Post("/webhook", NewMRSummaryHandler(client).HandleWebhook)

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode, decodeBody(t, resp.Body)
}

func newFakeGitLab() *fakeGitLab {
	return &fakeGitLab{
		mr: &gitlab.MergeRequest{IID: 7, Author: gitlab.User{Name: "Carol Smith"}},
		notes: []gitlab.Note{
			{Body: "Looks good", Author: gitlab.User{Name: "Alice"}},
		},
	}
}

func TestMRSummaryHandler_Success(t *testing.T) {
	client := newFakeGitLab()

	status, body := postWebhook(t, client, mergeRequestEvent)

	assert.Equal(t, 200, status)
	assert.Equal(t, "Merge Request summary updated", body["message"])
	require.Len(t, client.comments, 1)
	comment := client.comments[0]
	assert.Contains(t, comment, "| **Title** | Add ingestion job |")
	assert.Contains(t, comment, "| **Author** | Carol Smith |")
	assert.Contains(t, comment, "| **Reviewers** | alice |")
	assert.Contains(t, comment, "[Link to MR](https://gitlab.example.com/data/ingest/-/merge_requests/7)")
	assert.Contains(t, comment, "- **Alice**: Looks good")
}

func TestMRSummaryHandler_BadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		key     string
		message string
	}{
		{"not json", "not json", "error", "Invalid payload"},
		{"empty object", "{}", "error", "Invalid payload"},
		{"push event", `{"object_kind": "push"}`, "message", "Event not supported"},
		{"missing object_kind", `{"project": {"id": 1}}`, "message", "Event not supported"},
		{"missing iid", `{"object_kind": "merge_request", "project": {"id": 1}, "object_attributes": {}}`, "error", "Invalid payload structure"},
		{"missing project", `{"object_kind": "merge_request", "object_attributes": {"iid": 3}}`, "error", "Invalid payload structure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFakeGitLab()

			status, body := postWebhook(t, client, tt.body)

			assert.Equal(t, 400, status)
			assert.Equal(t, tt.message, body[tt.key])
			assert.Empty(t, client.comments)
		})
	}
}

func TestMRSummaryHandler_FetchFailures(t *testing.T) {
	t.Run("merge request", func(t *testing.T) {
		client := newFakeGitLab()
		client.getErr = apperrors.NewGitLabError("get merge request", 404, "not found")

		status, body := postWebhook(t, client, mergeRequestEvent)
		assert.Equal(t, 500, status)
		assert.Equal(t, "Failed to fetch MR details", body["error"])
		assert.Empty(t, client.comments)
	})

	t.Run("notes", func(t *testing.T) {
		client := newFakeGitLab()
		client.notesErr = errors.New("connection reset")

		status, body := postWebhook(t, client, mergeRequestEvent)
		assert.Equal(t, 500, status)
		assert.Equal(t, "Failed to fetch MR details", body["error"])
	})
}

func TestMRSummaryHandler_PostFailure(t *testing.T) {
	client := newFakeGitLab()
	client.addErr = apperrors.NewGitLabError("create merge request note", 403, "forbidden")

	status, body := postWebhook(t, client, mergeRequestEvent)
	assert.Equal(t, 500, status)
	assert.Equal(t, "Failed to update MR", body["error"])
}

func TestRegisterRoutes_AgainstGitLabAPI(t *testing.T) {
	var mu sync.Mutex
	var posted string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v4/projects/42/merge_requests/7":
			_, _ = w.Write([]byte(`{"id": 900, "iid": 7, "author": {"name": "Carol Smith"}}`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/v4/projects/42/merge_requests/7/notes":
			_, _ = w.Write([]byte(`[
				{"id": 1, "body": "Looks good", "author": {"name": "Alice"}},
				{"id": 2, "body": "added 1 commit", "system": true, "author": {"name": "Carol Smith"}}
			]`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/v4/projects/42/merge_requests/7/notes":
			raw, _ := io.ReadAll(r.Body)
			var note map[string]string
			_ = json.Unmarshal(raw, &note)
			mu.Lock()
			posted = note["body"]
			mu.Unlock()
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id": 3}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	cfg := createTestConfig()
	cfg.GitLab = config.GitLabConfig{BaseURL: server.URL, Token: "token"}
	client := gitlab.NewClient(cfg.GitLab)
	defer client.Close()

	app := createTestApp()
	RegisterRoutes(app, cfg, client)

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(mergeRequestEvent))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, posted, "| **Author** | Carol Smith |")
	assert.Contains(t, posted, "- **Alice**: Looks good")
	assert.NotContains(t, posted, "added 1 commit")

	resp, err = app.Test(httptest.NewRequest("GET", "/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}
