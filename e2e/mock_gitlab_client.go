package e2e

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	apperrors "github.com/redhat-data-and-ai/glmr/internal/errors"
	"github.com/redhat-data-and-ai/glmr/internal/gitlab"
)

// Verify that MockGitLabClient implements GitLabClient interface
var _ gitlab.GitLabClient = (*MockGitLabClient)(nil)

// MockGitLabClient serves a scenario's fixtures instead of making HTTP calls.
// It is safe for concurrent use.
type MockGitLabClient struct {
	scenario *ScenarioConfig

	mu               sync.Mutex
	projectRequests  map[int]int
	groupRequests    int
	CapturedComments []CapturedComment
}

// CapturedComment represents a comment that would be posted to GitLab
type CapturedComment struct {
	ProjectID int
	MRIID     int
	Comment   string
}

// NewMockGitLabClient creates a mock backed by scenario
func NewMockGitLabClient(scenario *ScenarioConfig) *MockGitLabClient {
	return &MockGitLabClient{
		scenario:        scenario,
		projectRequests: make(map[int]int),
	}
}

// fixtureError turns a fixture's error field into the error the real client would return
func fixtureError(operation, value string) error {
	if value == "" {
		return nil
	}
	if value == "malformed" {
		return apperrors.NewMalformedResponseError(operation, errors.New("unexpected end of JSON input"))
	}
	status, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s request failed: %s", operation, value)
	}
	return apperrors.NewGitLabError(operation, status, "")
}

// ListGroupProjects returns the scenario's projects
func (m *MockGitLabClient) ListGroupProjects(ctx context.Context, groupID string) ([]gitlab.Project, error) {
	m.mu.Lock()
	m.groupRequests++
	m.mu.Unlock()

	if err := fixtureError("list group projects", m.scenario.Group.Error); err != nil {
		return nil, err
	}
	if groupID != m.scenario.Group.ID {
		return nil, apperrors.NewGitLabError("list group projects", 404, `{"message":"404 Group Not Found"}`)
	}

	projects := make([]gitlab.Project, len(m.scenario.Projects))
	for i, p := range m.scenario.Projects {
		projects[i] = gitlab.Project{ID: p.ID, PathWithNamespace: p.Path}
	}
	return projects, nil
}

// ListMergedMergeRequests returns a project's fixture MRs
func (m *MockGitLabClient) ListMergedMergeRequests(ctx context.Context, projectID int) ([]gitlab.MergeRequest, error) {
	m.mu.Lock()
	m.projectRequests[projectID]++
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	project, ok := m.project(projectID)
	if !ok {
		return nil, apperrors.NewGitLabError("list merged merge requests", 404, "")
	}
	if err := fixtureError("list merged merge requests", project.Error); err != nil {
		return nil, err
	}

	mrs := make([]gitlab.MergeRequest, len(project.MergeRequests))
	for i, entry := range project.MergeRequests {
		mrs[i] = gitlab.MergeRequest{ID: gitlab.RecordID(entry.ID), ProjectID: projectID, State: "merged"}
		if entry.MergedAt != "" {
			mergedAt := entry.MergedAt
			mrs[i].MergedAt = &mergedAt
		}
	}
	return mrs, nil
}

// GetMergeRequest returns a minimal MR with a fixed author
func (m *MockGitLabClient) GetMergeRequest(ctx context.Context, projectID, mrIID int) (*gitlab.MergeRequest, error) {
	if _, ok := m.project(projectID); !ok {
		return nil, apperrors.NewGitLabError("get merge request", 404, "")
	}
	return &gitlab.MergeRequest{
		IID:       mrIID,
		ProjectID: projectID,
		Author:    gitlab.User{Name: "Scenario Author", Username: "scenario-author"},
	}, nil
}

// ListMRNotes returns previously captured comments as notes
func (m *MockGitLabClient) ListMRNotes(ctx context.Context, projectID, mrIID int) ([]gitlab.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var notes []gitlab.Note
	for i, captured := range m.CapturedComments {
		if captured.ProjectID == projectID && captured.MRIID == mrIID {
			notes = append(notes, gitlab.Note{
				ID:     i + 1,
				Body:   captured.Comment,
				Author: gitlab.User{Name: "glmr-bot", Username: "glmr-bot"},
			})
		}
	}
	return notes, nil
}

// AddMRComment captures the comment instead of posting to GitLab
func (m *MockGitLabClient) AddMRComment(ctx context.Context, projectID, mrIID int, comment string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CapturedComments = append(m.CapturedComments, CapturedComment{
		ProjectID: projectID,
		MRIID:     mrIID,
		Comment:   comment,
	})
	return nil
}

// ListGroups returns the scenario group
func (m *MockGitLabClient) ListGroups(ctx context.Context) ([]gitlab.Group, error) {
	return []gitlab.Group{{ID: 1, Name: m.scenario.Group.ID, FullPath: m.scenario.Group.ID}}, nil
}

// ListLDAPGroupLinks returns no links
func (m *MockGitLabClient) ListLDAPGroupLinks(ctx context.Context, groupID int) ([]gitlab.LDAPGroupLink, error) {
	return nil, nil
}

// DownloadRawFile is not backed by fixtures
func (m *MockGitLabClient) DownloadRawFile(ctx context.Context, projectID, filePath, ref string) ([]byte, error) {
	return nil, apperrors.NewGitLabError("download raw file", 404, "")
}

// Close is a no-op for the mock client
func (m *MockGitLabClient) Close() {}

// RequestCount returns how many merged-MR requests a project received
func (m *MockGitLabClient) RequestCount(projectID int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.projectRequests[projectID]
}

// GroupRequestCount returns how many times the group was listed
func (m *MockGitLabClient) GroupRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.groupRequests
}

// GetCommentCount returns the number of captured comments
func (m *MockGitLabClient) GetCommentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.CapturedComments)
}

func (m *MockGitLabClient) project(projectID int) (ProjectFixture, bool) {
	for _, p := range m.scenario.Projects {
		if p.ID == projectID {
			return p, true
		}
	}
	return ProjectFixture{}, false
}
