package gitlab

import "context"

// GitLabClient is an interface for GitLab API operations
// This interface allows for easy mocking in tests
type GitLabClient interface {
	// Projects and merge requests
	ListGroupProjects(ctx context.Context, groupID string) ([]Project, error)
	ListMergedMergeRequests(ctx context.Context, projectID int) ([]MergeRequest, error)
	GetMergeRequest(ctx context.Context, projectID, mrIID int) (*MergeRequest, error)

	// Comments
	ListMRNotes(ctx context.Context, projectID, mrIID int) ([]Note, error)
	AddMRComment(ctx context.Context, projectID, mrIID int, comment string) error

	// Groups
	ListGroups(ctx context.Context) ([]Group, error)
	ListLDAPGroupLinks(ctx context.Context, groupID int) ([]LDAPGroupLink, error)

	// Repository files
	DownloadRawFile(ctx context.Context, projectID, filePath, ref string) ([]byte, error)

	Close()
}

// Verify that Client implements GitLabClient interface
var _ GitLabClient = (*Client)(nil)
