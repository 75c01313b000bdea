package gitlab

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RecordID is an identifier that GitLab (or a compatible API) may send either
// as a JSON number or as a JSON string. It keeps the textual form.
type RecordID string

// UnmarshalJSON accepts numbers and strings
func (id *RecordID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RecordID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a number or a string: %w", err)
	}
	*id = RecordID(n.String())
	return nil
}

// Project is a project reference as returned by the group listing
type Project struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	PathWithNamespace string `json:"path_with_namespace"`
	WebURL            string `json:"web_url"`
}

// DisplayName returns the namespaced path, or the bare name when the API left it out
func (p Project) DisplayName() string {
	if p.PathWithNamespace != "" {
		return p.PathWithNamespace
	}
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("%d", p.ID)
}

// User is the subset of a GitLab user embedded in MRs and notes
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// MergeRequest represents a merge request record
type MergeRequest struct {
	ID          RecordID `json:"id"`
	IID         int      `json:"iid"`
	ProjectID   int      `json:"project_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	State       string   `json:"state"`
	WebURL      string   `json:"web_url"`
	MergedAt    *string  `json:"merged_at"`
	Author      User     `json:"author"`
	Reviewers   []User   `json:"reviewers"`
}

// Note is a comment on a merge request
type Note struct {
	ID        int    `json:"id"`
	Body      string `json:"body"`
	System    bool   `json:"system"`
	CreatedAt string `json:"created_at"`
	Author    User   `json:"author"`
}

// Group is a GitLab group
type Group struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	FullPath string `json:"full_path"`
}

// LDAPGroupLink maps an LDAP group (by common name) onto a GitLab access level
type LDAPGroupLink struct {
	CN          string `json:"cn"`
	GroupAccess int    `json:"group_access"`
	Provider    string `json:"provider"`
	Filter      string `json:"filter"`
}

// MRInfo represents merge request information extracted from webhook payload
type MRInfo struct {
	ObjectKind   string
	ProjectID    int
	MRIID        int
	Title        string
	Description  string
	AuthorID     string
	Author       string
	SourceBranch string
	TargetBranch string
	State        string
	URL          string
	Reviewers    []string
}
