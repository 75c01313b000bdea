package gitlab

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/redhat-data-and-ai/glmr/internal/config"
	apperrors "github.com/redhat-data-and-ai/glmr/internal/errors"
	"github.com/redhat-data-and-ai/glmr/internal/logging"
)

const perPage = 100

// Client handles GitLab API operations. One Client owns one connection pool
// and is safe for concurrent use.
type Client struct {
	config config.GitLabConfig
	http   *http.Client
}

// createHTTPClient creates an HTTP client with custom TLS configuration
func createHTTPClient(cfg config.GitLabConfig) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	tlsConfig := &tls.Config{}

	if cfg.InsecureTLS {
		tlsConfig.InsecureSkipVerify = true
	}

	if cfg.CACertPath != "" {
		caCert, err := os.ReadFile(cfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate from %s: %w", cfg.CACertPath, err)
		}

		caCertPool, err := x509.SystemCertPool()
		if err != nil || caCertPool == nil {
			caCertPool = x509.NewCertPool()
		}
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate from %s", cfg.CACertPath)
		}

		tlsConfig.RootCAs = caCertPool
	}

	transport.TLSClientConfig = tlsConfig

	return &http.Client{
		Transport: transport,
	}, nil
}

// NewClient creates a new GitLab API client. The CA bundle is checked by
// config validation; should it become unreadable afterwards the client keeps
// every other TLS setting and uses the system roots.
func NewClient(cfg config.GitLabConfig) *Client {
	httpClient, err := createHTTPClient(cfg)
	if err != nil {
		logging.Warn("Ignoring CA bundle, using system roots: %v", err)
		httpClient, _ = createHTTPClient(config.GitLabConfig{InsecureTLS: cfg.InsecureTLS})
	}

	return &Client{
		config: cfg,
		http:   httpClient,
	}
}

// NewClientWithHTTPClient creates a client around a caller-supplied http.Client
func NewClientWithHTTPClient(cfg config.GitLabConfig, httpClient *http.Client) *Client {
	return &Client{
		config: cfg,
		http:   httpClient,
	}
}

// Close releases idle pooled connections. The client must not be used afterwards.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// apiURL builds {base}/api/v4{path}?{query}
func (c *Client) apiURL(path string, query url.Values) string {
	u := strings.TrimRight(c.config.BaseURL, "/") + "/api/v4" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// do performs one authenticated request. Non-2xx responses become AppErrors.
func (c *Client) do(ctx context.Context, operation, method, path string, query url.Values, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", operation, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL(path, query), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", operation, err)
	}

	req.Header.Set("PRIVATE-TOKEN", c.config.Token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", operation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, apperrors.NewGitLabError(operation, resp.StatusCode, string(respBody))
	}

	return resp, nil
}

// getJSON performs a GET and decodes the body into out
func (c *Client) getJSON(ctx context.Context, operation, path string, query url.Values, out any) (*http.Response, error) {
	resp, err := c.do(ctx, operation, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, apperrors.NewMalformedResponseError(operation, err)
	}
	return resp, nil
}

// getAllPages follows GitLab's X-Next-Page header until the last page
func getAllPages[T any](ctx context.Context, c *Client, operation, path string, query url.Values) ([]T, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("per_page", strconv.Itoa(perPage))

	var all []T
	page := "1"
	for page != "" {
		query.Set("page", page)

		var items []T
		resp, err := c.getJSON(ctx, operation, path, query, &items)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		page = strings.TrimSpace(resp.Header.Get("X-Next-Page"))
	}
	return all, nil
}

// ListGroupProjects lists every project of a group, including subgroups.
// groupID may be a numeric ID or a full group path.
func (c *Client) ListGroupProjects(ctx context.Context, groupID string) ([]Project, error) {
	path := fmt.Sprintf("/groups/%s/projects", url.PathEscape(groupID))
	query := url.Values{}
	query.Set("include_subgroups", "true")
	return getAllPages[Project](ctx, c, "list group projects", path, query)
}

// ListMergedMergeRequests fetches the merged merge requests of a project with a
// single request
func (c *Client) ListMergedMergeRequests(ctx context.Context, projectID int) ([]MergeRequest, error) {
	path := fmt.Sprintf("/projects/%d/merge_requests", projectID)
	query := url.Values{}
	query.Set("state", "merged")

	var mrs []MergeRequest
	if _, err := c.getJSON(ctx, "list merged merge requests", path, query, &mrs); err != nil {
		return nil, err
	}
	return mrs, nil
}

// GetMergeRequest fetches a single merge request
func (c *Client) GetMergeRequest(ctx context.Context, projectID, mrIID int) (*MergeRequest, error) {
	path := fmt.Sprintf("/projects/%d/merge_requests/%d", projectID, mrIID)

	var mr MergeRequest
	if _, err := c.getJSON(ctx, "get merge request", path, nil, &mr); err != nil {
		return nil, err
	}
	return &mr, nil
}

// ListMRNotes lists all notes of a merge request, oldest first
func (c *Client) ListMRNotes(ctx context.Context, projectID, mrIID int) ([]Note, error) {
	path := fmt.Sprintf("/projects/%d/merge_requests/%d/notes", projectID, mrIID)
	query := url.Values{}
	query.Set("sort", "asc")
	query.Set("order_by", "created_at")
	return getAllPages[Note](ctx, c, "list merge request notes", path, query)
}

// AddMRComment adds a comment to a merge request
func (c *Client) AddMRComment(ctx context.Context, projectID, mrIID int, comment string) error {
	path := fmt.Sprintf("/projects/%d/merge_requests/%d/notes", projectID, mrIID)
	payload := map[string]string{
		"body": comment,
	}

	resp, err := c.do(ctx, "create merge request note", http.MethodPost, path, nil, payload)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}

// ListGroups lists every group visible to the token
func (c *Client) ListGroups(ctx context.Context) ([]Group, error) {
	query := url.Values{}
	query.Set("all_available", "true")
	return getAllPages[Group](ctx, c, "list groups", "/groups", query)
}

// ListLDAPGroupLinks lists the LDAP group links of a group
func (c *Client) ListLDAPGroupLinks(ctx context.Context, groupID int) ([]LDAPGroupLink, error) {
	path := fmt.Sprintf("/groups/%d/ldap_group_links", groupID)

	var links []LDAPGroupLink
	if _, err := c.getJSON(ctx, "list LDAP group links", path, nil, &links); err != nil {
		return nil, err
	}
	return links, nil
}

// DownloadRawFile returns the raw content of a repository file at ref.
// projectID may be a numeric ID or a namespaced project path.
func (c *Client) DownloadRawFile(ctx context.Context, projectID, filePath, ref string) ([]byte, error) {
	path := fmt.Sprintf("/projects/%s/repository/files/%s/raw",
		url.PathEscape(projectID), url.PathEscape(filePath))
	query := url.Values{}
	query.Set("ref", ref)

	resp, err := c.do(ctx, "download raw file", http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw file body: %w", err)
	}
	return data, nil
}
