// Package scanner reports, for every project of a GitLab group, the merge
// requests that were merged on a given day. Projects are queried concurrently,
// one request per project.
package scanner

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/redhat-data-and-ai/glmr/internal/gitlab"
	"github.com/redhat-data-and-ai/glmr/internal/logging"
)

// DateLayout is the ISO-8601 calendar date used for prefix matching merged_at
const DateLayout = "2006-01-02"

// Policy decides what a failing project does to the rest of the scan
type Policy string

const (
	// Isolate logs and records a failing project and lets the others finish
	Isolate Policy = "isolate"
	// FailFast cancels every in-flight request on the first failure
	FailFast Policy = "fail-fast"
)

// ParsePolicy converts a configuration value into a Policy
func ParsePolicy(value string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(value))) {
	case Isolate, "":
		return Isolate, nil
	case FailFast:
		return FailFast, nil
	default:
		return "", fmt.Errorf("unknown scan policy %q (want %q or %q)", value, Isolate, FailFast)
	}
}

// Client is the part of the GitLab API the scanner uses
type Client interface {
	ListGroupProjects(ctx context.Context, groupID string) ([]gitlab.Project, error)
	ListMergedMergeRequests(ctx context.Context, projectID int) ([]gitlab.MergeRequest, error)
}

// Options tune a Scanner
type Options struct {
	Policy Policy
	// Concurrency caps simultaneous requests; 0 means one in flight per project
	Concurrency int
	// Now defaults to time.Now; it picks the date when none is given
	Now func() time.Time
}

// Result lists the matching merge requests of one project
type Result struct {
	Project         gitlab.Project
	MergeRequestIDs []gitlab.RecordID
}

// ProjectFailure records a project that could not be scanned under Isolate
type ProjectFailure struct {
	Project gitlab.Project
	Err     error
}

// Report is the outcome of one scan
type Report struct {
	Date     string
	Scanned  int
	Results  []Result
	Failures []ProjectFailure
}

// Scanner fans one request out per project
type Scanner struct {
	client Client
	opts   Options
}

// New creates a Scanner. The client is shared by every goroutine of a scan.
func New(client Client, opts Options) *Scanner {
	if opts.Policy == "" {
		opts.Policy = Isolate
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scanner{client: client, opts: opts}
}

// Today returns now's UTC calendar date
func Today(now time.Time) string {
	return now.UTC().Format(DateLayout)
}

// ScanGroup lists the group's projects and scans them. A listing failure is
// returned as is; per-project failures follow the scanner's policy.
func (s *Scanner) ScanGroup(ctx context.Context, groupID, date string) (*Report, error) {
	projects, err := s.client.ListGroupProjects(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects of group %s: %w", groupID, err)
	}
	logging.Info("Scanning %d projects of group %s", len(projects), groupID)
	return s.Scan(ctx, projects, date)
}

// Scan issues exactly one merged-MR request per project, concurrently, and
// waits for all of them. An empty date means today in UTC. Results are sorted
// by project ID; projects without matches are left out.
func (s *Scanner) Scan(ctx context.Context, projects []gitlab.Project, date string) (*Report, error) {
	if date == "" {
		date = Today(s.opts.Now())
	}

	report := &Report{Date: date, Scanned: len(projects)}
	if len(projects) == 0 {
		return report, nil
	}

	// one slot per project, each written by exactly one goroutine
	matches := make([][]gitlab.RecordID, len(projects))

	switch s.opts.Policy {
	case FailFast:
		if err := s.scanFailFast(ctx, projects, date, matches); err != nil {
			return nil, err
		}
	default:
		report.Failures = s.scanIsolated(ctx, projects, date, matches)
	}

	for i, ids := range matches {
		if len(ids) > 0 {
			report.Results = append(report.Results, Result{Project: projects[i], MergeRequestIDs: ids})
		}
	}

	sort.SliceStable(report.Results, func(i, j int) bool {
		return report.Results[i].Project.ID < report.Results[j].Project.ID
	})
	sort.SliceStable(report.Failures, func(i, j int) bool {
		return report.Failures[i].Project.ID < report.Failures[j].Project.ID
	})

	return report, nil
}

func (s *Scanner) scanFailFast(ctx context.Context, projects []gitlab.Project, date string, matches [][]gitlab.RecordID) error {
	g, gctx := errgroup.WithContext(ctx)
	if s.opts.Concurrency > 0 {
		g.SetLimit(s.opts.Concurrency)
	}

	for i, project := range projects {
		g.Go(func() error {
			// a sibling already failed
			if err := gctx.Err(); err != nil {
				return err
			}
			ids, err := s.scanProject(gctx, project, date)
			if err != nil {
				return err
			}
			matches[i] = ids
			return nil
		})
	}

	return g.Wait()
}

func (s *Scanner) scanIsolated(ctx context.Context, projects []gitlab.Project, date string, matches [][]gitlab.RecordID) []ProjectFailure {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []ProjectFailure
		sem      *semaphore.Weighted
	)
	if s.opts.Concurrency > 0 {
		sem = semaphore.NewWeighted(int64(s.opts.Concurrency))
	}

	fail := func(project gitlab.Project, err error) {
		logging.ProjectError(project.ID, "Failed to scan project", err,
			zap.String("project", project.DisplayName()))
		mu.Lock()
		failures = append(failures, ProjectFailure{Project: project, Err: err})
		mu.Unlock()
	}

	for i, project := range projects {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if sem != nil {
				if err := sem.Acquire(ctx, 1); err != nil {
					fail(project, err)
					return
				}
				defer sem.Release(1)
			}

			ids, err := s.scanProject(ctx, project, date)
			if err != nil {
				fail(project, err)
				return
			}
			matches[i] = ids
		}()
	}

	wg.Wait()
	return failures
}

func (s *Scanner) scanProject(ctx context.Context, project gitlab.Project, date string) ([]gitlab.RecordID, error) {
	mrs, err := s.client.ListMergedMergeRequests(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", project.DisplayName(), err)
	}

	ids := FilterMergedOn(mrs, date)
	if logger := logging.GetLogger(); logger != nil {
		logger.Zap().Debug("Scanned project",
			zap.Int("project_id", project.ID),
			zap.Int("merged", len(mrs)),
			zap.Int("matching", len(ids)))
	}
	return ids, nil
}

// FilterMergedOn returns the IDs of records whose merged_at starts with date,
// without duplicates, in order of first appearance
func FilterMergedOn(mrs []gitlab.MergeRequest, date string) []gitlab.RecordID {
	var ids []gitlab.RecordID
	seen := make(map[gitlab.RecordID]struct{})
	for _, mr := range mrs {
		if mr.MergedAt == nil || !strings.HasPrefix(*mr.MergedAt, date) {
			continue
		}
		if _, dup := seen[mr.ID]; dup {
			continue
		}
		seen[mr.ID] = struct{}{}
		ids = append(ids, mr.ID)
	}
	return ids
}
