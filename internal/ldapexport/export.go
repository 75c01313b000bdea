// Package ldapexport writes the LDAP group links of every visible GitLab group
// to a CSV file.
package ldapexport

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"go.uber.org/zap"

	apperrors "github.com/redhat-data-and-ai/glmr/internal/errors"
	"github.com/redhat-data-and-ai/glmr/internal/gitlab"
	"github.com/redhat-data-and-ai/glmr/internal/logging"
)

// Header is the first CSV line
var Header = []string{"Group Name", "Group ID", "LDAP Group", "Access Level"}

// Client is the part of the GitLab API the exporter uses
type Client interface {
	ListGroups(ctx context.Context) ([]gitlab.Group, error)
	ListLDAPGroupLinks(ctx context.Context, groupID int) ([]gitlab.LDAPGroupLink, error)
}

// Row is one group/LDAP link pair
type Row struct {
	GroupName   string
	GroupID     int
	LDAPGroup   string
	AccessLevel int
}

// Options tune an Exporter
type Options struct {
	// AccessNames renders access levels as role names instead of numbers
	AccessNames bool
}

// Exporter collects and writes LDAP mappings
type Exporter struct {
	client Client
	opts   Options
}

// New creates an Exporter
func New(client Client, opts Options) *Exporter {
	return &Exporter{client: client, opts: opts}
}

// Collect lists every group and its LDAP links. A group whose links cannot be
// fetched is logged and skipped; the group listing itself must succeed.
func (e *Exporter) Collect(ctx context.Context) ([]Row, error) {
	groups, err := e.client.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	var rows []Row
	for _, group := range groups {
		links, err := e.client.ListLDAPGroupLinks(ctx, group.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logging.WarnFields("Unable to fetch LDAP links for group: "+group.Name,
				zap.Int("group_id", group.ID), zap.Error(err))
			continue
		}
		for _, link := range links {
			rows = append(rows, Row{
				GroupName:   group.Name,
				GroupID:     group.ID,
				LDAPGroup:   link.CN,
				AccessLevel: link.GroupAccess,
			})
		}
	}
	return rows, nil
}

// Write emits the header and rows as CSV
func (e *Exporter) Write(w io.Writer, rows []Row) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return err
	}
	for _, row := range rows {
		access := strconv.Itoa(row.AccessLevel)
		if e.opts.AccessNames {
			access = AccessLevelName(row.AccessLevel)
		}
		record := []string{row.GroupName, strconv.Itoa(row.GroupID), row.LDAPGroup, access}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ExportFile collects the mappings and writes them to path. It returns the
// number of data rows written.
func (e *Exporter) ExportFile(ctx context.Context, path string) (int, error) {
	rows, err := e.Collect(ctx)
	if err != nil {
		return 0, err
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, apperrors.NewErrorWithCause(apperrors.ErrFileWriteFailed, "failed to create "+path, err)
	}

	if err := e.Write(f, rows); err != nil {
		_ = f.Close()
		return 0, apperrors.NewErrorWithCause(apperrors.ErrFileWriteFailed, "failed to write "+path, err)
	}
	if err := f.Close(); err != nil {
		return 0, apperrors.NewErrorWithCause(apperrors.ErrFileWriteFailed, "failed to close "+path, err)
	}

	logging.Info("LDAP mappings have been exported to '%s' (%d rows)", path, len(rows))
	return len(rows), nil
}

// AccessLevelName maps GitLab's numeric access levels to role names
func AccessLevelName(level int) string {
	switch level {
	case 0:
		return "No access"
	case 5:
		return "Minimal access"
	case 10:
		return "Guest"
	case 15:
		return "Planner"
	case 20:
		return "Reporter"
	case 30:
		return "Developer"
	case 40:
		return "Maintainer"
	case 50:
		return "Owner"
	default:
		return strconv.Itoa(level)
	}
}
