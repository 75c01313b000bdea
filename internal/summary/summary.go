// Package summary renders the Markdown note posted on merge requests.
package summary

import (
	"fmt"
	"strings"

	"github.com/redhat-data-and-ai/glmr/internal/gitlab"
)

// NotAvailable stands in for fields the webhook payload left out
const NotAvailable = "N/A"

// Build renders the summary table followed by the comment list.
// Title, description, state, URL and reviewers come from the webhook payload;
// the author name comes from the freshly fetched merge request.
func Build(info *gitlab.MRInfo, mr *gitlab.MergeRequest, notes []gitlab.Note) string {
	var b strings.Builder

	b.WriteString("### Merge Request Summary\n\n")
	b.WriteString("| **Field** | **Details** |\n")
	b.WriteString("|-----------|-------------|\n")
	writeRow(&b, "Title", orNA(info.Title))
	writeRow(&b, "Description", orNA(info.Description))
	writeRow(&b, "Author", orNA(mr.Author.Name))
	writeRow(&b, "Reviewers", reviewers(info.Reviewers))
	writeRow(&b, "State", orNA(info.State))
	writeRow(&b, "URL", fmt.Sprintf("[Link to MR](%s)", orNA(info.URL)))

	b.WriteString("\n### Comments\n")
	for _, note := range notes {
		if note.System {
			continue
		}
		author := note.Author.Name
		if author == "" {
			author = note.Author.Username
		}
		fmt.Fprintf(&b, "- **%s**: %s\n", orNA(author), note.Body)
	}

	return b.String()
}

func writeRow(b *strings.Builder, field, value string) {
	fmt.Fprintf(b, "| **%s** | %s |\n", field, cell(value))
}

// cell keeps multi-line or piped values inside a single table cell
func cell(value string) string {
	value = strings.ReplaceAll(value, "|", `\|`)
	value = strings.ReplaceAll(value, "\r\n", "\n")
	return strings.ReplaceAll(value, "\n", "<br>")
}

func reviewers(usernames []string) string {
	if len(usernames) == 0 {
		return "None"
	}
	return strings.Join(usernames, ", ")
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotAvailable
	}
	return s
}
