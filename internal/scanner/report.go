package scanner

import (
	"fmt"
	"io"
	"strings"
)

// WriteReport prints one line per project with matches:
//
//	Project group/app: [101, 102]
func WriteReport(w io.Writer, report *Report) error {
	for _, result := range report.Results {
		ids := make([]string, len(result.MergeRequestIDs))
		for i, id := range result.MergeRequestIDs {
			ids[i] = string(id)
		}
		if _, err := fmt.Fprintf(w, "Project %s: [%s]\n", result.Project.DisplayName(), strings.Join(ids, ", ")); err != nil {
			return err
		}
	}
	return nil
}
