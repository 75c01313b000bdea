package gitlab

import (
	"fmt"
	"strconv"
)

// ObjectKindMergeRequest is the object_kind of merge request webhook events
const ObjectKindMergeRequest = "merge_request"

// ExtractMRInfo extracts merge request information from webhook payload.
// It fails when the project ID or MR IID is missing.
func ExtractMRInfo(payload map[string]interface{}) (*MRInfo, error) {
	info := &MRInfo{}

	if kind, ok := payload["object_kind"].(string); ok {
		info.ObjectKind = kind
	}

	if objectAttrs, ok := payload["object_attributes"].(map[string]interface{}); ok {
		info.MRIID = toInt(objectAttrs["iid"])
		info.Title = stringField(objectAttrs, "title")
		info.Description = stringField(objectAttrs, "description")
		info.SourceBranch = stringField(objectAttrs, "source_branch")
		info.TargetBranch = stringField(objectAttrs, "target_branch")
		info.State = stringField(objectAttrs, "state")
		info.URL = stringField(objectAttrs, "url")
		if authorID, ok := objectAttrs["author_id"]; ok && authorID != nil {
			info.AuthorID = fmt.Sprintf("%v", toScalar(authorID))
		}
	}

	if project, ok := payload["project"].(map[string]interface{}); ok {
		info.ProjectID = toInt(project["id"])
	}

	if user, ok := payload["user"].(map[string]interface{}); ok {
		info.Author = stringField(user, "username")
	}

	if reviewers, ok := payload["reviewers"].([]interface{}); ok {
		for _, r := range reviewers {
			if reviewer, ok := r.(map[string]interface{}); ok {
				if username := stringField(reviewer, "username"); username != "" {
					info.Reviewers = append(info.Reviewers, username)
				}
			}
		}
	}

	if info.ProjectID == 0 || info.MRIID == 0 {
		return nil, fmt.Errorf("missing project ID (%d) or MR IID (%d)", info.ProjectID, info.MRIID)
	}

	return info, nil
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func toInt(value interface{}) int {
	switch v := value.(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

// toScalar renders whole floats (JSON numbers) without a decimal part
func toScalar(value interface{}) interface{} {
	if f, ok := value.(float64); ok && f == float64(int64(f)) {
		return int64(f)
	}
	return value
}
