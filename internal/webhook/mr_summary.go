package webhook

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/redhat-data-and-ai/glmr/internal/gitlab"
	"github.com/redhat-data-and-ai/glmr/internal/logging"
	"github.com/redhat-data-and-ai/glmr/internal/summary"
)

// Client is the part of the GitLab API the summary handler uses
type Client interface {
	GetMergeRequest(ctx context.Context, projectID, mrIID int) (*gitlab.MergeRequest, error)
	ListMRNotes(ctx context.Context, projectID, mrIID int) ([]gitlab.Note, error)
	AddMRComment(ctx context.Context, projectID, mrIID int, comment string) error
}

// MRSummaryHandler posts a Markdown summary note on every merge request event
type MRSummaryHandler struct {
	client Client
}

// NewMRSummaryHandler creates a new summary handler
func NewMRSummaryHandler(client Client) *MRSummaryHandler {
	return &MRSummaryHandler{client: client}
}

// HandleWebhook processes GitLab merge request webhook requests
func (h *MRSummaryHandler) HandleWebhook(c *fiber.Ctx) error {
	var payload map[string]interface{}
	if err := json.Unmarshal(c.Body(), &payload); err != nil || len(payload) == 0 {
		logging.Error("No JSON payload received")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid payload",
		})
	}

	eventType, _ := payload["object_kind"].(string)
	if eventType != gitlab.ObjectKindMergeRequest {
		logging.Warn("Unsupported event type: %s", eventType)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Event not supported",
		})
	}

	mrInfo, err := gitlab.ExtractMRInfo(payload)
	if err != nil {
		logging.Error("Invalid merge request payload: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid payload structure",
		})
	}

	ctx := c.UserContext()

	mr, err := h.client.GetMergeRequest(ctx, mrInfo.ProjectID, mrInfo.MRIID)
	if err != nil {
		logging.MRError(mrInfo.ProjectID, mrInfo.MRIID, "Error fetching MR details", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch MR details",
		})
	}

	notes, err := h.client.ListMRNotes(ctx, mrInfo.ProjectID, mrInfo.MRIID)
	if err != nil {
		logging.MRError(mrInfo.ProjectID, mrInfo.MRIID, "Error fetching MR notes", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch MR details",
		})
	}

	comment := summary.Build(mrInfo, mr, notes)
	if err := h.client.AddMRComment(ctx, mrInfo.ProjectID, mrInfo.MRIID, comment); err != nil {
		logging.MRError(mrInfo.ProjectID, mrInfo.MRIID, "Error updating MR", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update MR",
		})
	}

	logging.MRInfo(mrInfo.ProjectID, mrInfo.MRIID, "Merge request summary posted",
		zap.Int("comments", len(notes)))

	return c.JSON(fiber.Map{
		"message": "Merge Request summary updated",
	})
}
