package e2e

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redhat-data-and-ai/glmr/internal/config"
	"github.com/redhat-data-and-ai/glmr/internal/scanner"
	"github.com/redhat-data-and-ai/glmr/internal/webhook"
)

func TestScanScenarios(t *testing.T) {
	scenarios, err := LoadScenarios("testdata")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, scenario := range scenarios {
		t.Run(scenario.Name, func(t *testing.T) {
			client := NewMockGitLabClient(&scenario)
			defer client.Close()

			policy, err := scanner.ParsePolicy(scenario.Policy)
			require.NoError(t, err)

			s := scanner.New(client, scanner.Options{Policy: policy, Concurrency: scenario.Concurrency})
			report, err := s.ScanGroup(context.Background(), scenario.Group.ID, scenario.Date)

			assert.Equal(t, 1, client.GroupRequestCount())
			for _, project := range scenario.Projects {
				assert.LessOrEqual(t, client.RequestCount(project.ID), 1,
					"project %d must be requested at most once", project.ID)
			}

			if scenario.Expected.ErrorContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), scenario.Expected.ErrorContains)
				assert.Nil(t, report)
				return
			}

			require.NoError(t, err)
			for _, project := range scenario.Projects {
				assert.Equal(t, 1, client.RequestCount(project.ID),
					"project %d must be requested exactly once", project.ID)
			}

			var out bytes.Buffer
			require.NoError(t, scanner.WriteReport(&out, report))
			assert.Equal(t, scenario.Expected.Output, out.String())

			var failed []int
			for _, failure := range report.Failures {
				failed = append(failed, failure.Project.ID)
			}
			assert.Equal(t, scenario.Expected.FailedProject, failed)
			assert.Equal(t, len(scenario.Projects), report.Scanned)
		})
	}
}

func TestLoadScenario_Validation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")

	cases := map[string]string{
		"missing name":      "date: \"2024-05-01\"\n",
		"bad date":          "name: x\ndate: 05/01/2024\n",
		"unknown policy":    "name: x\ndate: \"2024-05-01\"\npolicy: retry\n",
		"duplicate project": "name: x\ndate: \"2024-05-01\"\nprojects:\n  - id: 1\n  - id: 1\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
			_, err := LoadScenario(path)
			assert.Error(t, err)
		})
	}
}

func TestFilterScenariosByTag(t *testing.T) {
	scenarios, err := LoadScenarios("testdata")
	require.NoError(t, err)

	filtered := FilterScenariosByTag(scenarios, []string{"fail-fast"})
	require.Len(t, filtered, 1)
	assert.Equal(t, "fail_fast", filtered[0].Name)

	assert.Len(t, FilterScenariosByTag(scenarios, nil), len(scenarios))
}

func TestWebhookSummary_WithMockClient(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/merged_today/scenario.yaml")
	require.NoError(t, err)

	client := NewMockGitLabClient(scenario)
	cfg := config.Default()
	cfg.GitLab.Token = "token"

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	webhook.RegisterRoutes(app, cfg, client)

	event := `{"object_kind": "merge_request", "project": {"id": 1}, "object_attributes": {"iid": 4, "title": "First"}}`
	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest("POST", "/webhook", strings.NewReader(event)))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	}

	require.Equal(t, 2, client.GetCommentCount())
	assert.Contains(t, client.CapturedComments[0].Comment, "| **Author** | Scenario Author |")
	// the second summary lists the first one as a comment
	assert.Contains(t, client.CapturedComments[1].Comment, "- **glmr-bot**: ### Merge Request Summary")
}
