package e2e

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/redhat-data-and-ai/glmr/internal/config"
)

// ScenarioConfig represents a complete scan scenario
type ScenarioConfig struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Date        string           `yaml:"date"`
	Policy      string           `yaml:"policy"`
	Concurrency int              `yaml:"concurrency"`
	Group       GroupFixture     `yaml:"group"`
	Projects    []ProjectFixture `yaml:"projects"`
	Expected    ExpectedResults  `yaml:"expected"`

	Dir string `yaml:"-"`
}

// GroupFixture describes the group listing
type GroupFixture struct {
	ID    string `yaml:"id"`
	Error string `yaml:"error"` // HTTP status code or "malformed"
}

// ProjectFixture is one project and its merged MRs
type ProjectFixture struct {
	ID            int                 `yaml:"id"`
	Path          string              `yaml:"path"`
	Error         string              `yaml:"error"`
	MergeRequests []MergeRequestEntry `yaml:"merge_requests"`
}

// MergeRequestEntry is one merged MR record
type MergeRequestEntry struct {
	ID       string `yaml:"id"`
	MergedAt string `yaml:"merged_at"`
}

// ExpectedResults defines what to expect from the scenario
type ExpectedResults struct {
	Output        string `yaml:"output"`
	FailedProject []int  `yaml:"failed_projects"`
	ErrorContains string `yaml:"error_contains"`
}

// LoadScenarios discovers and loads all scenarios from testdata/scenarios/
func LoadScenarios(testdataPath string) ([]ScenarioConfig, error) {
	scenariosPath := filepath.Join(testdataPath, "scenarios")

	if _, err := os.Stat(scenariosPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("scenarios directory not found: %s", scenariosPath)
	}

	var scenarios []ScenarioConfig

	err := filepath.Walk(scenariosPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() && (info.Name() == "scenario.yaml" || info.Name() == "scenario.yml") {
			scenario, err := LoadScenario(path)
			if err != nil {
				return fmt.Errorf("failed to load scenario from %s: %w", filepath.Dir(path), err)
			}
			scenarios = append(scenarios, *scenario)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return scenarios, nil
}

// LoadScenario loads a single scenario file
func LoadScenario(path string) (*ScenarioConfig, error) {
	content, err := os.ReadFile(path) // #nosec G304 - reading test fixture files
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}

	var scenario ScenarioConfig
	if err := yaml.Unmarshal(content, &scenario); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	scenario.Dir = filepath.Dir(path)

	if scenario.Policy == "" {
		scenario.Policy = config.PolicyIsolate
	}
	if scenario.Group.ID == "" {
		scenario.Group.ID = "test-group"
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("scenario validation failed: %w", err)
	}

	return &scenario, nil
}

// validateScenario validates that a scenario has required structure
func validateScenario(scenario *ScenarioConfig) error {
	if scenario.Name == "" {
		return fmt.Errorf("scenario name is required")
	}

	if _, err := time.Parse("2006-01-02", scenario.Date); err != nil {
		return fmt.Errorf("date must be YYYY-MM-DD, got %q", scenario.Date)
	}

	if scenario.Policy != config.PolicyIsolate && scenario.Policy != config.PolicyFailFast {
		return fmt.Errorf("unknown policy %q", scenario.Policy)
	}

	seen := make(map[int]bool)
	for _, project := range scenario.Projects {
		if project.ID == 0 {
			return fmt.Errorf("project %q has no id", project.Path)
		}
		if seen[project.ID] {
			return fmt.Errorf("duplicate project id %d", project.ID)
		}
		seen[project.ID] = true
	}

	return nil
}

// FilterScenariosByTag filters scenarios by tags in their names or descriptions
func FilterScenariosByTag(scenarios []ScenarioConfig, tags []string) []ScenarioConfig {
	if len(tags) == 0 {
		return scenarios
	}

	var filtered []ScenarioConfig
	for _, scenario := range scenarios {
		for _, tag := range tags {
			if strings.Contains(strings.ToLower(scenario.Name), strings.ToLower(tag)) ||
				strings.Contains(strings.ToLower(scenario.Description), strings.ToLower(tag)) {
				filtered = append(filtered, scenario)
				break
			}
		}
	}

	return filtered
}
