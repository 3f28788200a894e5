package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/nexuscrm/taskdesk/pkg/constants"
	"github.com/nexuscrm/taskdesk/pkg/models"
	"gopkg.in/yaml.v3"
)

type automationCounter interface {
	Count(ctx context.Context) (int, error)
}

type automationSeeder interface {
	Seed(ctx context.Context, rules []models.TaskAutomation) (int, error)
}

type automationFile struct {
	Automations []automationSeed `yaml:"automations"`
}

type automationSeed struct {
	Name         string         `yaml:"name"`
	TriggerEvent string         `yaml:"trigger_event"`
	Condition    string         `yaml:"condition"`
	Action       string         `yaml:"action"`
	ActionConfig map[string]any `yaml:"action_config"`
	IsActive     *bool          `yaml:"is_active"`
	Priority     int            `yaml:"priority"`
}

// LoadAutomations parses a seed file. Rules without is_active are active.
func LoadAutomations(raw []byte) ([]models.TaskAutomation, error) {
	var file automationFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse automations file: %w", err)
	}

	rules := make([]models.TaskAutomation, 0, len(file.Automations))
	for _, s := range file.Automations {
		rules = append(rules, models.TaskAutomation{
			Name:         s.Name,
			TriggerEvent: s.TriggerEvent,
			Condition:    s.Condition,
			Action:       constants.AutomationAction(s.Action),
			ActionConfig: s.ActionConfig,
			IsActive:     s.IsActive == nil || *s.IsActive,
			Priority:     s.Priority,
		})
	}
	return rules, nil
}

// InitializeAutomations seeds the automations table from path when it is empty.
// A missing file is not an error.
func InitializeAutomations(ctx context.Context, repo automationCounter, seeder automationSeeder, path string, logger *slog.Logger) error {
	n, err := repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count automations: %w", err)
	}
	if n > 0 {
		logger.Debug("automations already present, skipping seed", "count", n)
		return nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("no automations seed file", "path", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	rules, err := LoadAutomations(raw)
	if err != nil {
		return err
	}
	seeded, err := seeder.Seed(ctx, rules)
	if err != nil {
		return fmt.Errorf("seeded %d of %d automations: %w", seeded, len(rules), err)
	}
	logger.Info("automations seeded", "count", seeded, "path", path)
	return nil
}
