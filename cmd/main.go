package main

import (
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	"github.com/redhat-data-and-ai/glmr/internal/config"
	apperrors "github.com/redhat-data-and-ai/glmr/internal/errors"
	"github.com/redhat-data-and-ai/glmr/internal/logging"
	"github.com/redhat-data-and-ai/glmr/internal/webhook"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "glmr",
		Short: "GitLab merge request and group tooling",
		Long: `glmr reports the merge requests merged today across a GitLab group,
exports group LDAP mappings, downloads repository files, and serves a webhook
that posts merge request summaries.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file path")
}

// loadConfig reads the config file (if any) and environment, and sets up logging
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, apperrors.NewErrorWithCause(apperrors.ErrConfigurationError, "failed to load configuration", err)
	}
	logging.InitLogger(cfg.LogLevel, "glmr")
	return cfg, nil
}

// newServer builds the webhook server app
func newServer(cfg *config.Config, client webhook.Client) *fiber.App {
	errorHandler := apperrors.NewHandler()
	if cfg.LogLevel == "debug" {
		errorHandler = apperrors.NewDevelopmentHandler()
	}

	app := fiber.New(fiber.Config{
		AppName:               "glmr webhook",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler.FiberErrorHandler(),
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{Output: os.Stderr}))

	webhook.RegisterRoutes(app, cfg, client)
	return app
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
