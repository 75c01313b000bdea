package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/redhat-data-and-ai/glmr/internal/config"
	apperrors "github.com/redhat-data-and-ai/glmr/internal/errors"
	"github.com/redhat-data-and-ai/glmr/internal/gitlab"
	"github.com/redhat-data-and-ai/glmr/internal/ldapexport"
	"github.com/redhat-data-and-ai/glmr/internal/logging"
	"github.com/redhat-data-and-ai/glmr/internal/scanner"
)

var (
	scanDate        string
	scanGroup       string
	scanPolicy      string
	scanConcurrency int
	scanTimeout     time.Duration
	scanSchedule    string

	exportOutput      string
	exportAccessNames bool

	servePort string

	downloadProject string
	downloadFile    string
	downloadRef     string
	downloadOutput  string
)

func init() {
	// scan command
	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "List the merge requests merged on a day in every project of a group",
		RunE:  runScan,
	}
	scanCmd.Flags().StringVar(&scanDate, "date", "", "merge date as YYYY-MM-DD (default today, UTC)")
	scanCmd.Flags().StringVar(&scanGroup, "group", "", "group ID or full path (overrides GITLAB_GROUP_ID)")
	scanCmd.Flags().StringVar(&scanPolicy, "policy", "", "failure policy: isolate or fail-fast")
	scanCmd.Flags().IntVar(&scanConcurrency, "concurrency", -1, "max in-flight project requests (0 = unbounded)")
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 0, "deadline for the whole scan")
	scanCmd.Flags().StringVar(&scanSchedule, "schedule", "", "cron expression; keep running and scan at every tick")
	rootCmd.AddCommand(scanCmd)

	// ldap-export command
	exportCmd := &cobra.Command{
		Use:   "ldap-export",
		Short: "Export the LDAP group links of every visible group to CSV",
		RunE:  runLDAPExport,
	}
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "CSV output path")
	exportCmd.Flags().BoolVar(&exportAccessNames, "access-names", false, "write access levels as role names")
	rootCmd.AddCommand(exportCmd)

	// serve command
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the merge request summary webhook",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&servePort, "port", "", "listen port (overrides PORT)")
	rootCmd.AddCommand(serveCmd)

	// download command
	downloadCmd := &cobra.Command{
		Use:   "download",
		Short: "Download a raw repository file",
		RunE:  runDownload,
	}
	downloadCmd.Flags().StringVar(&downloadProject, "project", "", "project ID or namespaced path")
	downloadCmd.Flags().StringVar(&downloadFile, "file", "", "file path in the repository")
	downloadCmd.Flags().StringVar(&downloadRef, "ref", "main", "branch, tag or commit")
	downloadCmd.Flags().StringVar(&downloadOutput, "output", "", "local output path (default: base name of --file)")
	_ = downloadCmd.MarkFlagRequired("project")
	_ = downloadCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(downloadCmd)
}

// applyScanFlags lets explicitly set flags override file and environment settings
func applyScanFlags(cmd *cobra.Command, cfg *config.Config) {
	if scanGroup != "" {
		cfg.GitLab.GroupID = scanGroup
	}
	if scanPolicy != "" {
		cfg.Scan.Policy = scanPolicy
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Scan.Concurrency = scanConcurrency
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Scan.Timeout = scanTimeout
	}
	if scanSchedule != "" {
		cfg.Scan.Schedule = scanSchedule
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyScanFlags(cmd, cfg)
	if err := cfg.ValidateScan(); err != nil {
		return err
	}

	if scanDate != "" {
		if _, err := time.Parse(scanner.DateLayout, scanDate); err != nil {
			return apperrors.NewValidationError("date", "must be formatted as YYYY-MM-DD")
		}
	}

	policy, err := scanner.ParsePolicy(cfg.Scan.Policy)
	if err != nil {
		return err
	}

	client := gitlab.NewClient(cfg.GitLab)
	defer client.Close()

	s := scanner.New(client, scanner.Options{
		Policy:      policy,
		Concurrency: cfg.Scan.Concurrency,
	})

	if cfg.Scan.Schedule == "" {
		return scanOnce(cmd.Context(), cmd.OutOrStdout(), cfg, s, scanDate)
	}
	return scanOnSchedule(cmd.Context(), cmd.OutOrStdout(), cfg, s)
}

// scanOnce runs one scan of the configured group and prints the report
func scanOnce(ctx context.Context, out io.Writer, cfg *config.Config, s *scanner.Scanner, date string) error {
	if cfg.Scan.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Scan.Timeout)
		defer cancel()
	}

	report, err := s.ScanGroup(ctx, cfg.GitLab.GroupID, date)
	if err != nil {
		return err
	}

	if len(report.Failures) > 0 {
		logging.Warn("%d of %d projects could not be scanned", len(report.Failures), report.Scanned)
	}
	return scanner.WriteReport(out, report)
}

// scanOnSchedule scans for the current day at every cron tick until the
// process is interrupted.
func scanOnSchedule(ctx context.Context, out io.Writer, cfg *config.Config, s *scanner.Scanner) error {
	schedule, err := cron.ParseStandard(cfg.Scan.Schedule)
	if err != nil {
		return apperrors.NewConfigError("scan.schedule", err.Error())
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info("Scanning group %s on schedule %q", cfg.GitLab.GroupID, cfg.Scan.Schedule)
	runScheduled(ctx, schedule, scheduledScan(out, cfg, s))
	return nil
}

// scheduledScan returns the job run at every tick. A failed run is logged and
// the next tick still fires.
func scheduledScan(out io.Writer, cfg *config.Config, s *scanner.Scanner) func(context.Context) {
	return func(ctx context.Context) {
		if err := scanOnce(ctx, out, cfg, s, ""); err != nil {
			logging.Error("Scheduled scan failed: %v", err)
		}
	}
}

// runScheduled runs job on schedule until ctx is done. A tick that arrives while
// the previous run is still going is skipped. It returns once the run in
// flight, if any, has finished.
func runScheduled(ctx context.Context, schedule cron.Schedule, job func(context.Context)) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(schedule, cron.FuncJob(func() { job(ctx) }))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
}

func runLDAPExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if exportOutput != "" {
		cfg.Export.OutputPath = exportOutput
	}
	if cmd.Flags().Changed("access-names") {
		cfg.Export.AccessNames = exportAccessNames
	}
	if err := cfg.ValidateAPI(); err != nil {
		return err
	}

	client := gitlab.NewClient(cfg.GitLab)
	defer client.Close()

	exporter := ldapexport.New(client, ldapexport.Options{AccessNames: cfg.Export.AccessNames})
	_, err = exporter.ExportFile(cmd.Context(), cfg.Export.OutputPath)
	return err
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != "" {
		cfg.Server.Port = servePort
	}
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	if !cfg.HasGitLabToken() {
		logging.Warn("GITLAB_TOKEN not set - merge request summaries cannot be posted")
	}

	client := gitlab.NewClient(cfg.GitLab)
	defer client.Close()

	app := newServer(cfg, client)

	logging.Info("glmr webhook starting on port %s", cfg.Server.Port)
	return app.Listen(":" + cfg.Server.Port)
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateAPI(); err != nil {
		return err
	}

	output := downloadOutput
	if output == "" {
		output = path.Base(downloadFile)
	}

	v := apperrors.NewValidator()
	v.RequiredField("project", downloadProject)
	v.ValidateFilePath("file", downloadFile)
	v.ValidateGitBranchName("ref", downloadRef)
	if appErr := v.ToAppErrorWithCode(apperrors.ErrInvalidInput, "Invalid download arguments"); appErr != nil {
		return appErr
	}

	client := gitlab.NewClient(cfg.GitLab)
	defer client.Close()

	data, err := client.DownloadRawFile(cmd.Context(), downloadProject, downloadFile, downloadRef)
	if err != nil {
		return fmt.Errorf("failed to download %s@%s: %w", downloadFile, downloadRef, err)
	}

	if err := os.WriteFile(output, data, 0o644); err != nil {
		return apperrors.NewErrorWithCause(apperrors.ErrFileWriteFailed, "failed to write "+output, err)
	}

	logging.Info("File downloaded: %s (%s)", output, humanize.Bytes(uint64(len(data))))
	return nil
}
