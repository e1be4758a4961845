// Package cmd contains the command-line interface definitions and
// execution logic for Fleetwatch. The root command wires flags,
// credentials, the rate limiter, the registry providers and the reporting
// sinks together, then runs either a single scan or a cron-driven series
// of scans.
package cmd

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/justpow98/fleetwatch/internal/actions"
	"github.com/justpow98/fleetwatch/internal/flags"
	"github.com/justpow98/fleetwatch/internal/logging"
	"github.com/justpow98/fleetwatch/internal/meta"
	"github.com/justpow98/fleetwatch/internal/scheduling"
	"github.com/justpow98/fleetwatch/pkg/changelog"
	"github.com/justpow98/fleetwatch/pkg/manifest"
	"github.com/justpow98/fleetwatch/pkg/metrics"
	"github.com/justpow98/fleetwatch/pkg/notifications"
	"github.com/justpow98/fleetwatch/pkg/registry"
	"github.com/justpow98/fleetwatch/pkg/registry/auth"
	"github.com/justpow98/fleetwatch/pkg/registry/ratelimit"
	"github.com/justpow98/fleetwatch/pkg/report"
	"github.com/justpow98/fleetwatch/pkg/session"
	"github.com/justpow98/fleetwatch/pkg/versions"
)

// scanConfig is assembled once in preRun and reused for every scan.
var scanConfig actions.ScanConfig

// credentials are the optional registry credentials read from the
// environment in preRun.
var credentials auth.Credentials

// scheduleSpec holds the cron-formatted schedule string, empty for a
// one-shot run.
var scheduleSpec string

// notifier delivers scan summaries when notification URLs are configured.
var notifier *notifications.Notifier

var rootCmd = NewRootCommand()

// NewRootCommand creates the root command for Fleetwatch.
func NewRootCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fleetwatch",
		Short: "Detects newer container image tags for a compose service fleet",
		Long: `
Fleetwatch scans docker-compose manifests, asks the upstream registries
for newer image tags matching each image's version convention, rewrites
the pinned tags in place, and emits a changelog-enriched summary for the
review pipeline.`,
		PreRun: preRun,
		Run:    run,
	}
}

// init registers the flags and environment defaults.
func init() {
	flags.SetDefaults()
	flags.RegisterSystemFlags(rootCmd)
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Fatal(err)
	}
}

// preRun configures logging and assembles the scan configuration from
// flags and environment.
func preRun(cmd *cobra.Command, _ []string) {
	flagSet := cmd.PersistentFlags()
	flags.ProcessFlagAliases(flagSet)

	if err := flags.SetupLogging(flagSet); err != nil {
		logrus.Fatalf("Failed to initialize logging: %s", err.Error())
	}

	scheduleSpec, _ = flagSet.GetString("schedule")

	baseDir, _ := flagSet.GetString("base-dir")
	if baseDir == "" {
		baseDir = manifest.ResolveBaseDir()
	}

	protectedCategories, _ := flagSet.GetStringSlice("protected-categories")
	monitorOnly, _ := flagSet.GetBool("monitor-only")

	credentials = auth.FromEnv()
	limiter := ratelimit.New()

	scanConfig = actions.ScanConfig{
		BaseDir:             baseDir,
		ProtectedCategories: protectedCategories,
		MonitorOnly:         monitorOnly,
		Patterns:            versions.DefaultPatterns(),
		SourceRepos:         actions.DefaultSourceRepos(),
		Providers:           registry.NewProviderFactory(nil, limiter, credentials),
		Changelogs:          changelog.NewFetcher(nil, limiter, credentials),
	}

	notificationURLs, _ := flagSet.GetStringSlice("notification-url")

	var err error
	if notifier, err = notifications.NewNotifier(notificationURLs); err != nil {
		logrus.Fatalf("Failed to initialize notifications: %s", err.Error())
	}
}

// run performs a single scan, or hands control to the scheduler when a
// schedule is configured.
func run(c *cobra.Command, _ []string) {
	ctx := context.Background()

	if scheduleSpec == "" {
		logging.WriteStartupMessage(c, time.Time{}, scanConfig.BaseDir, credentials, meta.Version)

		metric := runScan(ctx)
		metrics.Default().RegisterScan(metric)

		return
	}

	err := scheduling.RunScansOnSchedule(ctx, scheduleSpec, runScan, func(sched time.Time) {
		logging.WriteStartupMessage(c, sched, scanConfig.BaseDir, credentials, meta.Version)
	})
	if err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

// runScan executes one fleet scan and feeds every reporting sink: the CI
// boundary file, the notifier and the metrics handler. Reporting failures
// are logged, never fatal.
func runScan(ctx context.Context) *metrics.Metric {
	scanReport, records := actions.CheckForUpdates(ctx, scanConfig)

	if err := report.NewReporter().Write(records); err != nil {
		logrus.WithError(err).Error("Failed to write CI boundary output")
	}

	if len(records) > 0 {
		notifier.SendSummary(report.Summary(records))
	}

	logScanOutcome(scanReport)

	return metrics.NewMetric(scanReport)
}

// logScanOutcome summarizes the session states for the console.
func logScanOutcome(scanReport *session.Report) {
	logrus.WithFields(logrus.Fields{
		"updated": len(scanReport.Updated()),
		"fresh":   len(scanReport.Fresh()),
		"skipped": len(scanReport.Skipped()),
		"unknown": len(scanReport.Unknown()),
		"failed":  len(scanReport.Failed()),
	}).Info("Scan outcome")
}
