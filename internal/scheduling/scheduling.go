// Package scheduling runs periodic fleet scans from a cron specification
// and handles graceful shutdown on interrupt signals. Scans never
// overlap: a lock channel skips a tick while the previous scan is still
// running, which keeps the rate limiter's per-class ordering intact.
package scheduling

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron"
	"github.com/sirupsen/logrus"

	"github.com/justpow98/fleetwatch/pkg/metrics"
)

// scanWaitTimeout bounds how long shutdown waits for a running scan.
const scanWaitTimeout = 60 * time.Second

// RunScansOnSchedule schedules periodic scans according to the cron
// specification and blocks until an interrupt signal or context
// cancellation stops the scheduler.
//
// firstRun is invoked once with the first scheduled run time, before the
// scheduler starts, so the caller can write its startup message.
func RunScansOnSchedule(
	ctx context.Context,
	scheduleSpec string,
	runScan func(context.Context) *metrics.Metric,
	firstRun func(time.Time),
) error {
	lock := make(chan bool, 1)
	lock <- true

	scheduler := cron.New()

	scanFunc := func() {
		select {
		case v := <-lock:
			defer func() { lock <- v }()

			metric := runScan(ctx)
			metrics.Default().RegisterScan(metric)
			logrus.Debug("Scan completed")
		default:
			logrus.Debug("Skipped scan, another one is still running.")
		}

		if entries := scheduler.Entries(); len(entries) > 0 {
			logrus.Debug("Scheduled next run: " + entries[0].Next.String())
		}
	}

	if err := scheduler.AddFunc(scheduleSpec, scanFunc); err != nil {
		return fmt.Errorf("failed to schedule scans: %w", err)
	}

	var nextRun time.Time
	if entries := scheduler.Entries(); len(entries) > 0 {
		nextRun = entries[0].Schedule.Next(time.Now())
	}

	firstRun(nextRun)

	scheduler.Start()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		logrus.Debug("Context canceled, stopping scheduler...")
	case <-interrupt:
		logrus.Debug("Received interrupt signal, stopping scheduler...")
	}

	scheduler.Stop()
	waitForRunningScan(ctx, lock)

	return nil
}

// waitForRunningScan blocks until a running scan returns the lock, with a
// bounded timeout so shutdown cannot hang.
func waitForRunningScan(ctx context.Context, lock chan bool) {
	select {
	case <-lock:
		logrus.Debug("Lock acquired, scan finished.")
	case <-time.After(scanWaitTimeout):
		logrus.Warn("Timeout waiting for running scan to finish, proceeding with shutdown.")
	case <-ctx.Done():
		logrus.Warn("Context cancelled while waiting for running scan.")
	}
}
