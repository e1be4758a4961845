// Package logging writes the startup information for Fleetwatch: version,
// run mode, schedule and credential presence.
package logging

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/justpow98/fleetwatch/pkg/registry/auth"
)

// WriteStartupMessage logs startup information based on configuration
// flags. Credential presence is reported, credential values never are.
func WriteStartupMessage(
	c *cobra.Command,
	sched time.Time,
	baseDir string,
	creds auth.Credentials,
	version string,
) {
	noStartupMessage, _ := c.PersistentFlags().GetBool("no-startup-message")
	if noStartupMessage {
		return
	}

	logrus.Info("Fleetwatch ", version)

	logrus.WithFields(logrus.Fields{
		"base_dir":       baseDir,
		"github_token":   creds.HasGitHub(),
		"dockerhub_auth": creds.HasDockerHub(),
	}).Info("Scanning service manifests for image updates")

	if monitorOnly, _ := c.PersistentFlags().GetBool("monitor-only"); monitorOnly {
		logrus.Info("Monitor only: manifests will not be rewritten")
	}

	if sched.IsZero() {
		logrus.Info("Running a one time scan.")
	} else {
		logrus.Info("Scheduling first run: " + sched.Format("2006-01-02 15:04:05 -0700 MST"))
	}

	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		logrus.Warn(
			"Trace level enabled: log will include sensitive information as credentials and tokens",
		)
	}
}
