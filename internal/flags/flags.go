// Package flags manages command-line flags and environment variables for
// Fleetwatch configuration.
package flags

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// defaultProtectedCategory is the category never mutated automatically:
// the self-hosted CI runner would pull its own rug.
const defaultProtectedCategory = "github-runner"

// errInvalidLogFormat indicates an invalid log format was specified.
var errInvalidLogFormat = errors.New("invalid log format specified")

// errInvalidLogLevel indicates an invalid log level was specified.
var errInvalidLogLevel = errors.New("invalid log level specified")

// errFlagRead indicates a failure to read a flag's value.
var errFlagRead = errors.New("failed to read flag value")

// RegisterSystemFlags adds the flags that control Fleetwatch's program
// flow to the root command.
func RegisterSystemFlags(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()

	flags.StringP(
		"base-dir",
		"b",
		envString("FLEETWATCH_BASE_DIR"),
		"Directory holding the services tree; resolved from the CI workspace when unset")

	flags.StringSliceP(
		"protected-categories",
		"p",
		protectedCategoriesDefault(),
		"Manifest categories that are never mutated")

	flags.BoolP(
		"monitor-only",
		"m",
		envBool("FLEETWATCH_MONITOR_ONLY"),
		"Evaluate and report updates without rewriting manifests")

	flags.StringP(
		"schedule",
		"s",
		envString("FLEETWATCH_SCHEDULE"),
		"Cron expression for periodic scans; a single scan runs when unset")

	flags.IntP(
		"interval",
		"i",
		envInt("FLEETWATCH_INTERVAL"),
		"Scan interval in seconds, an alternative to --schedule")

	flags.StringSliceP(
		"notification-url",
		"n",
		envStringSlice("FLEETWATCH_NOTIFICATION_URL"),
		"Shoutrrr URLs notified with the scan summary")

	flags.BoolP(
		"no-startup-message",
		"",
		envBool("FLEETWATCH_NO_STARTUP_MESSAGE"),
		"Suppress the startup message")

	flags.StringP(
		"log-level",
		"",
		viper.GetString("FLEETWATCH_LOG_LEVEL"),
		"Log verbosity: trace, debug, info, warn, error, fatal or panic")

	flags.StringP(
		"log-format",
		"l",
		viper.GetString("FLEETWATCH_LOG_FORMAT"),
		"Console log format: Auto, LogFmt, Pretty or JSON")

	flags.BoolP(
		"debug",
		"d",
		envBool("FLEETWATCH_DEBUG"),
		"Enable debug mode with verbose logging")

	flags.BoolP(
		"trace",
		"",
		envBool("FLEETWATCH_TRACE"),
		"Enable trace mode with very verbose logging - caution, exposes credentials")

	flags.BoolP(
		"no-color",
		"",
		envBool("NO_COLOR"),
		"Disable ANSI color escape codes in log output")
}

// SetDefaults configures default values for environment variables,
// ensuring consistent fallback behavior when flags and environment are
// both unset.
func SetDefaults() {
	viper.AutomaticEnv()
	viper.SetDefault("FLEETWATCH_LOG_LEVEL", "info")
	viper.SetDefault("FLEETWATCH_LOG_FORMAT", "auto")
	viper.SetDefault("FLEETWATCH_PROTECTED_CATEGORIES", []string{defaultProtectedCategory})
}

// ProcessFlagAliases synchronizes flag values based on helper flags. It
// folds --interval into --schedule and maps the verbosity switches onto
// --log-level, exiting on contradictory configuration.
func ProcessFlagAliases(flags *pflag.FlagSet) {
	scheduleChanged := flags.Changed("schedule")
	if val, _ := flags.GetString("schedule"); val != "" {
		scheduleChanged = true
	}

	intervalChanged := flags.Changed("interval")
	if val, _ := flags.GetInt("interval"); val != 0 {
		intervalChanged = true
	}

	if intervalChanged && scheduleChanged {
		logrus.Fatal("Only schedule or interval can be defined, not both.")
	}

	if intervalChanged {
		interval, _ := flags.GetInt("interval")
		if err := flags.Set("schedule", fmt.Sprintf("@every %ds", interval)); err != nil {
			logrus.Errorf("Failed to set schedule flag: %v", err)
		}
	}

	if flagIsEnabled(flags, "debug") {
		if err := flags.Set("log-level", "debug"); err != nil {
			logrus.Errorf("Failed to set log-level flag: %v", err)
		}
	}

	if flagIsEnabled(flags, "trace") {
		if err := flags.Set("log-level", "trace"); err != nil {
			logrus.Errorf("Failed to set log-level flag: %v", err)
		}
	}
}

// SetupLogging configures the global logger based on log-related flags.
// It sets the log format and level, returning an error for invalid
// configurations.
func SetupLogging(flags *pflag.FlagSet) error {
	logFormat, err := flags.GetString("log-format")
	if err != nil {
		return fmt.Errorf("%w: %w", errFlagRead, err)
	}

	noColor, err := flags.GetBool("no-color")
	if err != nil {
		return fmt.Errorf("%w: %w", errFlagRead, err)
	}

	if err := configureLogFormat(logFormat, noColor); err != nil {
		return err
	}

	rawLogLevel, err := flags.GetString("log-level")
	if err != nil {
		return fmt.Errorf("%w: %w", errFlagRead, err)
	}

	logLevel, err := logrus.ParseLevel(rawLogLevel)
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidLogLevel, err)
	}

	logrus.SetLevel(logLevel)

	return nil
}

// configureLogFormat sets the logrus formatter based on the specified
// format and color preference. It returns an error if the format is
// invalid.
func configureLogFormat(logFormat string, noColor bool) error {
	switch strings.ToLower(logFormat) {
	case "auto":
		logrus.SetFormatter(&logrus.TextFormatter{
			DisableColors:             noColor,
			EnvironmentOverrideColors: true,
		})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "logfmt":
		logrus.SetFormatter(&logrus.TextFormatter{
			DisableColors: true,
			FullTimestamp: true,
		})
	case "pretty":
		logrus.SetFormatter(&logrus.TextFormatter{
			ForceColors:   !noColor,
			FullTimestamp: false,
		})
	default:
		return fmt.Errorf("%w: %s", errInvalidLogFormat, logFormat)
	}

	return nil
}

// flagIsEnabled checks if a boolean flag is set to true. It exits with a
// fatal error if the flag is not defined.
func flagIsEnabled(flags *pflag.FlagSet, name string) bool {
	value, err := flags.GetBool(name)
	if err != nil {
		logrus.Fatalf("The flag %q is not defined", name)
	}

	return value
}

// protectedCategoriesDefault reads the protected categories from the
// environment, falling back to the built-in default.
func protectedCategoriesDefault() []string {
	if categories := envStringSlice("FLEETWATCH_PROTECTED_CATEGORIES"); len(categories) > 0 {
		return categories
	}

	return []string{defaultProtectedCategory}
}

// envString retrieves a string value from an environment variable via
// Viper.
func envString(key string) string {
	viper.MustBindEnv(key)

	return viper.GetString(key)
}

// envStringSlice retrieves a string slice from an environment variable
// via Viper.
func envStringSlice(key string) []string {
	viper.MustBindEnv(key)

	return viper.GetStringSlice(key)
}

// envInt retrieves an integer value from an environment variable via
// Viper.
func envInt(key string) int {
	viper.MustBindEnv(key)

	return viper.GetInt(key)
}

// envBool retrieves a boolean value from an environment variable via
// Viper.
func envBool(key string) bool {
	viper.MustBindEnv(key)

	return viper.GetBool(key)
}
