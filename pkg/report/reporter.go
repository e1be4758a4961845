package report

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/justpow98/fleetwatch/pkg/types"
)

// Boundary contract with the consuming CI pipeline: exact key names, one
// KEY=VALUE line each, appended to the environment file.
const (
	// EnvFileVariable names the environment variable pointing at the CI
	// boundary file.
	EnvFileVariable = "GITHUB_ENV"
	// fallbackEnvFile receives the boundary lines outside CI.
	fallbackEnvFile = "/tmp/github_env"

	keyUpdatesFound  = "UPDATES_FOUND"
	keyUpdateDate    = "UPDATE_DATE"
	keyUpdateSummary = "UPDATE_SUMMARY"
)

// Reporter aggregates accepted update records and writes the CI boundary
// lines.
type Reporter struct {
	envFile string
	now     func() time.Time
}

// NewReporter creates a reporter writing to the file named by GITHUB_ENV,
// or the fallback path when unset.
func NewReporter() *Reporter {
	envFile := os.Getenv(EnvFileVariable)
	if envFile == "" {
		envFile = fallbackEnvFile
	}

	return NewFileReporter(envFile)
}

// NewFileReporter creates a reporter writing to an explicit file path.
func NewFileReporter(path string) *Reporter {
	return &Reporter{envFile: path, now: time.Now}
}

// Write appends the boundary lines for the scan outcome. With no records
// only the negative flag is written; otherwise the flag, the ISO date and
// the sanitized summary line are emitted.
func (r *Reporter) Write(records []types.UpdateRecord) error {
	lines := []string{keyUpdatesFound + "=false"}

	if len(records) > 0 {
		summary := Summary(records)

		for _, record := range records {
			logrus.WithFields(logrus.Fields{
				"service": record.Service,
				"from":    record.OldVersion,
				"to":      record.NewVersion,
			}).Info("Update found")
		}

		lines = []string{
			keyUpdatesFound + "=true",
			keyUpdateDate + "=" + r.now().Format("2006-01-02"),
			keyUpdateSummary + "=" + summary,
		}
	}

	file, err := os.OpenFile(r.envFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening boundary file %s: %w", r.envFile, err)
	}
	defer file.Close()

	if _, err := file.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		return fmt.Errorf("writing boundary file %s: %w", r.envFile, err)
	}

	logrus.WithFields(logrus.Fields{
		"file":    r.envFile,
		"updates": len(records),
	}).Debug("Wrote CI boundary lines")

	return nil
}

// Summary builds the sanitized one-line summary: total count, per-category
// counts, and one fragment per update. If detailed construction fails for
// any reason the minimal fallback (total count only) is returned instead
// of aborting the run.
func Summary(records []types.UpdateRecord) (summary string) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logrus.WithField("panic", recovered).
				Error("Summary construction failed, using minimal fallback")

			summary = fallbackSummary(len(records))
		}
	}()

	if len(records) == 0 {
		return Sanitize("All services are up to date")
	}

	counts := make(map[string]int)
	for _, record := range records {
		counts[categoryOf(record.ManifestPath)]++
	}

	categories := make([]string, 0, len(counts))
	for category := range counts {
		categories = append(categories, category)
	}

	sort.Strings(categories)

	titler := cases.Title(language.English)

	categoryParts := make([]string, 0, len(categories))
	for _, category := range categories {
		categoryParts = append(categoryParts,
			fmt.Sprintf("%s: %d", titler.String(category), counts[category]))
	}

	updateParts := make([]string, 0, len(records))
	for _, record := range records {
		updateParts = append(updateParts, fmt.Sprintf("%s %s to %s",
			record.Service, record.OldVersion, record.NewVersion))
	}

	return Sanitize(fmt.Sprintf("%d update(s) | %s | %s",
		len(records),
		strings.Join(categoryParts, ", "),
		strings.Join(updateParts, "; ")))
}

// fallbackSummary is the minimal degraded summary: the total count only.
func fallbackSummary(total int) string {
	return Sanitize(fmt.Sprintf("%d update(s) available", total))
}

// categoryOf derives the manifest category: the first path segment below
// the services directory, or "uncategorized" when the path does not
// follow the layout.
func categoryOf(manifestPath string) string {
	segments := strings.Split(strings.ReplaceAll(manifestPath, "\\", "/"), "/")
	for i, segment := range segments {
		if segment == "services" && i+1 < len(segments) {
			return segments[i+1]
		}
	}

	return "uncategorized"
}
