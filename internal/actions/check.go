// Package actions drives the fleet scan: manifest discovery, per-service
// evaluation with fault isolation, update decisions, and manifest
// mutation staging.
package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/justpow98/fleetwatch/pkg/imageref"
	"github.com/justpow98/fleetwatch/pkg/manifest"
	"github.com/justpow98/fleetwatch/pkg/session"
	"github.com/justpow98/fleetwatch/pkg/types"
	"github.com/justpow98/fleetwatch/pkg/versions"
)

// ProviderSource yields the tag provider for a parsed image reference.
type ProviderSource interface {
	For(ref types.ImageReference) types.TagProvider
}

// ChangelogSource retrieves sanitized release notes between two versions.
type ChangelogSource interface {
	ReleasesBetween(ctx context.Context, repository, oldVersion, newVersion string) []types.ReleaseNote
}

// ScanConfig carries everything a scan needs. The tables are loaded once
// and treated as immutable for the lifetime of the scan.
type ScanConfig struct {
	BaseDir             string
	ProtectedCategories []string
	MonitorOnly         bool
	Patterns            *versions.PatternSet
	SourceRepos         map[string]string
	Providers           ProviderSource
	Changelogs          ChangelogSource
}

// DefaultSourceRepos maps image paths to the GitHub repositories their
// release notes live in. Images without a mapping simply get no
// changelog.
func DefaultSourceRepos() map[string]string {
	return map[string]string{
		"lissy93/dashy":                          "lissy93/dashy",
		"filebrowser/filebrowser":                "filebrowser/filebrowser",
		"xavierh/goaccess-for-nginxproxymanager": "xavier-hernandez/goaccess-for-nginxproxymanager",
	}
}

// CheckForUpdates evaluates every manifest under the base directory in
// sorted path order and returns the scan report together with the
// accepted update records. Failures are isolated at their boundary: a bad
// manifest skips that manifest, a bad service skips that service, and a
// total inability to enumerate manifests yields an empty result, never an
// abort.
func CheckForUpdates(ctx context.Context, config ScanConfig) (*session.Report, []types.UpdateRecord) {
	report := &session.Report{}

	paths, err := manifest.Discover(config.BaseDir)
	if err != nil {
		logrus.WithError(err).Error("Could not enumerate manifests, reporting no updates")

		return report, nil
	}

	var records []types.UpdateRecord

	for _, path := range paths {
		records = append(records, checkManifest(ctx, config, path, report)...)
	}

	logrus.WithFields(logrus.Fields{
		"manifests": len(paths),
		"services":  len(report.All()),
		"updates":   len(records),
	}).Info("Scan completed")

	return report, records
}

// checkManifest evaluates one manifest end to end: every service in
// declared order, then a single write when at least one service changed.
// A write failure is reported and does not discard decisions already made
// for other manifests.
func checkManifest(ctx context.Context, config ScanConfig, path string, report *session.Report) []types.UpdateRecord {
	clog := logrus.WithField("manifest", path)

	file, err := manifest.Load(path)
	if err != nil {
		clog.WithError(err).Warn("Skipping unreadable manifest")

		return nil
	}

	protected := isProtected(path, config.ProtectedCategories)
	if protected {
		clog.Debug("Manifest is in a protected category, mutation disabled")
	}

	var records []types.UpdateRecord

	for _, service := range file.Services() {
		result, record := evaluateService(ctx, config, file, path, service, protected)
		report.Add(result)

		if record != nil {
			records = append(records, *record)
		}
	}

	if file.Modified() && !config.MonitorOnly {
		if err := file.Save(); err != nil {
			clog.WithError(err).Error("Failed to rewrite manifest, decisions for other manifests stand")
		}
	}

	return records
}

// evaluateService runs the skip rules and the resolution pipeline for one
// service. Any panic is caught here, logged, and reported as a failed
// evaluation; it never aborts sibling services or other manifests.
func evaluateService(
	ctx context.Context,
	config ScanConfig,
	file *manifest.File,
	path string,
	service manifest.Service,
	protected bool,
) (result session.ServiceReport, record *types.UpdateRecord) {
	result = session.ServiceReport{
		Service:  service.Name,
		Manifest: path,
		Image:    service.Image,
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			logrus.WithFields(logrus.Fields{
				"manifest": path,
				"service":  service.Name,
				"panic":    recovered,
			}).Error("Service evaluation failed, isolating")

			result.State = session.StateFailed
			result.Reason = fmt.Sprint(recovered)
			record = nil
		}
	}()

	clog := logrus.WithFields(logrus.Fields{
		"manifest": path,
		"service":  service.Name,
	})

	// Skip rules run first and unconditionally, before any network call.
	if service.Image == "" {
		result.State = session.StateSkipped
		result.Reason = "no image field"

		return result, nil
	}

	ref, err := imageref.Parse(service.Image)
	switch {
	case errors.Is(err, imageref.ErrFloatingTag):
		result.State = session.StateSkipped
		result.Reason = "floating tag"

		return result, nil
	case errors.Is(err, imageref.ErrNoTag), errors.Is(err, imageref.ErrEmptyImage):
		result.State = session.StateSkipped
		result.Reason = "no tag"

		return result, nil
	case err != nil:
		result.State = session.StateSkipped
		result.Reason = err.Error()

		return result, nil
	}

	if protected {
		result.State = session.StateSkipped
		result.Reason = "protected category"

		return result, nil
	}

	result.OldVersion = ref.Tag

	candidates, err := config.Providers.For(ref).ListTags(ctx, ref.Path)
	if err != nil {
		clog.WithError(err).Warn("Tag listing failed")

		result.State = session.StateUnknown
		result.Reason = err.Error()

		return result, nil
	}

	matched := config.Patterns.Resolve(ref.Key(), candidates)

	latest, ok := versions.Latest(matched)
	if !ok {
		clog.Debug("No versioned candidates, update status unknown")

		result.State = session.StateUnknown
		result.Reason = "no versioned candidates"

		return result, nil
	}

	if !versions.IsNewer(ref.Tag, latest) {
		clog.WithField("tag", ref.Tag).Debug("Service is up to date")

		result.State = session.StateFresh

		return result, nil
	}

	accepted := types.UpdateRecord{
		Service:      service.Name,
		ManifestPath: path,
		OldVersion:   ref.Tag,
		NewVersion:   latest,
		ImageName:    ref.Path,
	}

	// Changelog is enrichment: fetched only when a source repository is
	// mapped for the image, and never a gate on the update itself.
	if repository, mapped := config.SourceRepos[ref.Path]; mapped && config.Changelogs != nil {
		accepted.SourceRepository = repository
		accepted.Changelog = config.Changelogs.ReleasesBetween(ctx, repository, ref.Tag, latest)
	}

	if err := file.SetImage(service.Name, ref.WithTag(latest)); err != nil {
		clog.WithError(err).Error("Could not stage manifest rewrite")

		result.State = session.StateFailed
		result.Reason = err.Error()

		return result, nil
	}

	clog.WithFields(logrus.Fields{
		"from": ref.Tag,
		"to":   latest,
	}).Info("Update accepted")

	result.State = session.StateUpdated
	result.NewVersion = latest

	return result, &accepted
}

// isProtected reports whether the manifest path matches any protected
// category substring. Protected manifests are never mutated, independent
// of any version finding.
func isProtected(path string, categories []string) bool {
	for _, category := range categories {
		if category != "" && strings.Contains(path, category) {
			return true
		}
	}

	return false
}
