// Package changelog retrieves release notes between two versions from the
// GitHub releases API.
//
// Known limitation, preserved deliberately: the (old, new] range filter
// compares cleaned tag strings lexically, while the update decision itself
// uses numeric comparison. Multi-digit boundaries can therefore admit or
// drop an edge release. The behavior is kept as-is rather than silently
// unified with the comparator.
package changelog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/justpow98/fleetwatch/pkg/registry/auth"
	"github.com/justpow98/fleetwatch/pkg/registry/ratelimit"
	"github.com/justpow98/fleetwatch/pkg/report"
	"github.com/justpow98/fleetwatch/pkg/types"
	"github.com/justpow98/fleetwatch/pkg/versions"
)

// DefaultEndpoint is the production GitHub API endpoint.
const DefaultEndpoint = "https://api.github.com"

const (
	// maxEntries caps the kept release notes to the most recently
	// encountered ones.
	maxEntries = 3
	// pageSize is the single page fetched from the releases listing.
	pageSize = 30
	// requestTimeout caps the releases request.
	requestTimeout = 15 * time.Second
	// publishedDateLength trims the timestamp to its ISO date part.
	publishedDateLength = 10
)

// release is one entry of the GitHub releases listing.
type release struct {
	TagName     string `json:"tag_name"`
	Name        string `json:"name"`
	Body        string `json:"body"`
	HTMLURL     string `json:"html_url"`
	PublishedAt string `json:"published_at"`
}

// Fetcher retrieves and sanitizes release notes. Calls run under the
// github_api rate-limit class.
type Fetcher struct {
	client     *http.Client
	limiter    *ratelimit.Limiter
	authHeader string
	endpoint   string
}

// NewFetcher creates a release-notes fetcher. A nil client gets a default
// one with the standard request timeout.
func NewFetcher(client *http.Client, limiter *ratelimit.Limiter, creds auth.Credentials) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}

	return &Fetcher{
		client:     client,
		limiter:    limiter,
		authHeader: creds.BearerHeader(),
		endpoint:   DefaultEndpoint,
	}
}

// ReleasesBetween returns up to three sanitized release notes whose
// cleaned tag equals the cleaned new version or falls in the half-open
// range (old, new] under string comparison of the cleaned tags. Failures
// degrade to no notes; a changelog is enrichment, never a gate.
func (f *Fetcher) ReleasesBetween(ctx context.Context, repository, oldVersion, newVersion string) []types.ReleaseNote {
	clog := logrus.WithField("repository", repository)

	releases := f.fetchReleases(ctx, repository)
	if len(releases) == 0 {
		return nil
	}

	oldClean := versions.Clean(oldVersion)
	newClean := versions.Clean(newVersion)

	var notes []types.ReleaseNote

	for _, entry := range releases {
		if len(notes) == maxEntries {
			break
		}

		tag := versions.Clean(entry.TagName)
		if tag != newClean && !(oldClean < tag && tag <= newClean) {
			continue
		}

		note := sanitizeRelease(entry)
		if note.Version == "" || note.Name == "" {
			clog.WithField("tag", entry.TagName).
				Debug("Dropping release with unusable sanitized fields")

			continue
		}

		notes = append(notes, note)
	}

	clog.WithFields(logrus.Fields{
		"old":   oldVersion,
		"new":   newVersion,
		"notes": len(notes),
	}).Debug("Collected release notes")

	return notes
}

// fetchReleases retrieves one page of the releases listing in the order
// the API provides. Any failure degrades to an empty listing.
func (f *Fetcher) fetchReleases(ctx context.Context, repository string) []release {
	url := fmt.Sprintf("%s/repos/%s/releases?per_page=%d", f.endpoint, repository, pageSize)

	f.limiter.Wait(types.RegistryGitHubAPI)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		logrus.WithError(err).
			WithField("repository", repository).
			Info("Building releases request failed, no changelog")

		return nil
	}

	req.Header.Set("Accept", "application/vnd.github+json")

	if f.authHeader != "" {
		req.Header.Set("Authorization", f.authHeader)
	}

	res, err := f.client.Do(req)
	if err != nil {
		logrus.WithError(err).
			WithField("repository", repository).
			Info("Releases request failed, no changelog")

		return nil
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		logrus.WithFields(logrus.Fields{
			"repository": repository,
			"status":     res.StatusCode,
		}).Info("Releases listing failed, no changelog")

		return nil
	}

	var releases []release
	if err := json.NewDecoder(res.Body).Decode(&releases); err != nil {
		logrus.WithError(err).
			WithField("repository", repository).
			Info("Malformed releases listing, no changelog")

		return nil
	}

	return releases
}

// sanitizeRelease passes every free-text field through the output
// sanitizer and trims the published timestamp to its date part.
func sanitizeRelease(entry release) types.ReleaseNote {
	published := entry.PublishedAt
	if len(published) > publishedDateLength {
		published = published[:publishedDateLength]
	}

	return types.ReleaseNote{
		Version:       report.Sanitize(entry.TagName),
		Name:          report.Sanitize(entry.Name),
		Body:          report.Sanitize(entry.Body),
		URL:           report.Sanitize(entry.HTMLURL),
		PublishedDate: published,
	}
}
