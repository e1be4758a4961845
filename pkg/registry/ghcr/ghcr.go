// Package ghcr lists candidate tags from the GitHub container registry via
// the package-versions API. Each version entry may carry zero or more
// tags; all of them are flattened into the candidate sequence. Failures
// degrade to an empty candidate list and never escalate past this
// boundary.
package ghcr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/justpow98/fleetwatch/pkg/registry/auth"
	"github.com/justpow98/fleetwatch/pkg/registry/ratelimit"
	"github.com/justpow98/fleetwatch/pkg/types"
)

// DefaultEndpoint is the production GitHub API endpoint.
const DefaultEndpoint = "https://api.github.com"

const (
	// pageSize is the maximum page size the versions endpoint accepts.
	pageSize = 100
	// rateLimitBackoff is slept exactly once when the API answers 429. GHCR
	// throttles harder than Docker Hub, hence the longer backoff.
	rateLimitBackoff = 60 * time.Second
	// requestTimeout caps each versions request.
	requestTimeout = 20 * time.Second
)

// packageVersion is one entry of the package-versions listing.
type packageVersion struct {
	Metadata struct {
		Container struct {
			Tags []string `json:"tags"`
		} `json:"container"`
	} `json:"metadata"`
}

// Provider lists tags for GHCR hosted images.
type Provider struct {
	client     *http.Client
	limiter    *ratelimit.Limiter
	authHeader string
	endpoint   string
	sleep      func(time.Duration)
}

// New creates a GHCR tag provider. A nil client gets a default one with
// the standard request timeout. Without a token the API answers 401 and
// the listing degrades to no candidates.
func New(client *http.Client, limiter *ratelimit.Limiter, creds auth.Credentials) *Provider {
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}

	return &Provider{
		client:     client,
		limiter:    limiter,
		authHeader: creds.BearerHeader(),
		endpoint:   DefaultEndpoint,
		sleep:      time.Sleep,
	}
}

// ListTags returns the candidate tag names for an owner/package path,
// flattening the tag lists of all returned version entries. The order is
// the one the API returns; callers must not assume it is sorted.
func (p *Provider) ListTags(ctx context.Context, imagePath string) ([]string, error) {
	clog := logrus.WithFields(logrus.Fields{
		"image":    imagePath,
		"registry": types.RegistryGHCR,
	})

	owner, pkg, ok := splitOwnerPackage(imagePath)
	if !ok {
		clog.Info("GHCR image path has no owner, no candidates")

		return nil, nil
	}

	requestURL := fmt.Sprintf("%s/users/%s/packages/container/%s/versions?per_page=%d",
		p.endpoint, owner, url.PathEscape(pkg), pageSize)

	p.limiter.Wait(types.RegistryGHCR)

	versions, err := p.fetchVersions(ctx, requestURL)
	if err != nil {
		return nil, err
	}

	var tags []string
	for _, version := range versions {
		tags = append(tags, version.Metadata.Container.Tags...)
	}

	clog.WithField("candidates", len(tags)).Debug("Listed GHCR tags")

	return tags, nil
}

// fetchVersions retrieves the package-versions listing. A 429 answer
// triggers exactly one backoff sleep and one retry; any other failure
// degrades to a nil listing. The returned error is non-nil only when the
// request could not be constructed.
func (p *Provider) fetchVersions(ctx context.Context, url string) ([]packageVersion, error) {
	res, err := p.get(ctx, url)
	if err != nil {
		return nil, err
	}

	if res == nil {
		return nil, nil
	}

	if res.StatusCode == http.StatusTooManyRequests {
		closeBody(res)
		logrus.WithField("url", url).
			Warn("GHCR rate limit hit, backing off once")
		p.sleep(rateLimitBackoff)

		if res, err = p.get(ctx, url); err != nil || res == nil {
			return nil, err
		}
	}

	defer closeBody(res)

	if res.StatusCode != http.StatusOK {
		logrus.WithFields(logrus.Fields{
			"url":    url,
			"status": res.StatusCode,
		}).Info("GHCR version listing failed, no candidates")

		return nil, nil
	}

	var versions []packageVersion
	if err := json.NewDecoder(res.Body).Decode(&versions); err != nil {
		logrus.WithError(err).
			WithField("url", url).
			Info("Malformed GHCR version listing, no candidates")

		return nil, nil
	}

	return versions, nil
}

// get performs a single request, degrading transport failures to a nil
// response.
func (p *Provider) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building GHCR request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")

	if p.authHeader != "" {
		req.Header.Set("Authorization", p.authHeader)
	}

	res, err := p.client.Do(req)
	if err != nil {
		logrus.WithError(err).
			WithField("url", url).
			Info("GHCR request failed, no candidates")

		return nil, nil
	}

	return res, nil
}

// splitOwnerPackage separates an owner/package path. Deeper paths keep the
// remainder as the package name, which GHCR allows for nested images.
func splitOwnerPackage(imagePath string) (string, string, bool) {
	owner, pkg, found := strings.Cut(imagePath, "/")
	if !found || owner == "" || pkg == "" {
		return "", "", false
	}

	return owner, pkg, true
}

func closeBody(res *http.Response) {
	if res.Body != nil {
		_ = res.Body.Close()
	}
}
