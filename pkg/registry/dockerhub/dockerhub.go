// Package dockerhub lists candidate tags from the Docker Hub repository
// API. Listings are paginated, optionally basic-authenticated, and rate
// limited under the dockerhub class. Network and HTTP failures degrade to
// an empty candidate list; they never escalate past this boundary.
package dockerhub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/justpow98/fleetwatch/pkg/registry/auth"
	"github.com/justpow98/fleetwatch/pkg/registry/ratelimit"
	"github.com/justpow98/fleetwatch/pkg/types"
)

// DefaultEndpoint is the production Docker Hub API endpoint.
const DefaultEndpoint = "https://registry.hub.docker.com"

const (
	// pageSize is the maximum page size the tags endpoint accepts.
	pageSize = 100
	// maxPages bounds pagination so a pathological repository cannot stall
	// a scan.
	maxPages = 10
	// rateLimitBackoff is slept exactly once when Docker Hub answers 429.
	rateLimitBackoff = 30 * time.Second
	// requestTimeout caps each individual tags request.
	requestTimeout = 15 * time.Second
)

// tagsPage is one page of the Docker Hub tags listing.
type tagsPage struct {
	Next    string `json:"next"`
	Results []struct {
		Name string `json:"name"`
	} `json:"results"`
}

// Provider lists tags for Docker Hub hosted images.
type Provider struct {
	client     *http.Client
	limiter    *ratelimit.Limiter
	authHeader string
	endpoint   string
	sleep      func(time.Duration)
}

// New creates a Docker Hub tag provider. A nil client gets a default one
// with the standard request timeout. Credentials are optional; without
// them listings run unauthenticated.
func New(client *http.Client, limiter *ratelimit.Limiter, creds auth.Credentials) *Provider {
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}

	return &Provider{
		client:     client,
		limiter:    limiter,
		authHeader: creds.BasicAuthHeader(),
		endpoint:   DefaultEndpoint,
		sleep:      time.Sleep,
	}
}

// ListTags returns the candidate tag names for the repository path,
// following pagination up to the page bound. The order is the one Docker
// Hub returns; callers must not assume it is sorted.
func (p *Provider) ListTags(ctx context.Context, imagePath string) ([]string, error) {
	clog := logrus.WithFields(logrus.Fields{
		"image":    imagePath,
		"registry": types.RegistryDockerHub,
	})

	url := fmt.Sprintf("%s/v2/repositories/%s/tags?page_size=%d", p.endpoint, imagePath, pageSize)

	var tags []string

	for page := 0; url != "" && page < maxPages; page++ {
		p.limiter.Wait(types.RegistryDockerHub)

		result, err := p.fetchPage(ctx, url)
		if err != nil {
			return nil, err
		}

		if result == nil {
			break
		}

		for _, tag := range result.Results {
			tags = append(tags, tag.Name)
		}

		url = result.Next
	}

	clog.WithField("candidates", len(tags)).Debug("Listed Docker Hub tags")

	return tags, nil
}

// fetchPage retrieves one page of the tags listing. A 429 answer triggers
// exactly one backoff sleep and one retry; any other failure degrades to a
// nil page. The returned error is non-nil only when the request could not
// be constructed.
func (p *Provider) fetchPage(ctx context.Context, url string) (*tagsPage, error) {
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
			Warn("Docker Hub rate limit hit, backing off once")
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
		}).Info("Docker Hub tag listing failed, no candidates")

		return nil, nil
	}

	page := &tagsPage{}
	if err := json.NewDecoder(res.Body).Decode(page); err != nil {
		logrus.WithError(err).
			WithField("url", url).
			Info("Malformed Docker Hub tag listing, no candidates")

		return nil, nil
	}

	return page, nil
}

// get performs a single request, degrading transport failures to a nil
// response.
func (p *Provider) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building Docker Hub request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if p.authHeader != "" {
		req.Header.Set("Authorization", p.authHeader)
	}

	res, err := p.client.Do(req)
	if err != nil {
		logrus.WithError(err).
			WithField("url", url).
			Info("Docker Hub request failed, no candidates")

		return nil, nil
	}

	return res, nil
}

func closeBody(res *http.Response) {
	if res.Body != nil {
		_ = res.Body.Close()
	}
}
