// Package registry constructs the tag provider matching a parsed image
// reference. The registry class is decided once at parse time; this
// package only maps the closed set of classes to provider
// implementations.
package registry

import (
	"net/http"

	"github.com/justpow98/fleetwatch/pkg/registry/auth"
	"github.com/justpow98/fleetwatch/pkg/registry/dockerhub"
	"github.com/justpow98/fleetwatch/pkg/registry/ghcr"
	"github.com/justpow98/fleetwatch/pkg/registry/ratelimit"
	"github.com/justpow98/fleetwatch/pkg/types"
)

// ProviderFactory builds tag providers that share one HTTP client, one
// rate limiter, and one credential set across a scan.
type ProviderFactory struct {
	client  *http.Client
	limiter *ratelimit.Limiter
	creds   auth.Credentials
}

// NewProviderFactory creates a factory. A nil client leaves each provider
// to construct its own with the provider's default timeout.
func NewProviderFactory(client *http.Client, limiter *ratelimit.Limiter, creds auth.Credentials) *ProviderFactory {
	return &ProviderFactory{client: client, limiter: limiter, creds: creds}
}

// For returns the provider serving the reference's registry class.
// Unrecognized classes fall back to the Docker Hub provider, matching the
// parser's default for unprefixed references.
func (f *ProviderFactory) For(ref types.ImageReference) types.TagProvider {
	switch ref.Registry {
	case types.RegistryGHCR:
		return ghcr.New(f.client, f.limiter, f.creds)
	default:
		return dockerhub.New(f.client, f.limiter, f.creds)
	}
}
