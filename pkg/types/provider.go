package types

import "context"

// TagProvider lists candidate tags for an image path on one registry.
//
// The returned order is registry-defined and must not be assumed sorted.
// Network and HTTP failures degrade to an empty candidate list inside the
// provider; a non-nil error is returned only when a request could not even
// be constructed.
type TagProvider interface {
	ListTags(ctx context.Context, imagePath string) ([]string, error)
}
