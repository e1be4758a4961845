// Package imageref parses container image strings from manifests into
// typed references. Parsing strips known registry prefixes, separates the
// tag, and decides the registry class exactly once; later components never
// re-inspect the raw string.
package imageref

import (
	"errors"
	"strings"

	"github.com/distribution/reference"
	"github.com/sirupsen/logrus"

	"github.com/justpow98/fleetwatch/pkg/types"
)

// Static errors for references that are excluded from update checks.
var (
	// ErrEmptyImage indicates the service declared no image string.
	ErrEmptyImage = errors.New("empty image reference")
	// ErrNoTag indicates the reference carries no tag; a tag is never guessed.
	ErrNoTag = errors.New("image reference has no tag")
	// ErrFloatingTag indicates the reference is pinned to the floating marker.
	ErrFloatingTag = errors.New("image reference uses floating tag")
)

// knownPrefixes maps the registry prefixes recognized in manifests to the
// registry class that serves them. lscr.io redirects to Docker Hub, so it
// shares that class.
var knownPrefixes = map[string]types.RegistryClass{
	"docker.io/":               types.RegistryDockerHub,
	"registry.hub.docker.com/": types.RegistryDockerHub,
	"ghcr.io/":                 types.RegistryGHCR,
	"lscr.io/":                 types.RegistryDockerHub,
}

// Parse converts a manifest image string of the form
// [registry-prefix/]repository[:tag] into a typed reference.
//
// References without a tag or pinned to the floating marker are rejected
// with ErrNoTag or ErrFloatingTag; callers treat both as skip conditions,
// never as failures.
func Parse(image string) (types.ImageReference, error) {
	image = strings.TrimSpace(image)
	if image == "" {
		return types.ImageReference{}, ErrEmptyImage
	}

	name, tag, found := splitTag(image)
	if !found {
		return types.ImageReference{}, ErrNoTag
	}

	if tag == types.FloatingTag {
		return types.ImageReference{}, ErrFloatingTag
	}

	prefix, class := stripPrefix(name)
	stripped := strings.TrimPrefix(name, prefix)

	ref := types.ImageReference{
		Name:     name,
		Prefix:   prefix,
		Path:     canonicalPath(stripped),
		Tag:      tag,
		Registry: class,
	}

	logrus.WithFields(logrus.Fields{
		"image":    image,
		"path":     ref.Path,
		"tag":      ref.Tag,
		"registry": ref.Registry,
	}).Debug("Parsed image reference")

	return ref, nil
}

// splitTag separates the tag on the final colon. The known prefixes carry
// no port component, so the final colon can only belong to the tag.
func splitTag(image string) (string, string, bool) {
	idx := strings.LastIndex(image, ":")
	if idx < 0 || idx == len(image)-1 {
		return image, "", false
	}

	return image[:idx], image[idx+1:], true
}

// stripPrefix returns the recognized registry prefix of the name, if any,
// together with the registry class it selects. Unprefixed references are
// Docker Hub images.
func stripPrefix(name string) (string, types.RegistryClass) {
	for prefix, class := range knownPrefixes {
		if strings.HasPrefix(name, prefix) {
			return prefix, class
		}
	}

	return "", types.RegistryDockerHub
}

// canonicalPath normalizes a prefix-stripped repository path for registry
// lookups, making the implicit library/ namespace of official Docker Hub
// images explicit. Paths that fail strict reference parsing are kept
// verbatim; the provider will degrade on lookup instead.
func canonicalPath(stripped string) string {
	named, err := reference.ParseNormalizedNamed(stripped)
	if err != nil {
		logrus.WithError(err).
			WithField("path", stripped).
			Debug("Could not normalize repository path, keeping it verbatim")

		return stripped
	}

	return reference.Path(named)
}
