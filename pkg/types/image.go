package types

import "strings"

// FloatingTag is the unversioned marker that disqualifies a service from
// update checks. A reference carrying it is never considered for update.
const FloatingTag = "latest"

// ImageReference is a parsed container image reference.
//
// Name preserves the repository exactly as it was written in the manifest
// (prefix included, tag excluded) so that a rewrite only ever touches the
// tag. Path is the canonical, prefix-stripped repository path used for
// registry lookups, with the implicit library/ namespace made explicit for
// official Docker Hub images.
type ImageReference struct {
	Name     string        // Repository as written in the manifest, without tag.
	Prefix   string        // Known registry prefix stripped from Name, or empty.
	Path     string        // Canonical repository path for registry lookups.
	Tag      string        // Current tag, never empty and never the floating marker.
	Registry RegistryClass // Registry behavior selected at parse time.
}

// Key returns the short registry-agnostic identifier used for version
// pattern lookups: the last path segment.
func (r ImageReference) Key() string {
	if idx := strings.LastIndex(r.Path, "/"); idx >= 0 {
		return r.Path[idx+1:]
	}

	return r.Path
}

// String reassembles the reference as it would appear in a manifest.
func (r ImageReference) String() string {
	return r.Name + ":" + r.Tag
}

// WithTag returns the manifest representation of the reference with the
// given tag substituted for the current one.
func (r ImageReference) WithTag(tag string) string {
	return r.Name + ":" + tag
}
