package types

// UpdateRecord is the decided, accepted version upgrade for one service.
// It is created only when the comparator judges the new version strictly
// greater than the old one, and is immutable once created.
type UpdateRecord struct {
	Service          string        // Service name.
	ManifestPath     string        // Manifest the service belongs to.
	OldVersion       string        // Tag currently pinned in the manifest.
	NewVersion       string        // Tag the service will be moved to.
	ImageName        string        // Repository path of the image.
	Changelog        []ReleaseNote // Release notes between the versions, if resolvable.
	SourceRepository string        // GitHub repository the image is built from, if mapped.
}

// ReleaseNote is one upstream release between two versions. All text
// fields are sanitized before storage.
type ReleaseNote struct {
	Version       string // Release tag, sanitized.
	Name          string // Release title, sanitized.
	Body          string // Release notes excerpt, sanitized.
	URL           string // Link to the release page, sanitized.
	PublishedDate string // ISO date (YYYY-MM-DD) the release was published.
}
