// Package types defines the shared data model for Fleetwatch: image
// references, update records, release notes, and the tag-provider
// capability implemented by the registry packages.
package types
