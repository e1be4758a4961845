package types

// RegistryClass identifies one of the closed set of registry behaviors.
// The class is decided once, when an image reference is parsed, and is
// never re-inspected on later calls.
type RegistryClass string

// Registry classes. The github_api class covers calls to the GitHub REST
// API (release listings) rather than an image registry proper, but shares
// the same rate-limit bookkeeping.
const (
	RegistryDockerHub RegistryClass = "dockerhub"
	RegistryGHCR      RegistryClass = "ghcr"
	RegistryGitHubAPI RegistryClass = "github_api"
	RegistryDefault   RegistryClass = "default"
)
