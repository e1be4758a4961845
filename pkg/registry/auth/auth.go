// Package auth builds authorization headers for registry and GitHub API
// requests from environment credentials. Missing credentials degrade to
// unauthenticated operation; they never abort a run.
package auth

import (
	"encoding/base64"
	"os"

	"github.com/sirupsen/logrus"
)

// Environment variables credentials are read from. These are the only
// credential sources; flags and files are deliberately not supported.
const (
	EnvGitHubToken       = "GITHUB_TOKEN"
	EnvDockerHubUsername = "DOCKERHUB_USERNAME"
	EnvDockerHubPassword = "DOCKERHUB_PASSWORD"
)

// Credentials holds the optional tokens used for authenticated registry
// access. Zero values mean unauthenticated, stricter-rate-limited calls.
type Credentials struct {
	GitHubToken       string
	DockerHubUsername string
	DockerHubPassword string
}

// FromEnv reads credentials from the environment. Presence is logged,
// values never are.
func FromEnv() Credentials {
	creds := Credentials{
		GitHubToken:       os.Getenv(EnvGitHubToken),
		DockerHubUsername: os.Getenv(EnvDockerHubUsername),
		DockerHubPassword: os.Getenv(EnvDockerHubPassword),
	}

	logrus.WithFields(logrus.Fields{
		"github_token":   creds.GitHubToken != "",
		"dockerhub_auth": creds.HasDockerHub(),
	}).Debug("Loaded registry credentials from environment")

	return creds
}

// HasGitHub reports whether a GitHub token is configured. The token serves
// both GHCR package listings and GitHub API release listings.
func (c Credentials) HasGitHub() bool {
	return c.GitHubToken != ""
}

// HasDockerHub reports whether a complete Docker Hub credential pair is
// configured. A username without a password is treated as absent.
func (c Credentials) HasDockerHub() bool {
	return c.DockerHubUsername != "" && c.DockerHubPassword != ""
}

// BasicAuthHeader returns the Docker Hub Authorization header value, or an
// empty string when no credential pair is configured.
func (c Credentials) BasicAuthHeader() string {
	if !c.HasDockerHub() {
		return ""
	}

	pair := c.DockerHubUsername + ":" + c.DockerHubPassword

	return "Basic " + base64.StdEncoding.EncodeToString([]byte(pair))
}

// BearerHeader returns the GitHub Authorization header value, or an empty
// string when no token is configured.
func (c Credentials) BearerHeader() string {
	if !c.HasGitHub() {
		return ""
	}

	return "Bearer " + c.GitHubToken
}
