// Package manifest discovers and rewrites docker-compose service
// manifests. Rewrites go through the yaml node tree so only changed image
// scalars are touched; comments, ordering and formatting of everything
// else survive a round trip.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Manifest layout constants.
const (
	// ServicesDir is the top-level directory holding category/service
	// manifest trees.
	ServicesDir = "services"
	// FileName is the manifest file name inside each service directory.
	FileName = "docker-compose.yml"

	// envCISignal marks a CI-environment run.
	envCISignal = "GITHUB_ACTIONS"
	// envWorkspace is the CI checkout directory.
	envWorkspace = "GITHUB_WORKSPACE"
)

// Static errors for manifest handling.
var (
	// errNotDocument indicates the file is not a single yaml document.
	errNotDocument = errors.New("manifest is not a single yaml document")
	// errServiceNotFound indicates a service name is absent from the
	// manifest.
	errServiceNotFound = errors.New("service not found in manifest")
)

// Service is one service declaration, in declared order. Image is empty
// when the service carries no image field.
type Service struct {
	Name  string
	Image string
}

// File is a loaded manifest with its parsed node tree.
type File struct {
	Path     string
	root     *yaml.Node
	modified bool
}

// ResolveBaseDir picks the manifest base directory: the CI workspace when
// running under CI, the current directory otherwise.
func ResolveBaseDir() string {
	if os.Getenv(envCISignal) == "true" {
		if workspace := os.Getenv(envWorkspace); workspace != "" {
			return workspace
		}
	}

	return "."
}

// Discover returns all manifest paths under the base directory in
// lexicographically sorted order, keeping scan results reproducible.
func Discover(baseDir string) ([]string, error) {
	pattern := filepath.Join(baseDir, ServicesDir, "*", "*", FileName)

	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("discovering manifests under %s: %w", baseDir, err)
	}

	sort.Strings(paths)

	logrus.WithFields(logrus.Fields{
		"base_dir":  baseDir,
		"manifests": len(paths),
	}).Debug("Discovered service manifests")

	return paths, nil
}

// Category derives the manifest category: the first path segment below
// the services directory.
func Category(path string) string {
	segments := strings.Split(filepath.ToSlash(path), "/")
	for i, segment := range segments {
		if segment == ServicesDir && i+1 < len(segments) {
			return segments[i+1]
		}
	}

	return ""
}

// Load reads and parses a manifest file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	root := &yaml.Node{}
	if err := yaml.Unmarshal(data, root); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	if root.Kind != yaml.DocumentNode || len(root.Content) != 1 {
		return nil, fmt.Errorf("%w: %s", errNotDocument, path)
	}

	return &File{Path: path, root: root}, nil
}

// Services returns the service declarations in their declared order.
// Manifests without a services mapping yield none.
func (f *File) Services() []Service {
	servicesNode := f.servicesNode()
	if servicesNode == nil {
		return nil
	}

	services := make([]Service, 0, len(servicesNode.Content)/2)

	for i := 0; i+1 < len(servicesNode.Content); i += 2 {
		name := servicesNode.Content[i].Value
		config := servicesNode.Content[i+1]

		var image string
		if imageNode := mappingValue(config, "image"); imageNode != nil {
			image = imageNode.Value
		}

		services = append(services, Service{Name: name, Image: image})
	}

	return services
}

// SetImage stages a rewrite of one service's image scalar. Nothing else in
// the node tree is touched. The file is marked modified only when the
// value actually changes.
func (f *File) SetImage(service, image string) error {
	servicesNode := f.servicesNode()
	if servicesNode == nil {
		return fmt.Errorf("%w: %s", errServiceNotFound, service)
	}

	for i := 0; i+1 < len(servicesNode.Content); i += 2 {
		if servicesNode.Content[i].Value != service {
			continue
		}

		imageNode := mappingValue(servicesNode.Content[i+1], "image")
		if imageNode == nil {
			return fmt.Errorf("%w: %s has no image field", errServiceNotFound, service)
		}

		if imageNode.Value != image {
			imageNode.Value = image
			f.modified = true
		}

		return nil
	}

	return fmt.Errorf("%w: %s", errServiceNotFound, service)
}

// Modified reports whether any staged rewrite changed the manifest.
func (f *File) Modified() bool {
	return f.modified
}

// Save writes the manifest back to disk. It is a no-op for unmodified
// files, so a manifest is only rewritten when at least one of its
// services changed.
func (f *File) Save() error {
	if !f.modified {
		return nil
	}

	var buf bytes.Buffer

	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(f.root); err != nil {
		return fmt.Errorf("encoding manifest %s: %w", f.Path, err)
	}

	if err := encoder.Close(); err != nil {
		return fmt.Errorf("encoding manifest %s: %w", f.Path, err)
	}

	if err := os.WriteFile(f.Path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing manifest %s: %w", f.Path, err)
	}

	logrus.WithField("manifest", f.Path).Info("Rewrote manifest")

	return nil
}

// servicesNode returns the mapping node of the top-level services key, or
// nil when absent.
func (f *File) servicesNode() *yaml.Node {
	node := mappingValue(f.root.Content[0], "services")
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}

	return node
}

// mappingValue returns the value node for a key in a mapping node, or nil.
func mappingValue(mapping *yaml.Node, key string) *yaml.Node {
	if mapping == nil || mapping.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}

	return nil
}
