package manifest_test

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/justpow98/fleetwatch/pkg/manifest"
)

const jellyfinManifest = `# media stack
services:
  jellyfin:
    image: jellyfin/jellyfin:10.8.9
    restart: unless-stopped
    ports:
      - "8096:8096"
  helper:
    restart: unless-stopped
`

func writeManifest(baseDir, category, service, content string) string {
	dir := filepath.Join(baseDir, manifest.ServicesDir, category, service)
	gomega.Expect(os.MkdirAll(dir, 0o755)).To(gomega.Succeed())

	path := filepath.Join(dir, manifest.FileName)
	gomega.Expect(os.WriteFile(path, []byte(content), 0o644)).To(gomega.Succeed())

	return path
}

var _ = ginkgo.Describe("Discover", func() {
	ginkgo.It("finds manifests in sorted order", func() {
		baseDir := ginkgo.GinkgoT().TempDir()
		second := writeManifest(baseDir, "network", "nginx", jellyfinManifest)
		first := writeManifest(baseDir, "media", "jellyfin", jellyfinManifest)

		paths, err := manifest.Discover(baseDir)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(paths).To(gomega.Equal([]string{first, second}))
	})

	ginkgo.It("ignores files outside the category/service layout", func() {
		baseDir := ginkgo.GinkgoT().TempDir()
		stray := filepath.Join(baseDir, manifest.ServicesDir, manifest.FileName)
		gomega.Expect(os.MkdirAll(filepath.Dir(stray), 0o755)).To(gomega.Succeed())
		gomega.Expect(os.WriteFile(stray, []byte(jellyfinManifest), 0o644)).To(gomega.Succeed())

		paths, err := manifest.Discover(baseDir)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(paths).To(gomega.BeEmpty())
	})

	ginkgo.It("finds nothing under an empty base directory", func() {
		paths, err := manifest.Discover(ginkgo.GinkgoT().TempDir())
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(paths).To(gomega.BeEmpty())
	})
})

var _ = ginkgo.Describe("Category", func() {
	ginkgo.It("returns the segment below the services directory", func() {
		path := filepath.Join("fleet", manifest.ServicesDir, "media", "jellyfin", manifest.FileName)
		gomega.Expect(manifest.Category(path)).To(gomega.Equal("media"))
	})

	ginkgo.It("returns empty for paths without a services segment", func() {
		gomega.Expect(manifest.Category("docker-compose.yml")).To(gomega.BeEmpty())
	})
})

var _ = ginkgo.Describe("File", func() {
	var path string

	ginkgo.BeforeEach(func() {
		path = writeManifest(ginkgo.GinkgoT().TempDir(), "media", "jellyfin", jellyfinManifest)
	})

	ginkgo.Describe("Load", func() {
		ginkgo.It("fails on a missing file", func() {
			_, err := manifest.Load(filepath.Join(ginkgo.GinkgoT().TempDir(), "absent.yml"))
			gomega.Expect(err).To(gomega.HaveOccurred())
		})

		ginkgo.It("fails on invalid yaml", func() {
			broken := filepath.Join(ginkgo.GinkgoT().TempDir(), manifest.FileName)
			gomega.Expect(os.WriteFile(broken, []byte("services: [unclosed"), 0o644)).To(gomega.Succeed())

			_, err := manifest.Load(broken)
			gomega.Expect(err).To(gomega.HaveOccurred())
		})
	})

	ginkgo.Describe("Services", func() {
		ginkgo.It("returns services in declared order with their images", func() {
			file, err := manifest.Load(path)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			services := file.Services()
			gomega.Expect(services).To(gomega.HaveLen(2))
			gomega.Expect(services[0].Name).To(gomega.Equal("jellyfin"))
			gomega.Expect(services[0].Image).To(gomega.Equal("jellyfin/jellyfin:10.8.9"))
			gomega.Expect(services[1].Name).To(gomega.Equal("helper"))
			gomega.Expect(services[1].Image).To(gomega.BeEmpty())
		})

		ginkgo.It("returns none for a manifest without a services mapping", func() {
			other := filepath.Join(ginkgo.GinkgoT().TempDir(), manifest.FileName)
			gomega.Expect(os.WriteFile(other, []byte("version: \"3\"\n"), 0o644)).To(gomega.Succeed())

			file, err := manifest.Load(other)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(file.Services()).To(gomega.BeEmpty())
		})
	})

	ginkgo.Describe("SetImage", func() {
		ginkgo.It("stages a rewrite of only the image scalar", func() {
			file, err := manifest.Load(path)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			gomega.Expect(file.SetImage("jellyfin", "jellyfin/jellyfin:10.8.10")).To(gomega.Succeed())
			gomega.Expect(file.Modified()).To(gomega.BeTrue())
			gomega.Expect(file.Save()).To(gomega.Succeed())

			data, err := os.ReadFile(path)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			content := string(data)
			gomega.Expect(content).To(gomega.ContainSubstring("jellyfin/jellyfin:10.8.10"))
			gomega.Expect(content).NotTo(gomega.ContainSubstring("10.8.9"))
			gomega.Expect(content).To(gomega.ContainSubstring("# media stack"))
			gomega.Expect(content).To(gomega.ContainSubstring(`- "8096:8096"`))
		})

		ginkgo.It("does not mark the file modified for an unchanged value", func() {
			file, err := manifest.Load(path)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			gomega.Expect(file.SetImage("jellyfin", "jellyfin/jellyfin:10.8.9")).To(gomega.Succeed())
			gomega.Expect(file.Modified()).To(gomega.BeFalse())
		})

		ginkgo.It("fails for an unknown service", func() {
			file, err := manifest.Load(path)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			gomega.Expect(file.SetImage("absent", "x:1")).NotTo(gomega.Succeed())
		})

		ginkgo.It("fails for a service without an image field", func() {
			file, err := manifest.Load(path)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			gomega.Expect(file.SetImage("helper", "x:1")).NotTo(gomega.Succeed())
		})
	})

	ginkgo.Describe("Save", func() {
		ginkgo.It("leaves an unmodified file byte-identical on disk", func() {
			file, err := manifest.Load(path)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(file.Save()).To(gomega.Succeed())

			data, err := os.ReadFile(path)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(string(data)).To(gomega.Equal(jellyfinManifest))
		})

		ginkgo.It("preserves every non-image line across a rewrite", func() {
			file, err := manifest.Load(path)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(file.SetImage("jellyfin", "jellyfin/jellyfin:10.8.10")).To(gomega.Succeed())
			gomega.Expect(file.Save()).To(gomega.Succeed())

			data, err := os.ReadFile(path)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			for _, line := range strings.Split(strings.TrimRight(jellyfinManifest, "\n"), "\n") {
				if strings.Contains(line, "image:") {
					continue
				}
				gomega.Expect(string(data)).To(gomega.ContainSubstring(line))
			}
		})
	})
})
