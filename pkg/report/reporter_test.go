package report_test

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/justpow98/fleetwatch/pkg/report"
	"github.com/justpow98/fleetwatch/pkg/types"
)

func sampleRecords() []types.UpdateRecord {
	return []types.UpdateRecord{
		{
			Service:      "jellyfin",
			ManifestPath: "services/media/jellyfin/docker-compose.yml",
			OldVersion:   "10.8.9",
			NewVersion:   "10.8.10",
			ImageName:    "jellyfin/jellyfin",
		},
		{
			Service:      "sonarr",
			ManifestPath: "services/media/sonarr/docker-compose.yml",
			OldVersion:   "3.0.9",
			NewVersion:   "3.0.10",
			ImageName:    "linuxserver/sonarr",
		},
		{
			Service:      "dashy",
			ManifestPath: "services/network/dashy/docker-compose.yml",
			OldVersion:   "release-2.1.1",
			NewVersion:   "release-2.1.2",
			ImageName:    "lissy93/dashy",
		},
	}
}

var _ = ginkgo.Describe("Summary", func() {
	ginkgo.It("includes the total and per-category counts", func() {
		summary := report.Summary(sampleRecords())

		gomega.Expect(summary).To(gomega.ContainSubstring("3 update(s)"))
		gomega.Expect(summary).To(gomega.ContainSubstring("Media: 2"))
		gomega.Expect(summary).To(gomega.ContainSubstring("Network: 1"))
	})

	ginkgo.It("mentions every update", func() {
		summary := report.Summary(sampleRecords())

		gomega.Expect(summary).To(gomega.ContainSubstring("jellyfin 10.8.9 to 10.8.10"))
		gomega.Expect(summary).To(gomega.ContainSubstring("sonarr 3.0.9 to 3.0.10"))
		gomega.Expect(summary).To(gomega.ContainSubstring("dashy release-2.1.1 to release-2.1.2"))
	})

	ginkgo.It("stays on a single sanitized line", func() {
		summary := report.Summary(sampleRecords())

		gomega.Expect(summary).NotTo(gomega.ContainSubstring("\n"))
		gomega.Expect(len(summary)).To(gomega.BeNumerically("<=", 203))
	})
})

var _ = ginkgo.Describe("Reporter", func() {
	var envFile string

	ginkgo.BeforeEach(func() {
		envFile = filepath.Join(ginkgo.GinkgoT().TempDir(), "github_env")
	})

	readLines := func() []string {
		data, err := os.ReadFile(envFile)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	}

	ginkgo.When("updates were found", func() {
		ginkgo.It("writes the full boundary contract", func() {
			reporter := report.NewFileReporter(envFile)
			gomega.Expect(reporter.Write(sampleRecords())).To(gomega.Succeed())

			lines := readLines()
			gomega.Expect(lines).To(gomega.HaveLen(3))
			gomega.Expect(lines[0]).To(gomega.Equal("UPDATES_FOUND=true"))
			gomega.Expect(lines[1]).To(gomega.MatchRegexp(`^UPDATE_DATE=\d{4}-\d{2}-\d{2}$`))
			gomega.Expect(lines[2]).To(gomega.HavePrefix("UPDATE_SUMMARY="))
		})
	})

	ginkgo.When("no updates were found", func() {
		ginkgo.It("writes only the negative flag", func() {
			reporter := report.NewFileReporter(envFile)
			gomega.Expect(reporter.Write(nil)).To(gomega.Succeed())

			gomega.Expect(readLines()).To(gomega.Equal([]string{"UPDATES_FOUND=false"}))
		})
	})

	ginkgo.It("appends to an existing boundary file", func() {
		gomega.Expect(os.WriteFile(envFile, []byte("EXISTING=1\n"), 0o644)).To(gomega.Succeed())

		reporter := report.NewFileReporter(envFile)
		gomega.Expect(reporter.Write(nil)).To(gomega.Succeed())

		lines := readLines()
		gomega.Expect(lines[0]).To(gomega.Equal("EXISTING=1"))
		gomega.Expect(lines[1]).To(gomega.Equal("UPDATES_FOUND=false"))
	})
})
