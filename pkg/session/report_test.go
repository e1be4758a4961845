package session_test

import (
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/justpow98/fleetwatch/pkg/session"
)

var _ = ginkgo.Describe("Report", func() {
	var report *session.Report

	ginkgo.BeforeEach(func() {
		report = &session.Report{}
		report.Add(session.ServiceReport{Service: "jellyfin", State: session.StateUpdated})
		report.Add(session.ServiceReport{Service: "sonarr", State: session.StateFresh})
		report.Add(session.ServiceReport{Service: "nginx", State: session.StateSkipped})
		report.Add(session.ServiceReport{Service: "dashy", State: session.StateUnknown})
		report.Add(session.ServiceReport{Service: "broken", State: session.StateFailed})
	})

	ginkgo.It("keeps outcomes in evaluation order", func() {
		all := report.All()
		gomega.Expect(all).To(gomega.HaveLen(5))
		gomega.Expect(all[0].Service).To(gomega.Equal("jellyfin"))
		gomega.Expect(all[4].Service).To(gomega.Equal("broken"))
	})

	ginkgo.It("partitions outcomes by state", func() {
		gomega.Expect(report.Updated()).To(gomega.HaveLen(1))
		gomega.Expect(report.Fresh()).To(gomega.HaveLen(1))
		gomega.Expect(report.Skipped()).To(gomega.HaveLen(1))
		gomega.Expect(report.Unknown()).To(gomega.HaveLen(1))
		gomega.Expect(report.Failed()).To(gomega.HaveLen(1))

		gomega.Expect(report.Updated()[0].Service).To(gomega.Equal("jellyfin"))
		gomega.Expect(report.Failed()[0].Service).To(gomega.Equal("broken"))
	})

	ginkgo.It("is empty before any outcome is added", func() {
		empty := &session.Report{}
		gomega.Expect(empty.All()).To(gomega.BeEmpty())
		gomega.Expect(empty.Updated()).To(gomega.BeEmpty())
	})
})
