package ghcr

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/justpow98/fleetwatch/pkg/registry/auth"
	"github.com/justpow98/fleetwatch/pkg/registry/ratelimit"
)

// idleClock satisfies ratelimit.Clock without real waiting.
type idleClock struct{ now time.Time }

func (c *idleClock) Now() time.Time        { return c.now }
func (c *idleClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }

func testProvider(endpoint string, creds auth.Credentials) (*Provider, *[]time.Duration) {
	provider := New(nil, ratelimit.NewWithClock(&idleClock{now: time.Now()}), creds)
	provider.endpoint = endpoint

	var slept []time.Duration
	provider.sleep = func(d time.Duration) { slept = append(slept, d) }

	return provider, &slept
}

var _ = ginkgo.Describe("Provider", func() {
	ginkgo.It("flattens the tag lists of all version entries", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gomega.Expect(r.URL.Path).To(gomega.Equal("/users/lissy93/packages/container/dashy/versions"))
			gomega.Expect(r.URL.Query().Get("per_page")).To(gomega.Equal("100"))
			fmt.Fprint(w, `[
				{"metadata":{"container":{"tags":["release-2.1.2","latest"]}}},
				{"metadata":{"container":{"tags":[]}}},
				{"metadata":{"container":{"tags":["release-2.1.1"]}}}
			]`)
		}))
		defer server.Close()

		provider, _ := testProvider(server.URL, auth.Credentials{})

		tags, err := provider.ListTags(context.Background(), "lissy93/dashy")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(tags).To(gomega.Equal([]string{"release-2.1.2", "latest", "release-2.1.1"}))
	})

	ginkgo.It("escapes nested package names in the request path", func() {
		var rawPath string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawPath = r.URL.EscapedPath()
			fmt.Fprint(w, `[]`)
		}))
		defer server.Close()

		provider, _ := testProvider(server.URL, auth.Credentials{})

		_, err := provider.ListTags(context.Background(), "home-assistant/core/base")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(rawPath).To(gomega.ContainSubstring("container/core%2Fbase/versions"))
	})

	ginkgo.It("yields no candidates for a path without an owner", func() {
		provider, _ := testProvider("http://127.0.0.1:1", auth.Credentials{})

		tags, err := provider.ListTags(context.Background(), "dashy")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(tags).To(gomega.BeEmpty())
	})

	ginkgo.It("backs off once and retries on a rate limit answer", func() {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)

				return
			}
			fmt.Fprint(w, `[{"metadata":{"container":{"tags":["v1.2.3"]}}}]`)
		}))
		defer server.Close()

		provider, slept := testProvider(server.URL, auth.Credentials{})

		tags, err := provider.ListTags(context.Background(), "filebrowser/filebrowser")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(tags).To(gomega.Equal([]string{"v1.2.3"}))
		gomega.Expect(*slept).To(gomega.Equal([]time.Duration{60 * time.Second}))
		gomega.Expect(calls.Load()).To(gomega.Equal(int32(2)))
	})

	ginkgo.It("degrades to no candidates on an unauthorized answer", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		provider, _ := testProvider(server.URL, auth.Credentials{})

		tags, err := provider.ListTags(context.Background(), "lissy93/dashy")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(tags).To(gomega.BeEmpty())
	})

	ginkgo.It("degrades to no candidates on malformed JSON", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `[{"metadata": broken`)
		}))
		defer server.Close()

		provider, _ := testProvider(server.URL, auth.Credentials{})

		tags, err := provider.ListTags(context.Background(), "lissy93/dashy")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(tags).To(gomega.BeEmpty())
	})

	ginkgo.It("sends a bearer token when one is configured", func() {
		var header string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header = r.Header.Get("Authorization")
			fmt.Fprint(w, `[]`)
		}))
		defer server.Close()

		provider, _ := testProvider(server.URL, auth.Credentials{GitHubToken: "gh-token"})

		_, err := provider.ListTags(context.Background(), "lissy93/dashy")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(header).To(gomega.Equal("Bearer gh-token"))
	})
})
