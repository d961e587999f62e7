package acceptance_test

import (
	"net/http"
	"net/url"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sitepulse/engine/pkg/types"
)

var _ = Describe("Audit Scenarios", Serial, func() {
	BeforeEach(func() {
		testEnv.ResetState()
		testEnv.InstallHealthySite()
	})

	Context("when auditing a healthy site", func() {
		It("passes the full check battery with a high score", func() {
			By("Requesting an audit of the stub site")
			resp := testEnv.AuditURL(testEnv.Site.URL(), nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			report := resp.Report()

			By("Verifying the fetch outcome")
			Expect(report.OK).To(BeTrue())
			Expect(report.Blocked).To(BeFalse())
			Expect(report.Timeout).To(BeFalse())
			Expect(report.FetchedStatus).To(Equal(http.StatusOK))
			Expect(report.Title).To(Equal("Northwind Coffee Roasters - Fresh Beans Weekly"))
			Expect(report.MetaDescription).To(ContainSubstring("Single-origin coffee"))

			By("Verifying the page-level checks")
			for _, id := range []string{
				types.CheckHTTP, types.CheckTTFB, types.CheckCanonical,
				types.CheckNoindex, types.CheckMetaRobots, types.CheckMetaDescription,
				types.CheckTitleLength, types.CheckViewport, types.CheckOpengraph,
			} {
				c := report.FindCheck(id)
				Expect(c).NotTo(BeNil(), "check %q missing", id)
				Expect(c.Status).To(Equal(types.StatusPass), "check %q", id)
			}

			By("Verifying the site-level probes")
			for _, id := range []string{
				types.CheckFavicon, types.CheckRobots, types.CheckSitemap,
			} {
				c := report.FindCheck(id)
				Expect(c).NotTo(BeNil(), "check %q missing", id)
				Expect(c.Status).To(Equal(types.StatusPass), "check %q", id)
			}

			By("Verifying the image checks")
			for _, id := range []string{
				types.CheckImgAlt, types.CheckImgModern, types.CheckImgLazy, types.CheckImgSize,
			} {
				c := report.FindCheck(id)
				Expect(c).NotTo(BeNil(), "check %q missing", id)
				Expect(c.Status).To(Equal(types.StatusPass), "check %q", id)
			}

			By("Verifying the PageSpeed probe consulted the stub API")
			psiCheck := report.FindCheck(types.CheckPSI)
			Expect(psiCheck).NotTo(BeNil())
			Expect(psiCheck.Status).To(Equal(types.StatusPass))
			Expect(report.Speed).NotTo(BeNil())
			Expect(*report.Speed).To(Equal(88))

			By("Verifying the locked placeholders are present")
			for _, id := range types.LockedCheckIDs {
				c := report.FindCheck(id)
				Expect(c).NotTo(BeNil(), "placeholder %q missing", id)
				Expect(c.Status).To(Equal(types.StatusLocked), "placeholder %q", id)
				Expect(c.Locked).To(BeTrue(), "placeholder %q", id)
			}

			By("Verifying each check appears exactly once")
			seen := map[string]int{}
			for _, c := range report.Checks {
				seen[c.ID]++
			}
			for id, n := range seen {
				Expect(n).To(Equal(1), "check %q duplicated", id)
			}

			By("Verifying the aggregate score")
			Expect(report.Score).To(BeNumerically(">=", 90))
		})
	})

	Context("when the page forbids indexing", func() {
		It("fails the noindex check and scores zero", func() {
			testEnv.Site.HandleContent("/", "text/html; charset=utf-8", `<!DOCTYPE html>
<html><head>
<title>Preview build - keep out of search results</title>
<meta name="robots" content="noindex, nofollow">
<meta name="viewport" content="width=device-width, initial-scale=1">
</head><body><p>preview</p></body></html>`)

			resp := testEnv.AuditURL(testEnv.Site.URL(), nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			report := resp.Report()

			noindex := report.FindCheck(types.CheckNoindex)
			Expect(noindex).NotTo(BeNil())
			Expect(noindex.Status).To(Equal(types.StatusFail))
			Expect(report.Score).To(Equal(0))

			By("Verifying the informational meta-robots check warns")
			metaRobots := report.FindCheck(types.CheckMetaRobots)
			Expect(metaRobots).NotTo(BeNil())
			Expect(metaRobots.Status).To(Equal(types.StatusWarn))
		})
	})

	Context("when a WAF rejects both header profiles", func() {
		It("returns a degraded blocked report and leaves the cache cold", func() {
			forbidden := func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
			}
			testEnv.Site.Handle("/", forbidden)
			testEnv.Site.Handle("/robots.txt", forbidden)
			testEnv.Site.Handle("/sitemap.xml", forbidden)
			testEnv.Site.Handle("/favicon.ico", forbidden)

			By("Running the audit")
			resp := testEnv.AuditURL(testEnv.Site.URL(), nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			report := resp.Report()

			Expect(report.OK).To(BeTrue())
			Expect(report.Blocked).To(BeTrue())
			Expect(report.Timeout).To(BeFalse())
			Expect(report.FetchedStatus).To(Equal(http.StatusForbidden))

			By("Verifying the blocked finding and the sweep results")
			blocked := report.FindCheck(types.CheckBlocked)
			Expect(blocked).NotTo(BeNil())
			Expect(blocked.Status).To(Equal(types.StatusFail))
			Expect(report.FindCheck(types.CheckRobots)).NotTo(BeNil())
			Expect(report.FindCheck(types.CheckSitemap)).NotTo(BeNil())

			By("Verifying no page-level findings leaked in")
			Expect(report.FindCheck(types.CheckHTTP)).To(BeNil())
			Expect(report.FindCheck(types.CheckTTFB)).To(BeNil())
			Expect(report.FindCheck(types.CheckCanonical)).To(BeNil())

			By("Verifying a second audit is not served from the cache")
			again := testEnv.AuditURL(testEnv.Site.URL(), nil).Report()
			Expect(again.Cached).To(BeFalse())
		})
	})

	Context("when the origin never answers", func() {
		It("returns a timeout report with status zero and the full budget as timing", func() {
			testEnv.Site.Handle("/", func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(30 * time.Second):
				}
			})

			resp := testEnv.AuditURL(testEnv.Site.URL(), nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			report := resp.Report()

			Expect(report.OK).To(BeTrue())
			Expect(report.Timeout).To(BeTrue())
			Expect(report.Blocked).To(BeFalse())
			Expect(report.FetchedStatus).To(Equal(0))
			Expect(report.TimingMs).To(Equal(int64(4000)))
			Expect(report.Title).To(BeEmpty())
			Expect(report.MetaDescription).To(BeEmpty())

			timeout := report.FindCheck(types.CheckTimeout)
			Expect(timeout).NotTo(BeNil())
			Expect(timeout.Status).To(Equal(types.StatusWarn))
			Expect(report.FindCheck(types.CheckHTTP)).To(BeNil())

			By("Verifying the PageSpeed probe still ran with budget to spare")
			Expect(report.FindCheck(types.CheckPSI)).NotTo(BeNil())

			By("Verifying a second audit is not served from the cache")
			again := testEnv.AuditURL(testEnv.Site.URL(), nil).Report()
			Expect(again.Cached).To(BeFalse())
		})
	})

	Context("when the sitemap is gzipped", func() {
		It("discovers it but warns instead of parsing", func() {
			testEnv.Site.Handle("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/gzip")
				w.Write([]byte{0x1f, 0x8b, 0x08, 0x00})
			})

			report := testEnv.AuditURL(testEnv.Site.URL(), nil).Report()

			sitemap := report.FindCheck(types.CheckSitemap)
			Expect(sitemap).NotTo(BeNil())
			Expect(sitemap.Status).To(Equal(types.StatusWarn))
			Expect(sitemap.Details).To(ContainSubstring("gzipped"))
		})
	})

	Context("when the page declares several canonicals", func() {
		It("warns even though the links agree", func() {
			testEnv.Site.HandleContent("/", "text/html; charset=utf-8", `<!DOCTYPE html>
<html><head>
<title>Article with conflicting canonical tags</title>
<link rel="canonical" href="https://example.com/article">
<link rel="canonical" href="https://example.com/article">
</head><body></body></html>`)

			report := testEnv.AuditURL(testEnv.Site.URL(), nil).Report()

			canonical := report.FindCheck(types.CheckCanonical)
			Expect(canonical).NotTo(BeNil())
			Expect(canonical.Status).To(Equal(types.StatusWarn))
			Expect(canonical.Details).To(ContainSubstring("2 canonical links"))
		})
	})

	Context("caching", func() {
		It("serves the second audit from the redis cache", func() {
			first := testEnv.AuditURL(testEnv.Site.URL(), nil).Report()
			Expect(first.Cached).To(BeFalse())

			second := testEnv.AuditURL(testEnv.Site.URL(), nil).Report()
			Expect(second.Cached).To(BeTrue())
			Expect(second.CacheAgeMs).To(BeNumerically(">=", 0))
			Expect(second.Score).To(Equal(first.Score))

			By("Verifying query-string variants share the entry")
			variant := testEnv.AuditURL(testEnv.Site.URL()+"/?utm_campaign=spring", nil).Report()
			Expect(variant.Cached).To(BeTrue())
		})

		It("expires entries after the TTL", func() {
			testEnv.AuditURL(testEnv.Site.URL(), nil)

			By("Fast-forwarding redis past the cache TTL")
			testEnv.Redis.FastForward(2 * time.Minute)

			fresh := testEnv.AuditURL(testEnv.Site.URL(), nil).Report()
			Expect(fresh.Cached).To(BeFalse())
		})

		It("skips the cache read on nocache but still refreshes the entry", func() {
			testEnv.AuditURL(testEnv.Site.URL(), nil)

			forced := testEnv.AuditURL(testEnv.Site.URL(), url.Values{"nocache": {"1"}}).Report()
			Expect(forced.Cached).To(BeFalse())

			followup := testEnv.AuditURL(testEnv.Site.URL(), nil).Report()
			Expect(followup.Cached).To(BeTrue())
		})
	})
})
