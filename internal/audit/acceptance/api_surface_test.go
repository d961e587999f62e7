package acceptance_test

import (
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("HTTP Surface", Serial, func() {
	BeforeEach(func() {
		testEnv.ResetState()
		testEnv.InstallHealthySite()
	})

	Context("service endpoints", func() {
		It("answers the health probe", func() {
			resp := testEnv.Request(http.MethodGet, "/health", nil, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(string(resp.Body)).To(Equal("OK"))
		})

		It("answers the readiness probe once redis is reachable", func() {
			resp := testEnv.Request(http.MethodGet, "/ready", nil, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(string(resp.Body)).To(Equal("OK"))
		})

		It("rejects unknown paths with a JSON error envelope", func() {
			resp := testEnv.Request(http.MethodGet, "/nope", nil, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))

			envelope := resp.Envelope()
			Expect(envelope["ok"]).To(BeFalse())
			Expect(envelope["errors"]).NotTo(BeEmpty())
		})

		It("echoes a sanitized caller request id", func() {
			resp := testEnv.Request(http.MethodGet, "/health", nil, map[string]string{"X-Request-ID": "widget embed 7"})
			id := resp.Header.Get("X-Request-ID")
			Expect(id).To(HaveSuffix("-widget-embed-7"))
		})

		It("generates a request id when the caller sends none", func() {
			resp := testEnv.Request(http.MethodGet, "/health", nil, nil)
			Expect(resp.Header.Get("X-Request-ID")).NotTo(BeEmpty())
		})
	})

	Context("the check endpoint", func() {
		It("answers a bare GET with the widget ping", func() {
			resp := testEnv.Request(http.MethodGet, "/check", nil, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			envelope := resp.Envelope()
			Expect(envelope["ok"]).To(BeTrue())
			Expect(envelope["ping"]).To(Equal("pong"))
		})

		It("echoes the caller origin in CORS headers", func() {
			resp := testEnv.Request(http.MethodGet, "/check", nil, map[string]string{"Origin": "https://customer.example"})
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("https://customer.example"))

			By("Falling back to the wildcard without an Origin header")
			resp = testEnv.Request(http.MethodGet, "/check", nil, nil)
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})

		It("answers CORS preflight with 204", func() {
			resp := testEnv.Request(http.MethodOptions, "/check", nil, map[string]string{
				"Origin":                         "https://customer.example",
				"Access-Control-Request-Method":  "POST",
				"Access-Control-Request-Headers": "Content-Type, X-Request-ID",
			})
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("POST"))
			Expect(resp.Header.Get("Access-Control-Allow-Headers")).To(ContainSubstring("X-Request-ID"))
			Expect(resp.Header.Get("Access-Control-Max-Age")).To(Equal("86400"))
		})

		It("rejects targets that cannot be audited", func() {
			resp := testEnv.AuditURL("not_a_host", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			envelope := resp.Envelope()
			Expect(envelope["ok"]).To(BeFalse())
		})

		It("rejects a POST body that is not JSON", func() {
			resp := testEnv.Request(http.MethodPost, "/check", []byte("url=example.com"), map[string]string{"Content-Type": "application/json"})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("requires a url in the POST body", func() {
			resp := testEnv.PostCheck(map[string]any{"nocache": true})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			envelope := resp.Envelope()
			errs, ok := envelope["errors"].([]any)
			Expect(ok).To(BeTrue())
			Expect(errs).To(ContainElement("url is required"))
		})

		It("rejects unsupported methods", func() {
			resp := testEnv.Request(http.MethodPut, "/check", nil, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusMethodNotAllowed))
		})

		It("audits through POST exactly like GET", func() {
			resp := testEnv.PostCheck(map[string]any{"url": testEnv.Site.URL()})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			report := resp.Report()
			Expect(report.OK).To(BeTrue())
			Expect(report.FetchedStatus).To(Equal(http.StatusOK))
		})
	})

	Context("snapshots", func() {
		It("persists a snapshot and serves it back by blob path and legacy id", func() {
			By("Running a snapshot audit")
			resp := testEnv.PostCheck(map[string]any{"url": testEnv.Site.URL(), "snapshot": true})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			report := resp.Report()

			Expect(report.ShareBlobPath).To(HavePrefix("audits/"))
			Expect(report.ShareBlobPath).To(HaveSuffix(".json"))
			Expect(report.ShareBlobURL).To(HavePrefix("file://"))
			Expect(report.ShareURL).To(HavePrefix("https://report.sitepulse.example/widget?blob="))

			By("Verifying the snapshot run did not touch the cache")
			live := testEnv.AuditURL(testEnv.Site.URL(), nil).Report()
			Expect(live.Cached).To(BeFalse())

			By("Loading the snapshot by blob path")
			loaded := testEnv.Request(http.MethodGet, "/check?blob="+url.QueryEscape(report.ShareBlobPath), nil, nil)
			Expect(loaded.StatusCode).To(Equal(http.StatusOK))
			snapshotReport := loaded.Report()
			Expect(snapshotReport.FromSnapshot).To(BeTrue())
			Expect(snapshotReport.Score).To(Equal(report.Score))
			Expect(snapshotReport.Title).To(Equal(report.Title))

			By("Loading the snapshot by bare id")
			id := strings.TrimSuffix(report.ShareBlobPath, ".json")
			byID := testEnv.Request(http.MethodGet, "/check?id="+url.QueryEscape(id), nil, nil)
			Expect(byID.StatusCode).To(Equal(http.StatusOK))
			Expect(byID.Report().FromSnapshot).To(BeTrue())
		})

		It("answers 404 for a snapshot that was never stored", func() {
			resp := testEnv.Request(http.MethodGet, "/check?blob=audits/never-stored.json", nil, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))

			envelope := resp.Envelope()
			Expect(envelope["ok"]).To(BeFalse())
		})
	})

	Context("lead capture", func() {
		It("forwards a valid lead to the mail provider", func() {
			resp := testEnv.Request(http.MethodPost, "/lead", []byte(`{
				"name": "Ada",
				"email": "ada@example.com",
				"website": "https://example.com",
				"source": "widget"
			}`), map[string]string{"Content-Type": "application/json"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			envelope := resp.Envelope()
			Expect(envelope["ok"]).To(BeTrue())
			Expect(envelope["id"]).To(Equal("lead_acceptance_0001"))
		})

		It("validates the lead before sending", func() {
			resp := testEnv.Request(http.MethodPost, "/lead", []byte(`{"email":"not-an-email"}`), map[string]string{"Content-Type": "application/json"})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			envelope := resp.Envelope()
			errs, ok := envelope["errors"].([]any)
			Expect(ok).To(BeTrue())
			Expect(errs).To(ContainElement("email is not valid"))
			Expect(errs).To(ContainElement("website is required"))
		})

		It("rejects non-POST methods", func() {
			resp := testEnv.Request(http.MethodGet, "/lead", nil, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusMethodNotAllowed))
		})
	})

	Context("audit events", func() {
		It("writes one JSON line per completed audit", func() {
			By("Running a live audit with a traceable request id")
			resp := testEnv.AuditURL(testEnv.Site.URL(), url.Values{"nocache": {"1"}})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			requestID := resp.Header.Get("X-Request-ID")
			Expect(requestID).NotTo(BeEmpty())

			event := findAuditEvent(requestID)
			Expect(event).NotTo(BeNil(), "no event line for request %s", requestID)
			Expect(event["source"]).To(Equal("live"))
			Expect(event["status"]).To(Equal("ok"))
			Expect(event["fetched_status"]).To(BeEquivalentTo(http.StatusOK))

			By("Running the same audit again and expecting a cache-sourced event")
			resp = testEnv.AuditURL(testEnv.Site.URL(), nil)
			cachedID := resp.Header.Get("X-Request-ID")

			event = findAuditEvent(cachedID)
			Expect(event).NotTo(BeNil(), "no event line for request %s", cachedID)
			Expect(event["source"]).To(Equal("cache"))
		})
	})
})

// findAuditEvent scans the event log for the line with the given
// request id.
func findAuditEvent(requestID string) map[string]any {
	content, err := os.ReadFile(testEnv.EventsPath)
	Expect(err).NotTo(HaveOccurred())

	for _, line := range strings.Split(strings.TrimSpace(string(content)), "\n") {
		if line == "" {
			continue
		}
		var event map[string]any
		Expect(json.Unmarshal([]byte(line), &event)).To(Succeed(), "line: %s", line)
		if event["request_id"] == requestID {
			return event
		}
	}
	return nil
}
