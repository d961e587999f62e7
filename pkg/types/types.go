package types

// CheckStatus is the classified outcome of a single audit check.
type CheckStatus string

const (
	StatusPass   CheckStatus = "pass"
	StatusWarn   CheckStatus = "warn"
	StatusFail   CheckStatus = "fail"
	StatusLocked CheckStatus = "locked"
)

// Check identifiers. The set is closed: reports never contain ids outside
// this list, and consumers key findings by id rather than position.
const (
	CheckSitemap         = "sitemap"
	CheckRobots          = "robots"
	CheckFavicon         = "favicon"
	CheckOpengraph       = "opengraph"
	CheckCanonical       = "canonical"
	CheckNoindex         = "noindex"
	CheckMetaRobots      = "meta-robots"
	CheckMetaDescription = "meta-description"
	CheckTitleLength     = "title-length"
	CheckViewport        = "viewport"
	CheckWWWCanonical    = "www-canonical"
	CheckImgAlt          = "img-alt"
	CheckStructuredData  = "structured-data"
	CheckH1Structure     = "h1-structure"
	CheckLLMS            = "llms"
	CheckTimeout         = "timeout"
	CheckPSI             = "psi"
	CheckTTFB            = "ttfb"
	CheckImgModern       = "img-modern"
	CheckImgSize         = "img-size"
	CheckImgLazy         = "img-lazy"
	CheckCompression     = "compression"
	CheckBlocked         = "blocked"
	CheckHTTP            = "http"
	CheckHTTPSRedirect   = "https-redirect"
	CheckMixedContent    = "mixed-content"
	CheckSecurityHeaders = "security-headers"
)

// LockedCheckIDs are the placeholder findings inserted into every report,
// including the blocked and timeout degraded paths. They defer computation
// and always carry status=locked.
var LockedCheckIDs = []string{
	CheckMixedContent,
	CheckSecurityHeaders,
	CheckHTTPSRedirect,
	CheckCompression,
	CheckStructuredData,
	CheckH1Structure,
	CheckLLMS,
}

// Check is one classified finding. Value carries an optional numeric or
// boolean measurement (length, percentage, score) backing the status.
type Check struct {
	ID      string      `json:"id"`
	Label   string      `json:"label"`
	Status  CheckStatus `json:"status"`
	Details string      `json:"details,omitempty"`
	Value   any         `json:"value,omitempty"`
	Locked  bool        `json:"locked,omitempty"`
}

// DiagEntry records one probe's wall-clock cost for debug responses.
type DiagEntry struct {
	Step string `json:"step"`
	Ms   int64  `json:"ms"`
}

// Report is the wire result of one audit.
//
// Invariants: FetchedStatus==0 exactly when Timeout==true; Blocked==true
// implies FetchedStatus is 401, 403 or 429 after the browser-header retry
// also failed; Checks contains exactly one entry per applicable id.
type Report struct {
	OK              bool        `json:"ok"`
	URL             string      `json:"url"`
	NormalizedURL   string      `json:"normalizedUrl"`
	FinalURL        string      `json:"finalUrl"`
	FetchedStatus   int         `json:"fetchedStatus"`
	TimingMs        int64       `json:"timingMs"`
	Title           string      `json:"title"`
	MetaDescription string      `json:"metaDescription"`
	Score           int         `json:"score"`
	Speed           *int        `json:"speed,omitempty"`
	Checks          []Check     `json:"checks"`
	Blocked         bool        `json:"blocked,omitempty"`
	Timeout         bool        `json:"timeout,omitempty"`
	Cached          bool        `json:"cached,omitempty"`
	CacheAgeMs      int64       `json:"cacheAgeMs,omitempty"`
	FromSnapshot    bool        `json:"fromSnapshot,omitempty"`
	ShareBlobPath   string      `json:"shareBlobPath,omitempty"`
	ShareBlobURL    string      `json:"shareBlobUrl,omitempty"`
	ShareURL        string      `json:"shareUrl,omitempty"`
	Diag            []DiagEntry `json:"_diag,omitempty"`
}

// FindCheck returns the check with the given id, or nil when absent.
func (r *Report) FindCheck(id string) *Check {
	for i := range r.Checks {
		if r.Checks[i].ID == id {
			return &r.Checks[i]
		}
	}
	return nil
}

// HasCheck reports whether a check with the given id is present.
func (r *Report) HasCheck(id string) bool {
	return r.FindCheck(id) != nil
}
