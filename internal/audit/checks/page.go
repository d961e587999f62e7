package checks

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"unicode/utf8"

	"github.com/sitepulse/engine/internal/audit/htmlinfo"
	"github.com/sitepulse/engine/internal/common/urlutil"
	"github.com/sitepulse/engine/pkg/types"
)

// Rune ranges for the text length checks.
const (
	titleMin = 15
	titleMax = 60
	descMin  = 50
	descMax  = 160
)

// Alt-text coverage thresholds.
const (
	imgAltPassRatio = 0.90
	imgAltWarnRatio = 0.60
)

// OversizedImageBytes is the HEAD content-length above which an image
// counts as oversized.
const OversizedImageBytes = 300000

var (
	noindexPattern     = regexp.MustCompile(`(?i)\b(noindex|none)\b`)
	modernImagePattern = regexp.MustCompile(`(?i)\.(avif|webp)([?#]|$)`)
)

// TitleLength classifies the page title: missing fails, 15-60 runes
// passes, any other length warns.
func TitleLength(title string) types.Check {
	c := types.Check{ID: types.CheckTitleLength, Label: label(types.CheckTitleLength)}
	if title == "" {
		c.Status = types.StatusFail
		c.Details = "Page has no <title>"
		return c
	}

	n := utf8.RuneCountInString(title)
	c.Value = n
	if n >= titleMin && n <= titleMax {
		c.Status = types.StatusPass
		c.Details = fmt.Sprintf("Title is %d characters", n)
	} else {
		c.Status = types.StatusWarn
		c.Details = fmt.Sprintf("Title is %d characters, recommended %d-%d", n, titleMin, titleMax)
	}
	return c
}

// MetaDescription classifies the description: missing fails, 50-160 runes
// passes, any other length warns.
func MetaDescription(desc string) types.Check {
	c := types.Check{ID: types.CheckMetaDescription, Label: label(types.CheckMetaDescription)}
	if desc == "" {
		c.Status = types.StatusFail
		c.Details = "Page has no meta description"
		return c
	}

	n := utf8.RuneCountInString(desc)
	c.Value = n
	if n >= descMin && n <= descMax {
		c.Status = types.StatusPass
		c.Details = fmt.Sprintf("Description is %d characters", n)
	} else {
		c.Status = types.StatusWarn
		c.Details = fmt.Sprintf("Description is %d characters, recommended %d-%d", n, descMin, descMax)
	}
	return c
}

// Viewport requires a viewport meta tag.
func Viewport(content string) types.Check {
	c := types.Check{ID: types.CheckViewport, Label: label(types.CheckViewport)}
	if content == "" {
		c.Status = types.StatusFail
		c.Details = "No viewport meta tag found"
	} else {
		c.Status = types.StatusPass
		c.Details = "Viewport meta tag present"
	}
	return c
}

// Canonical compares the page's canonical link against the final URL.
// Equality ignores query, fragment, trailing slash, and host case;
// multiple canonical links warn even when they agree.
func Canonical(links []string, finalURL string) types.Check {
	c := types.Check{ID: types.CheckCanonical, Label: label(types.CheckCanonical)}
	switch {
	case len(links) == 0:
		c.Status = types.StatusFail
		c.Details = "No canonical link found"
	case len(links) > 1:
		c.Status = types.StatusWarn
		c.Details = fmt.Sprintf("%d canonical links found, expected one", len(links))
	default:
		resolved := resolveRef(links[0], finalURL)
		if urlutil.CanonicalKey(resolved) == urlutil.CanonicalKey(finalURL) {
			c.Status = types.StatusPass
			c.Details = "Canonical matches the page URL"
		} else {
			c.Status = types.StatusWarn
			c.Details = fmt.Sprintf("Canonical points to %s", resolved)
		}
	}
	return c
}

// resolveRef resolves ref against base, falling back to ref untouched when
// either side does not parse.
func resolveRef(ref, base string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

// RobotsDirectives gathers every noindex-capable source on a page: the
// robots meta triad plus the X-Robots-Tag response header.
type RobotsDirectives struct {
	MetaRobots    []string
	MetaGooglebot []string
	MetaBingbot   []string
	XRobotsTag    string
}

// blockingSource names the first source containing a noindex or none
// directive, or returns empty.
func (d RobotsDirectives) blockingSource() string {
	for _, v := range d.MetaRobots {
		if noindexPattern.MatchString(v) {
			return `meta[name="robots"]`
		}
	}
	for _, v := range d.MetaGooglebot {
		if noindexPattern.MatchString(v) {
			return `meta[name="googlebot"]`
		}
	}
	for _, v := range d.MetaBingbot {
		if noindexPattern.MatchString(v) {
			return `meta[name="bingbot"]`
		}
	}
	if noindexPattern.MatchString(d.XRobotsTag) {
		return "X-Robots-Tag header"
	}
	return ""
}

func (d RobotsDirectives) metaContents() []string {
	var all []string
	for _, group := range [][]string{d.MetaRobots, d.MetaGooglebot, d.MetaBingbot} {
		for _, v := range group {
			if v != "" {
				all = append(all, v)
			}
		}
	}
	return all
}

// Noindex fails when any directive source blocks indexing.
func Noindex(d RobotsDirectives) types.Check {
	c := types.Check{ID: types.CheckNoindex, Label: label(types.CheckNoindex)}
	if src := d.blockingSource(); src != "" {
		c.Status = types.StatusFail
		c.Details = fmt.Sprintf("Indexing blocked by %s", src)
		return c
	}
	c.Status = types.StatusPass
	c.Details = "Page is indexable"
	return c
}

// MetaRobots is informational: it only warns when the meta tags repeat a
// noindex the noindex check already failed on.
func MetaRobots(d RobotsDirectives) types.Check {
	c := types.Check{ID: types.CheckMetaRobots, Label: label(types.CheckMetaRobots)}
	contents := d.metaContents()
	if len(contents) == 0 {
		c.Status = types.StatusPass
		c.Details = "No robots meta directives"
		return c
	}
	for _, v := range contents {
		if noindexPattern.MatchString(v) {
			c.Status = types.StatusWarn
			c.Details = "Robots meta contains a noindex directive"
			return c
		}
	}
	c.Status = types.StatusPass
	c.Details = "Robots meta directives allow indexing"
	return c
}

// OpenGraph passes with both og:title and og:image present (and the image
// not known to be broken), warns on partial tags, fails when nothing is
// there. imageLoads is nil when the image probe never ran.
func OpenGraph(ogTitle, ogImage string, imageLoads *bool) types.Check {
	c := types.Check{ID: types.CheckOpengraph, Label: label(types.CheckOpengraph)}
	switch {
	case ogTitle != "" && ogImage != "" && (imageLoads == nil || *imageLoads):
		c.Status = types.StatusPass
		c.Details = "og:title and og:image present"
	case ogTitle != "" || ogImage != "":
		c.Status = types.StatusWarn
		if ogImage != "" && imageLoads != nil && !*imageLoads {
			c.Details = "og:image does not load"
		} else {
			c.Details = "Only some Open Graph tags present"
		}
	default:
		c.Status = types.StatusFail
		c.Details = "No Open Graph tags found"
	}
	return c
}

// ImgAlt rates alt-text coverage over the sampled images. Callers skip
// this check on pages without images.
func ImgAlt(imgs []htmlinfo.ImgTag) types.Check {
	c := types.Check{ID: types.CheckImgAlt, Label: label(types.CheckImgAlt)}
	withAlt := 0
	for _, img := range imgs {
		if img.Alt != "" {
			withAlt++
		}
	}

	ratio := float64(withAlt) / float64(len(imgs))
	c.Value = math.Round(ratio*100) / 100
	c.Details = fmt.Sprintf("%d of %d images have alt text", withAlt, len(imgs))
	switch {
	case ratio >= imgAltPassRatio:
		c.Status = types.StatusPass
	case ratio >= imgAltWarnRatio:
		c.Status = types.StatusWarn
	default:
		c.Status = types.StatusFail
	}
	return c
}

// ImgModern passes when at least one image uses an avif or webp source.
func ImgModern(imgs []htmlinfo.ImgTag) types.Check {
	c := types.Check{ID: types.CheckImgModern, Label: label(types.CheckImgModern)}
	for _, img := range imgs {
		if modernImagePattern.MatchString(img.Src) {
			c.Status = types.StatusPass
			c.Details = "Modern image formats in use"
			return c
		}
	}
	c.Status = types.StatusWarn
	c.Details = "No avif or webp images found"
	return c
}

// ImgLazy passes when at least one image is lazily loaded.
func ImgLazy(imgs []htmlinfo.ImgTag) types.Check {
	c := types.Check{ID: types.CheckImgLazy, Label: label(types.CheckImgLazy)}
	for _, img := range imgs {
		if img.Loading == "lazy" {
			c.Status = types.StatusPass
			c.Details = "Lazy loading in use"
			return c
		}
	}
	c.Status = types.StatusWarn
	c.Details = `No images use loading="lazy"`
	return c
}

// ImgSize buckets how many HEAD-probed images exceeded the oversize
// threshold. Callers omit this check when no image could be probed.
func ImgSize(oversized, probed int) types.Check {
	c := types.Check{ID: types.CheckImgSize, Label: label(types.CheckImgSize), Value: oversized}
	switch {
	case oversized == 0:
		c.Status = types.StatusPass
		c.Details = fmt.Sprintf("No oversized images among %d probed", probed)
	case oversized <= 2:
		c.Status = types.StatusWarn
		c.Details = fmt.Sprintf("%d of %d probed images exceed 300 KB", oversized, probed)
	default:
		c.Status = types.StatusFail
		c.Details = fmt.Sprintf("%d of %d probed images exceed 300 KB", oversized, probed)
	}
	return c
}
