package htmlinfo

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// Locs returns every <loc> text value from a sitemap document. The html
// tokenizer shrugs off XML declarations and unknown tags, so the same scan
// works for urlset and sitemapindex files alike.
func Locs(xml []byte) []string {
	var locs []string
	z := html.NewTokenizer(bytes.NewReader(xml))

	inLoc := false
	var buf strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or malformed input; either way the scan is done.
			return locs
		case html.StartTagToken:
			if name, _ := z.TagName(); string(name) == "loc" {
				inLoc = true
				buf.Reset()
			}
		case html.TextToken:
			if inLoc {
				buf.Write(z.Text())
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "loc" && inLoc {
				if loc := strings.TrimSpace(buf.String()); loc != "" {
					locs = append(locs, loc)
				}
				inLoc = false
			}
		}
	}
}
