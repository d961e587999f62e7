// Package htmlinfo extracts the audit-relevant pieces of one fetched page:
// title, meta tags, canonical links, icon, images, and JSON-LD blocks.
// Everything operates on a single parsed tree built with
// golang.org/x/net/html, which recovers from malformed markup; tag and
// attribute matching is case-insensitive by construction.
package htmlinfo

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

const (
	// maxImgTags bounds how many <img> tags are collected from one page.
	maxImgTags = 40
	// maxJSONLDBlocks bounds how many ld+json scripts are collected.
	maxJSONLDBlocks = 5
)

// ImgTag is one <img> occurrence in document order. An absent alt
// attribute and alt="" are both reported as an empty Alt.
type ImgTag struct {
	Src     string
	Alt     string
	Loading string
}

// Page is one parsed HTML document.
type Page struct {
	root *html.Node
}

// Parse builds a Page from raw bytes. The underlying parser recovers from
// malformed markup, so err is I/O related only.
func Parse(body []byte) (*Page, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return &Page{root: root}, nil
}

// Title returns the first <title> text with whitespace runs collapsed.
func (p *Page) Title() string {
	title := findElement(p.root, "title")
	if title == nil {
		return ""
	}
	return strings.Join(strings.Fields(getTextContent(title)), " ")
}

// MetaByName returns the content of the first <meta name=...> match.
func (p *Page) MetaByName(name string) string {
	for _, meta := range findAllElements(p.root, "meta", 0) {
		if strings.EqualFold(getAttr(meta, "name"), name) {
			return strings.TrimSpace(getAttr(meta, "content"))
		}
	}
	return ""
}

// AllMetaByName returns every <meta name=...> content in document order,
// including empty ones. A page can carry several robots metas and each
// directive counts.
func (p *Page) AllMetaByName(name string) []string {
	var contents []string
	for _, meta := range findAllElements(p.root, "meta", 0) {
		if strings.EqualFold(getAttr(meta, "name"), name) {
			contents = append(contents, strings.TrimSpace(getAttr(meta, "content")))
		}
	}
	return contents
}

// MetaByProperty returns the content of the first <meta property=...>
// match (Open Graph style tags).
func (p *Page) MetaByProperty(property string) string {
	for _, meta := range findAllElements(p.root, "meta", 0) {
		if strings.EqualFold(getAttr(meta, "property"), property) {
			return strings.TrimSpace(getAttr(meta, "content"))
		}
	}
	return ""
}

// CanonicalLinks returns every <link rel~=canonical> href in document
// order, empties dropped.
func (p *Page) CanonicalLinks() []string {
	var hrefs []string
	for _, link := range findAllElements(p.root, "link", 0) {
		if !relContains(link, "canonical") {
			continue
		}
		if href := strings.TrimSpace(getAttr(link, "href")); href != "" {
			hrefs = append(hrefs, href)
		}
	}
	return hrefs
}

// IconHref returns the href of the first <link rel~=icon>, covering both
// "icon" and "shortcut icon" forms.
func (p *Page) IconHref() string {
	for _, link := range findAllElements(p.root, "link", 0) {
		if relContains(link, "icon") {
			return strings.TrimSpace(getAttr(link, "href"))
		}
	}
	return ""
}

// ImgTags returns the first maxImgTags images in document order.
func (p *Page) ImgTags() []ImgTag {
	nodes := findAllElements(p.root, "img", maxImgTags)
	tags := make([]ImgTag, 0, len(nodes))
	for _, n := range nodes {
		tags = append(tags, ImgTag{
			Src:     strings.TrimSpace(getAttr(n, "src")),
			Alt:     strings.TrimSpace(getAttr(n, "alt")),
			Loading: strings.ToLower(strings.TrimSpace(getAttr(n, "loading"))),
		})
	}
	return tags
}

// JSONLDBlocks returns the raw bodies of the first maxJSONLDBlocks
// <script type="application/ld+json"> elements.
func (p *Page) JSONLDBlocks() []string {
	var blocks []string
	for _, script := range findAllElements(p.root, "script", 0) {
		if len(blocks) >= maxJSONLDBlocks {
			break
		}
		typ := strings.ToLower(strings.TrimSpace(getAttr(script, "type")))
		if typ != "application/ld+json" {
			continue
		}
		blocks = append(blocks, strings.TrimSpace(getTextContent(script)))
	}
	return blocks
}
