package htmlinfo

import (
	"strings"

	"golang.org/x/net/html"
)

// findElement recursively searches for the first element with matching tag
// name (case-insensitive). Returns nil if not found.
func findElement(node *html.Node, tag string) *html.Node {
	if node == nil {
		return nil
	}
	return findElementLower(node, strings.ToLower(tag))
}

func findElementLower(node *html.Node, lowerTag string) *html.Node {
	if node.Type == html.ElementNode && strings.ToLower(node.Data) == lowerTag {
		return node
	}

	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if found := findElementLower(c, lowerTag); found != nil {
			return found
		}
	}
	return nil
}

// findAllElements returns all matching elements in document order, up to
// limit (0 = unbounded).
func findAllElements(root *html.Node, tag string, limit int) []*html.Node {
	if root == nil {
		return nil
	}
	tag = strings.ToLower(tag)
	var results []*html.Node

	var search func(*html.Node)
	search = func(n *html.Node) {
		if limit > 0 && len(results) >= limit {
			return
		}
		if n.Type == html.ElementNode && strings.ToLower(n.Data) == tag {
			results = append(results, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			search(c)
		}
	}
	search(root)
	return results
}

// getAttr returns the attribute value for the given name (case-insensitive
// comparison). Returns empty string if not found.
func getAttr(node *html.Node, name string) string {
	if node == nil {
		return ""
	}
	name = strings.ToLower(name)
	for _, attr := range node.Attr {
		if strings.ToLower(attr.Key) == name {
			return attr.Val
		}
	}
	return ""
}

// getTextContent recursively extracts all text content from node and
// descendants.
func getTextContent(node *html.Node) string {
	if node == nil {
		return ""
	}

	var sb strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(node)
	return sb.String()
}

// relContains reports whether the space-separated rel attribute contains
// the given token ("shortcut icon" contains "icon").
func relContains(node *html.Node, token string) bool {
	for _, t := range strings.Fields(strings.ToLower(getAttr(node, "rel"))) {
		if t == token {
			return true
		}
	}
	return false
}
