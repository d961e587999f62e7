package checks

import (
	"strings"
)

// RobotsInfo is the parsed view of one robots.txt body.
type RobotsInfo struct {
	// DisallowsAll is true when a group applying to all agents contains
	// the bare rule "Disallow: /".
	DisallowsAll bool
	// Sitemaps holds every Sitemap: URL in file order.
	Sitemaps []string
}

// ParseRobots scans a robots.txt body for the two things the audit cares
// about: a wildcard disallow-all rule and advertised sitemap URLs.
// Consecutive User-agent lines form one group; a rule line closes it.
func ParseRobots(body []byte) RobotsInfo {
	var info RobotsInfo

	starGroup := false
	inAgents := false
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)

		switch key {
		case "user-agent":
			if !inAgents {
				starGroup = false
				inAgents = true
			}
			if val == "*" {
				starGroup = true
			}
		case "sitemap":
			inAgents = false
			if val != "" {
				info.Sitemaps = append(info.Sitemaps, val)
			}
		case "disallow":
			inAgents = false
			if starGroup && val == "/" {
				info.DisallowsAll = true
			}
		default:
			inAgents = false
		}
	}
	return info
}
