package urlutil

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// NormalizeTarget converts a raw user-supplied target into the absolute URL
// an audit fetches. Handles URLs without scheme by prepending https://.
// Scheme and host are lowercased, default ports and the fragment removed;
// path and query are preserved as given.
func NormalizeTarget(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("target URL is empty")
	}

	if !strings.Contains(raw, "://") && !strings.HasPrefix(raw, "//") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid URL: unsupported scheme %q", u.Scheme)
	}

	if u.Host == "" {
		return "", fmt.Errorf("invalid URL: missing host")
	}

	// Host should contain at least one dot (for domain.tld), be localhost,
	// or be an IP literal. Use Hostname() to strip port for validation.
	hostname := u.Hostname()
	if !strings.Contains(hostname, ".") && hostname != "localhost" && net.ParseIP(hostname) == nil {
		return "", fmt.Errorf("invalid URL: invalid host %q", u.Host)
	}

	u.Host = strings.ToLower(u.Host)
	u.Host = strings.TrimSuffix(u.Host, ".")
	u.Host = stripDefaultPort(u.Scheme, u.Host)
	u.Fragment = ""

	return u.String(), nil
}

// CanonicalKey reduces a URL to its cache-key form: query and fragment
// dropped, trailing slashes collapsed, host lowercased, default ports
// removed. Idempotent. A string that does not parse as a hosted URL is
// returned trimmed so lookups still behave deterministically.
func CanonicalKey(rawURL string) string {
	raw := strings.TrimSpace(rawURL)

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimRight(raw, "/")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Host = stripDefaultPort(u.Scheme, u.Host)
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""

	return u.String()
}

// KeyHash generates the XXHash64 fingerprint of a canonical key, used to
// build fixed-width cache keys.
func KeyHash(key string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(key))
}

func stripDefaultPort(scheme, host string) string {
	if (scheme == "http" && strings.HasSuffix(host, ":80")) ||
		(scheme == "https" && strings.HasSuffix(host, ":443")) {
		return host[:strings.LastIndex(host, ":")]
	}
	return host
}
