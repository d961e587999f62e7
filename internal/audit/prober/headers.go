package prober

import "net/http"

// Profile selects the request header set a probe identifies with.
type Profile int

const (
	// ProfileDefault sends the configured bot user agent with
	// cache-busting headers.
	ProfileDefault Profile = iota
	// ProfileBrowser imitates a desktop Chrome navigation. Used for one
	// retry when the origin answers the bot profile with 401/403/429.
	ProfileBrowser
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// applyProfile sets the headers for the chosen profile. The bot user agent
// comes from configuration so operators can point it at their own bot
// documentation page.
func applyProfile(h http.Header, profile Profile, botUserAgent string) {
	switch profile {
	case ProfileBrowser:
		h.Set("User-Agent", browserUserAgent)
		h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
		h.Set("Accept-Language", "en-US,en;q=0.9")
		h.Set("Sec-Ch-Ua", `"Not/A)Brand";v="8", "Chromium";v="126", "Google Chrome";v="126"`)
		h.Set("Sec-Ch-Ua-Mobile", "?0")
		h.Set("Sec-Ch-Ua-Platform", `"Windows"`)
		h.Set("Sec-Fetch-Dest", "document")
		h.Set("Sec-Fetch-Mode", "navigate")
		h.Set("Sec-Fetch-Site", "cross-site")
		h.Set("Upgrade-Insecure-Requests", "1")
		h.Set("Referer", "https://www.google.com/")
	default:
		h.Set("User-Agent", botUserAgent)
		h.Set("Accept", "*/*")
		h.Set("Cache-Control", "no-store")
		h.Set("Pragma", "no-cache")
	}
}
