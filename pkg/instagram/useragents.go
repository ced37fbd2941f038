package instagram

import "math/rand/v2"

var desktopUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_3) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.2478.51",
}

// RandomUserAgent picks one of the common desktop browser identities.
func RandomUserAgent() string {
	return desktopUserAgents[rand.IntN(len(desktopUserAgents))]
}

// anonymousHeaders mimics a logged-out browser tab.
func anonymousHeaders(baseURL string) map[string]string {
	return map[string]string{
		"User-Agent":       RandomUserAgent(),
		"Accept":           "*/*",
		"Accept-Language":  "en-US,en;q=0.9",
		"Referer":          baseURL + "/",
		"X-Requested-With": "XMLHttpRequest",
	}
}
