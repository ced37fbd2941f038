package instagram

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	profilePageID = regexp.MustCompile(`"profilePage_([0-9]+)"`)
	profileJSONID = regexp.MustCompile(`"profile_id"\s*:\s*"?([0-9]+)`)
	numericID     = regexp.MustCompile(`^[0-9]+$`)
)

// extractUserID finds the numeric account id embedded in a profile page.
// The page markup changes often, so a handful of known spots are tried.
func extractUserID(page []byte) string {
	if m := profilePageID.FindSubmatch(page); m != nil {
		return string(m[1])
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return ""
	}

	if content, ok := doc.Find(`meta[property="instapp:owner_user_id"]`).Attr("content"); ok {
		if content = strings.TrimSpace(content); numericID.MatchString(content) {
			return content
		}
	}

	var id string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if m := profileJSONID.FindStringSubmatch(s.Text()); m != nil {
			id = m[1]
			return false
		}
		return true
	})
	return id
}

func isChallengeLocation(location string) bool {
	return strings.Contains(location, "/challenge")
}
