package instagram

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const (
	graphQLPath        = "/graphql/query/"
	webProfileInfoPath = "/api/v1/users/web_profile_info/"

	// persisted query ids of the web client
	docIDAccount = "10068642573147916"
	docIDListing = "9456479251133434"
	docIDDetail  = "8845758582119845"

	rateLimitMessage = "Please wait a few minutes before you try again"
	feedbackRequired = "feedback_required"
)

// ProfilePath is the public profile page of username.
func ProfilePath(username string) string {
	return "/" + url.PathEscape(username) + "/"
}

func mobileFeedPath(userID string) string {
	return fmt.Sprintf("/api/v1/feed/user/%s/", url.PathEscape(userID))
}

func mobileMediaInfoPath(pk string) string {
	return fmt.Sprintf("/api/v1/media/%s/info/", pk)
}

// PostURL is the public permalink of a post.
func PostURL(baseURL, shortcode string) string {
	if shortcode == "" {
		return ""
	}
	return fmt.Sprintf("%s/p/%s/", strings.TrimRight(baseURL, "/"), url.PathEscape(shortcode))
}

// graphQLQuery builds the query string for a persisted GraphQL query.
// variables are encoded as compact JSON.
func graphQLQuery(docID string, variables map[string]any) (url.Values, error) {
	raw, err := json.Marshal(variables)
	if err != nil {
		return nil, fmt.Errorf("encode variables: %w", err)
	}
	q := url.Values{}
	q.Set("doc_id", docID)
	q.Set("variables", string(raw))
	return q, nil
}

func accountVariables(userID string) map[string]any {
	return map[string]any{
		"id":             userID,
		"render_surface": "PROFILE",
	}
}

func listingVariables(username, cursor string, pageSize int) map[string]any {
	var after any
	if cursor != "" {
		after = cursor
	}
	return map[string]any{
		"after":  after,
		"before": nil,
		"data": map[string]any{
			"count":                             pageSize,
			"include_reel_media_seen_timestamp": true,
			"include_relationship_info":         true,
			"latest_besties_reel_media":         true,
			"latest_reel_media":                 true,
		},
		"first":    pageSize,
		"last":     nil,
		"username": username,
		"__relay_internal__pv__PolarisIsLoggedInrelayprovider":   true,
		"__relay_internal__pv__PolarisShareSheetV3relayprovider": true,
	}
}

func detailVariables(shortcode string) map[string]any {
	return map[string]any{
		"shortcode":               shortcode,
		"fetch_tagged_user_count": nil,
		"hoisted_comment_id":      nil,
		"hoisted_reply_id":        nil,
	}
}

// IsValidUsername checks if a username is valid according to Instagram rules
func IsValidUsername(username string) bool {
	if username == "" || len(username) > 30 {
		return false
	}

	// Instagram usernames can only contain letters, numbers, periods, and underscores
	for _, char := range username {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '.' || char == '_') {
			return false
		}
	}

	return true
}

// SanitizeUsername strips a leading @, a profile URL prefix and trailing
// slashes or spaces.
func SanitizeUsername(username string) string {
	if u, err := url.Parse(username); err == nil && u.Host != "" {
		username = u.Path
		for len(username) > 0 && username[0] == '/' {
			username = username[1:]
		}
	}
	if username == "" {
		return ""
	}

	if username[0] == '@' {
		username = username[1:]
	}

	for len(username) > 0 && (username[len(username)-1] == '/' || username[len(username)-1] == ' ') {
		username = username[:len(username)-1]
	}

	return username
}
