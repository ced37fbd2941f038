package instagram

// Wire formats of the platform responses. Only fields we map are declared.

type pageInfo struct {
	HasNextPage bool   `json:"has_next_page"`
	EndCursor   string `json:"end_cursor"`
}

type countEdge struct {
	Count int `json:"count"`
}

// web GraphQL

type accountQueryResponse struct {
	Data struct {
		User *struct {
			Username       string `json:"username"`
			FullName       string `json:"full_name"`
			FollowerCount  int    `json:"follower_count"`
			FollowingCount int    `json:"following_count"`
			MediaCount     int    `json:"media_count"`
		} `json:"user"`
	} `json:"data"`
}

type timelineResponse struct {
	Data struct {
		Timeline *struct {
			Edges []struct {
				Node timelineNode `json:"node"`
			} `json:"edges"`
			PageInfo pageInfo `json:"page_info"`
		} `json:"xdt_api__v1__feed__user_timeline_graphql_connection"`
	} `json:"data"`
}

type timelineNode struct {
	PK        jsonID `json:"pk"`
	Code      string `json:"code"`
	MediaType int    `json:"media_type"`
	TakenAt   int64  `json:"taken_at"`
}

// shortcode returns the node's code, deriving it from the media id when the
// payload omits it.
func (n timelineNode) shortcode() string {
	if n.Code != "" || n.PK == "" {
		return n.Code
	}
	code, err := PKToShortcode(string(n.PK))
	if err != nil {
		return ""
	}
	return code
}

type shortcodeMediaResponse struct {
	Message string `json:"message"`
	Data    struct {
		Media *shortcodeMedia `json:"xdt_shortcode_media"`
	} `json:"data"`
}

type shortcodeMedia struct {
	ID                 string `json:"id"`
	Shortcode          string `json:"shortcode"`
	IsVideo            bool   `json:"is_video"`
	TakenAtTimestamp   int64  `json:"taken_at_timestamp"`
	EdgeMediaToCaption struct {
		Edges []struct {
			Node struct {
				Text string `json:"text"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"edge_media_to_caption"`
	EdgeMediaPreviewLike countEdge `json:"edge_media_preview_like"`
	VideoDuration        float64   `json:"video_duration"`
	VideoViewCount       int       `json:"video_view_count"`
	VideoPlayCount       int       `json:"video_play_count"`
}

// mobile private API

type webProfileInfoResponse struct {
	Data struct {
		User *struct {
			ID                       string    `json:"id"`
			Username                 string    `json:"username"`
			FullName                 string    `json:"full_name"`
			EdgeFollowedBy           countEdge `json:"edge_followed_by"`
			EdgeFollow               countEdge `json:"edge_follow"`
			EdgeOwnerToTimelineMedia countEdge `json:"edge_owner_to_timeline_media"`
		} `json:"user"`
	} `json:"data"`
}

type mobileFeedResponse struct {
	Items         []timelineNode `json:"items"`
	MoreAvailable bool           `json:"more_available"`
	NextMaxID     string         `json:"next_max_id"`
}

type mediaInfoResponse struct {
	Message string          `json:"message"`
	Items   []mediaInfoItem `json:"items"`
}

type mediaInfoItem struct {
	PK      jsonID `json:"pk"`
	Code    string `json:"code"`
	TakenAt int64  `json:"taken_at"`
	Caption *struct {
		Text string `json:"text"`
	} `json:"caption"`
	LikeCount     int     `json:"like_count"`
	MediaType     int     `json:"media_type"`
	VideoDuration float64 `json:"video_duration"`
	ViewCount     int     `json:"view_count"`
	PlayCount     int     `json:"play_count"`
}

// jsonID accepts ids sent either as strings or as numbers.
type jsonID string

func (j *jsonID) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "null" {
		s = ""
	}
	*j = jsonID(s)
	return nil
}
