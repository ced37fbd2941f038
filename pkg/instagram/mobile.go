package instagram

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"igtail/pkg/config"
	"igtail/pkg/models"
)

// mobileFetcher uses the private app API with an authenticated session.
type mobileFetcher struct {
	*engine
}

func (m *mobileFetcher) Variant() string {
	return config.VariantMobileAuthenticated
}

func (m *mobileFetcher) FetchAccount(ctx context.Context, username string) (models.ParsingResult[models.AccountSummary], error) {
	resp, err := m.client.Get(ctx, webProfileInfoPath, url.Values{"username": {username}})
	if err != nil {
		return models.ParsingResult[models.AccountSummary]{}, err
	}
	failure, err := m.inspectLookup(resp)
	if err != nil {
		return models.ParsingResult[models.AccountSummary]{}, err
	}
	if failure != "" {
		return models.Failure[models.AccountSummary]("account %s: %s", username, failure), nil
	}

	var payload webProfileInfoResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return models.Failure[models.AccountSummary]("account %s: decode: %v", username, err), nil
	}
	user := payload.Data.User
	if user == nil || user.ID == "" {
		return models.Failure[models.AccountSummary]("account %s: user missing from response", username), nil
	}

	return models.Success(models.AccountSummary{
		UserID:    user.ID,
		Username:  user.Username,
		FullName:  user.FullName,
		Followers: user.EdgeFollowedBy.Count,
		Following: user.EdgeFollow.Count,
		Posts:     user.EdgeOwnerToTimelineMedia.Count,
	}), nil
}

func (m *mobileFetcher) FetchListing(ctx context.Context, target Target, minTimestamp int64) ([]models.ParsingResult[models.PlainPost], error) {
	return m.paginate(ctx, func(ctx context.Context, cursor string) (page, error) {
		query := url.Values{"count": {strconv.Itoa(m.cfg.PageSize)}}
		if cursor != "" {
			query.Set("max_id", cursor)
		}
		resp, err := m.client.Get(ctx, mobileFeedPath(target.UserID), query)
		if err != nil {
			return page{}, err
		}
		failure, err := inspect(resp)
		if err != nil {
			return page{}, err
		}
		if failure != "" {
			return page{}, softFailure("%s", failure)
		}

		var payload mobileFeedResponse
		if err := json.Unmarshal(resp.Body, &payload); err != nil {
			return page{}, softFailure("decode: %v", err)
		}
		return page{items: payload.Items, hasNext: payload.MoreAvailable, cursor: payload.NextMaxID}, nil
	}, minTimestamp)
}

func (m *mobileFetcher) FetchDetail(ctx context.Context, shortcode string) (models.ParsingResult[models.Post], error) {
	pk, err := ShortcodeToPK(shortcode)
	if err != nil {
		return models.Failure[models.Post]("post %s: %v", shortcode, err), nil
	}
	request := func(ctx context.Context) (*Response, error) {
		return m.client.Get(ctx, mobileMediaInfoPath(pk), nil)
	}

	return m.loadDetail(ctx, shortcode, request, func(body []byte) models.ParsingResult[models.Post] {
		var payload mediaInfoResponse
		if err := json.Unmarshal(body, &payload); err != nil {
			return models.Failure[models.Post]("post %s: decode: %v", shortcode, err)
		}
		if len(payload.Items) == 0 {
			return restricted(shortcode)
		}

		item := payload.Items[0]
		code := item.Code
		if code == "" {
			code = shortcode
		}
		post := models.Post{
			MediaID:     string(item.PK),
			Code:        code,
			URL:         PostURL(m.cfg.BaseURL, code),
			PublishedAt: time.Unix(item.TakenAt, 0).UTC(),
			LikeCount:   item.LikeCount,
		}
		if item.Caption != nil {
			post.Description = item.Caption.Text
		}
		if item.MediaType == 2 {
			post.Reel = &models.ReelStats{
				Duration:  item.VideoDuration,
				ViewCount: item.ViewCount,
				PlayCount: item.PlayCount,
			}
		}
		return models.Success(post)
	})
}
