package instagram

import (
	"context"
	"encoding/json"
	"time"

	"igtail/pkg/models"
)

// webFetcher talks to the browser GraphQL surface. The authenticated and
// anonymous variants differ only in the headers and cookies of the client.
type webFetcher struct {
	*engine
	variant string
}

func (w *webFetcher) Variant() string {
	return w.variant
}

func (w *webFetcher) FetchAccount(ctx context.Context, username string) (models.ParsingResult[models.AccountSummary], error) {
	resp, err := w.client.Get(ctx, ProfilePath(username), nil)
	if err != nil {
		return models.ParsingResult[models.AccountSummary]{}, err
	}
	failure, err := w.inspectLookup(resp)
	if err != nil {
		return models.ParsingResult[models.AccountSummary]{}, err
	}
	if failure != "" {
		return models.Failure[models.AccountSummary]("account %s: %s", username, failure), nil
	}

	userID := extractUserID(resp.Body)
	if userID == "" {
		return models.Failure[models.AccountSummary]("account %s: id not found in profile page", username), nil
	}

	query, err := graphQLQuery(docIDAccount, accountVariables(userID))
	if err != nil {
		return models.ParsingResult[models.AccountSummary]{}, err
	}
	resp, err = w.client.Get(ctx, graphQLPath, query)
	if err != nil {
		return models.ParsingResult[models.AccountSummary]{}, err
	}
	if failure, err = w.inspectLookup(resp); err != nil {
		return models.ParsingResult[models.AccountSummary]{}, err
	}
	if failure != "" {
		return models.Failure[models.AccountSummary]("account %s: %s", username, failure), nil
	}

	var payload accountQueryResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return models.Failure[models.AccountSummary]("account %s: decode: %v", username, err), nil
	}
	user := payload.Data.User
	if user == nil {
		return models.Failure[models.AccountSummary]("account %s: user missing from response", username), nil
	}

	return models.Success(models.AccountSummary{
		UserID:    userID,
		Username:  user.Username,
		FullName:  user.FullName,
		Followers: user.FollowerCount,
		Following: user.FollowingCount,
		Posts:     user.MediaCount,
	}), nil
}

func (w *webFetcher) FetchListing(ctx context.Context, target Target, minTimestamp int64) ([]models.ParsingResult[models.PlainPost], error) {
	return w.paginate(ctx, func(ctx context.Context, cursor string) (page, error) {
		query, err := graphQLQuery(docIDListing, listingVariables(target.Username, cursor, w.cfg.PageSize))
		if err != nil {
			return page{}, err
		}
		resp, err := w.client.Get(ctx, graphQLPath, query)
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

		var payload timelineResponse
		if err := json.Unmarshal(resp.Body, &payload); err != nil {
			return page{}, softFailure("decode: %v", err)
		}
		timeline := payload.Data.Timeline
		if timeline == nil {
			return page{}, softFailure("timeline missing from response")
		}

		pg := page{hasNext: timeline.PageInfo.HasNextPage, cursor: timeline.PageInfo.EndCursor}
		for _, edge := range timeline.Edges {
			pg.items = append(pg.items, edge.Node)
		}
		return pg, nil
	}, minTimestamp)
}

func (w *webFetcher) FetchDetail(ctx context.Context, shortcode string) (models.ParsingResult[models.Post], error) {
	query, err := graphQLQuery(docIDDetail, detailVariables(shortcode))
	if err != nil {
		return models.ParsingResult[models.Post]{}, err
	}
	request := func(ctx context.Context) (*Response, error) {
		return w.client.Get(ctx, graphQLPath, query)
	}

	return w.loadDetail(ctx, shortcode, request, func(body []byte) models.ParsingResult[models.Post] {
		var payload shortcodeMediaResponse
		if err := json.Unmarshal(body, &payload); err != nil {
			return models.Failure[models.Post]("post %s: decode: %v", shortcode, err)
		}
		media := payload.Data.Media
		if media == nil {
			return restricted(shortcode)
		}

		post := models.Post{
			MediaID:     media.ID,
			Code:        media.Shortcode,
			URL:         PostURL(w.cfg.BaseURL, media.Shortcode),
			PublishedAt: time.Unix(media.TakenAtTimestamp, 0).UTC(),
			LikeCount:   media.EdgeMediaPreviewLike.Count,
		}
		if edges := media.EdgeMediaToCaption.Edges; len(edges) > 0 {
			post.Description = edges[0].Node.Text
		}
		if media.IsVideo {
			post.Reel = &models.ReelStats{
				Duration:  media.VideoDuration,
				ViewCount: media.VideoViewCount,
				PlayCount: media.VideoPlayCount,
			}
		}
		return models.Success(post)
	})
}
