package instagram

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	errs "igtail/pkg/errors"
	"igtail/pkg/models"
	"igtail/pkg/retry"
)

// detailRequest performs the one request that loads a post.
type detailRequest func(ctx context.Context) (*Response, error)

// detailDecoder maps a 2xx body into a post.
type detailDecoder func(body []byte) models.ParsingResult[models.Post]

// loadDetail runs a detail request. A soft rate limit answer triggers one long
// cooldown and a single retry; a second one returns errs.ErrRateLimited.
func (e *engine) loadDetail(ctx context.Context, shortcode string, request detailRequest, decode detailDecoder) (models.ParsingResult[models.Post], error) {
	resp, err := request(ctx)
	if err != nil {
		return models.ParsingResult[models.Post]{}, err
	}

	if isRateLimited(resp) {
		cooldown := retry.Between(e.cfg.RateLimitCooldownMin, e.cfg.RateLimitCooldownMax)
		e.logger.WarnWithFields("Rate limited, cooling down", map[string]interface{}{
			"shortcode": shortcode,
			"cooldown":  cooldown.String(),
		})
		if err := e.sleep(ctx, cooldown); err != nil {
			return models.ParsingResult[models.Post]{}, err
		}
		if resp, err = request(ctx); err != nil {
			return models.ParsingResult[models.Post]{}, err
		}
		if isRateLimited(resp) {
			return models.ParsingResult[models.Post]{}, fmt.Errorf("post %s: %w", shortcode, errs.ErrRateLimited)
		}
	}

	if bytes.Contains(resp.Body, []byte(feedbackRequired)) {
		return models.Failure[models.Post]("post %s: feedback_required, anonymous session banned", shortcode), nil
	}

	failure, err := inspect(resp)
	if err != nil {
		return models.ParsingResult[models.Post]{}, err
	}
	if failure != "" {
		return models.Failure[models.Post]("post %s: %s", shortcode, failure), nil
	}
	return decode(resp.Body), nil
}

func isRateLimited(resp *Response) bool {
	return resp.StatusCode == http.StatusTooManyRequests || bytes.Contains(resp.Body, []byte(rateLimitMessage))
}

func restricted(shortcode string) models.ParsingResult[models.Post] {
	return models.Failure[models.Post]("post %s: media missing, possibly age or geo restricted", shortcode)
}
