package instagram

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "igtail/pkg/errors"
	"igtail/pkg/models"
	"igtail/pkg/retry"
)

// page is one decoded listing response.
type page struct {
	items   []timelineNode
	hasNext bool
	cursor  string
}

// pageFunc loads the page after cursor ("" for the first). A
// *models.ParsingError aborts the listing softly; any other error is raised.
type pageFunc func(ctx context.Context, cursor string) (page, error)

// paginate walks pages in cursor order. Items are assumed newest first: the
// first one older than minTimestamp ends the listing, including later pages.
func (e *engine) paginate(ctx context.Context, fetch pageFunc, minTimestamp int64) ([]models.ParsingResult[models.PlainPost], error) {
	var (
		results []models.ParsingResult[models.PlainPost]
		cursor  string
		pages   int
	)

	for {
		pg, err := fetch(ctx, cursor)
		if err != nil {
			var parseErr *models.ParsingError
			if errors.As(err, &parseErr) {
				e.logger.WarnWithFields("Listing aborted", map[string]interface{}{
					"page":   pages + 1,
					"reason": parseErr.Message,
				})
				return []models.ParsingResult[models.PlainPost]{
					models.Failure[models.PlainPost]("listing page %d: %s", pages+1, parseErr.Message),
				}, nil
			}
			return nil, err
		}
		pages++

		for _, node := range pg.items {
			if node.TakenAt < minTimestamp {
				e.logger.DebugWithFields("Reached minimum timestamp", map[string]interface{}{
					"min_timestamp": minTimestamp,
					"pages":         pages,
				})
				return results, nil
			}
			code := node.shortcode()
			if code == "" {
				results = append(results, models.Failure[models.PlainPost]("listing item without shortcode"))
				continue
			}
			postType, err := mediaType(node.MediaType)
			if err != nil {
				return nil, fmt.Errorf("post %s: %w", code, err)
			}
			results = append(results, models.Success(models.PlainPost{
				Type:    postType,
				ID:      code,
				TakenAt: time.Unix(node.TakenAt, 0).UTC(),
			}))
		}

		if !pg.hasNext || pg.cursor == "" {
			return results, nil
		}
		cursor = pg.cursor

		if err := e.sleep(ctx, retry.Between(e.cfg.PageDelayMin, e.cfg.PageDelayMax)); err != nil {
			return nil, err
		}
	}
}

func mediaType(code int) (models.PostType, error) {
	switch code {
	case 1:
		return models.PostTypePost, nil
	case 2:
		return models.PostTypeReel, nil
	case 8:
		return models.PostTypeCarousel, nil
	default:
		return "", fmt.Errorf("%w: %d", errs.ErrUnexpectedMediaType, code)
	}
}

func softFailure(format string, args ...any) error {
	return &models.ParsingError{Message: fmt.Sprintf(format, args...)}
}
