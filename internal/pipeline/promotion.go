package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/researchfeed/paper-feed-service/internal/domain"
	"github.com/researchfeed/paper-feed-service/internal/repository"
)

// Promoter re-surfaces older stored documents into the daily feed on days
// when the fetch cycle stored nothing new, so the feed never runs dry.
type Promoter struct {
	papers repository.PaperStore
	limit  int
	logger zerolog.Logger
}

// NewPromoter creates a promoter re-surfacing up to limit documents per
// domain per day.
func NewPromoter(papers repository.PaperStore, limit int, logger zerolog.Logger) *Promoter {
	return &Promoter{
		papers: papers,
		limit:  limit,
		logger: logger.With().Str("component", "promoter").Logger(),
	}
}

// Promote re-surfaces candidates for every tracked domain on the given day,
// oldest first, and returns the total number of documents affected.
//
// For each candidate it first tries to insert a dated clone carrying the
// original's fetched_date in promoted_from. The source id is unique in the
// store, so the insert conflicts with the original; the promoter then falls
// back to appending the day to the original's promotion history, which is
// what puts it back into the day's feed.
func (p *Promoter) Promote(ctx context.Context, day string, now time.Time) (int, error) {
	total := 0

	for _, tag := range domain.AllDomains() {
		candidates, err := p.papers.SelectPromotable(ctx, tag, day, p.limit)
		if err != nil {
			if ctx.Err() != nil {
				return total, fmt.Errorf("selecting promotable papers: %w", err)
			}
			p.logger.Error().
				Err(err).
				Str("domain", string(tag)).
				Msg("failed to select promotable papers")
			continue
		}

		for _, doc := range candidates {
			if err := p.promoteOne(ctx, doc, day, now); err != nil {
				if ctx.Err() != nil {
					return total, err
				}
				p.logger.Warn().
					Err(err).
					Str("source_id", doc.SourceID).
					Str("domain", string(tag)).
					Msg("failed to promote paper")
				continue
			}
			total++
		}
	}

	if total > 0 {
		p.logger.Info().
			Int("promoted", total).
			Str("day", day).
			Msg("promoted older papers into the daily feed")
	}

	return total, nil
}

// promoteOne promotes a single document: clone insert first, promotion
// history append on conflict.
func (p *Promoter) promoteOne(ctx context.Context, doc *domain.PaperDocument, day string, now time.Time) error {
	clone := doc.PromotedClone(day, now)

	err := p.papers.InsertPromotedCopy(ctx, &clone)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrAlreadyExists) {
		return err
	}

	return p.papers.AddPromotedDate(ctx, doc.ID, day)
}
