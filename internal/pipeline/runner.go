package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/researchfeed/paper-feed-service/internal/domain"
	"github.com/researchfeed/paper-feed-service/internal/observability"
	"github.com/researchfeed/paper-feed-service/internal/papersource/core"
	"github.com/researchfeed/paper-feed-service/internal/repository"
)

// SourceClient abstracts the upstream works search client.
type SourceClient interface {
	SearchWorks(ctx context.Context, query string, limit, offset int) (*core.SearchResponse, error)
}

// RunnerConfig holds fetch cycle settings.
type RunnerConfig struct {
	// LookbackDays bounds the publication window of the search query.
	LookbackDays int

	// MinPageCount rejects records whose known page count is below it.
	MinPageCount int

	// MaxPages is the maximum number of result pages fetched per run.
	MaxPages int

	// PageSize is the number of records requested per page.
	PageSize int

	// RunCap stops a run early once this many new records have been stored.
	RunCap int

	// PromotionLimit is the maximum documents promoted per domain.
	PromotionLimit int

	// RetentionEnabled enables the retention sweep after each run.
	RetentionEnabled bool

	// RetentionMaxAge is the age past which documents are deleted when the
	// retention sweep is enabled.
	RetentionMaxAge time.Duration
}

// RunResult summarizes one fetch cycle.
type RunResult struct {
	// Stored counts new or changed documents written to the store.
	Stored int
	// Unchanged counts records whose stored content was already current.
	Unchanged int
	// Skipped counts records rejected by the filter.
	Skipped int
	// Failed counts per-record store failures.
	Failed int
	// PagesFailed counts result pages that could not be fetched.
	PagesFailed int
	// Promoted counts documents re-surfaced because the run stored nothing.
	Promoted int
	// Expired counts documents removed by the retention sweep.
	Expired int64
}

// Runner orchestrates one fetch cycle: page through the source, filter and
// classify each record, upsert survivors, record run stats, promote older
// papers when nothing new arrived, and optionally sweep expired documents.
//
// Failures below the run level never abort the cycle: failed pages and failed
// records are logged, counted and skipped, and the next run retries them
// naturally. Only context cancellation stops a run midway.
type Runner struct {
	cfg      RunnerConfig
	source   SourceClient
	filter   *Filter
	promoter *Promoter
	papers   repository.PaperStore
	stats    repository.StatsStore
	metrics  *observability.Metrics
	logger   zerolog.Logger
	nowFn    func() time.Time
}

// NewRunner creates a fetch cycle runner.
func NewRunner(
	cfg RunnerConfig,
	source SourceClient,
	papers repository.PaperStore,
	stats repository.StatsStore,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Runner {
	return &Runner{
		cfg:      cfg,
		source:   source,
		filter:   NewFilter(cfg.MinPageCount),
		promoter: NewPromoter(papers, cfg.PromotionLimit, logger),
		papers:   papers,
		stats:    stats,
		metrics:  metrics,
		logger:   logger.With().Str("component", "pipeline").Logger(),
		nowFn:    time.Now,
	}
}

// Run executes one fetch cycle.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	start := r.nowFn()
	day := domain.DateKey(start)
	query := core.BuildRecentQuery(start, r.cfg.LookbackDays)

	r.metrics.RecordRunStarted()
	r.logger.Info().
		Str("day", day).
		Str("query", query).
		Msg("starting fetch cycle")

	result := &RunResult{}
	domainCounts := make(map[string]int)

	if err := r.fetchPages(ctx, query, day, start, result, domainCounts); err != nil {
		r.metrics.RecordRunFailed(time.Since(start).Seconds())
		return result, err
	}

	// One stats row per run, whatever happened above.
	statsRow := &domain.UpdateStats{
		RunAt:       r.nowFn(),
		TotalPapers: result.Stored,
		DomainStats: domainCounts,
	}
	if err := r.stats.Record(ctx, statsRow); err != nil {
		r.logger.Error().Err(err).Msg("failed to record update stats")
	}

	// A day with zero new papers falls back to re-surfacing older ones.
	if result.Stored == 0 {
		promoted, err := r.promoter.Promote(ctx, day, r.nowFn())
		result.Promoted = promoted
		r.metrics.RecordPromoted(promoted)
		if err != nil {
			r.metrics.RecordRunFailed(time.Since(start).Seconds())
			return result, fmt.Errorf("promotion: %w", err)
		}
	}

	if r.cfg.RetentionEnabled {
		cutoff := r.nowFn().Add(-r.cfg.RetentionMaxAge)
		deleted, err := r.papers.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			r.logger.Error().Err(err).Time("cutoff", cutoff).Msg("retention sweep failed")
		} else {
			result.Expired = deleted
			r.metrics.RecordExpired(int(deleted))
			if deleted > 0 {
				r.logger.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("retention sweep removed old papers")
			}
		}
	}

	r.metrics.RecordRunCompleted(time.Since(start).Seconds())
	r.logger.Info().
		Int("stored", result.Stored).
		Int("unchanged", result.Unchanged).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Int("pages_failed", result.PagesFailed).
		Int("promoted", result.Promoted).
		Msg("fetch cycle completed")

	return result, nil
}

// fetchPages walks the result pages sequentially, processing each record.
// A failed page is counted and skipped; the walk stops early when the
// new-record cap is reached or a short page signals the end of results.
func (r *Runner) fetchPages(ctx context.Context, query, day string, fetchedAt time.Time, result *RunResult, domainCounts map[string]int) error {
	for page := 0; page < r.cfg.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		offset := page * r.cfg.PageSize
		pageStart := time.Now()
		resp, err := r.source.SearchWorks(ctx, query, r.cfg.PageSize, offset)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			result.PagesFailed++
			r.metrics.RecordPageFetchFailed()
			r.logger.Warn().
				Err(err).
				Int("page", page).
				Int("offset", offset).
				Msg("page fetch failed, skipping")
			continue
		}
		r.metrics.RecordPageFetched(time.Since(pageStart).Seconds())

		capReached := r.processPage(ctx, resp.Results, day, fetchedAt, result, domainCounts)
		if capReached {
			r.logger.Info().Int("cap", r.cfg.RunCap).Msg("run cap reached, stopping early")
			return nil
		}

		if len(resp.Results) < r.cfg.PageSize {
			// Short page: no further results upstream.
			return nil
		}
	}
	return nil
}

// processPage filters, classifies and upserts one page of records. It
// returns true when the run cap was reached.
func (r *Runner) processPage(ctx context.Context, works []core.Work, day string, fetchedAt time.Time, result *RunResult, domainCounts map[string]int) bool {
	for i := range works {
		w := &works[i]

		doc, reason, ok := r.filter.Evaluate(w, day, fetchedAt)
		if !ok {
			result.Skipped++
			r.metrics.RecordSkipped(string(reason))
			continue
		}

		upsert, err := r.papers.Upsert(ctx, doc)
		if err != nil {
			result.Failed++
			r.metrics.RecordFailure()
			r.logger.Warn().
				Err(err).
				Str("source_id", doc.SourceID).
				Msg("failed to store paper, skipping")
			continue
		}

		if !upsert.Stored() {
			result.Unchanged++
			r.metrics.RecordUnchanged()
			continue
		}

		result.Stored++
		domains := make([]string, 0, len(doc.Domains))
		for _, d := range doc.Domains {
			domainCounts[string(d)]++
			domains = append(domains, string(d))
		}
		r.metrics.RecordStored(domains)

		logger := observability.WithPaperContext(r.logger, doc.SourceID, doc.Title)
		logger.Info().
			Str("result", upsert.String()).
			Int("page_count", doc.PageCount).
			Msg("stored paper")

		if result.Stored >= r.cfg.RunCap {
			return true
		}
	}
	return false
}
