package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/researchfeed/paper-feed-service/internal/domain"
	"github.com/researchfeed/paper-feed-service/internal/observability"
	"github.com/researchfeed/paper-feed-service/internal/papersource/core"
)

// testMetrics is shared across the package's tests: promauto registers on
// the default registry, so metrics must only be constructed once per binary.
var testMetrics = observability.NewMetrics("pipeline_test")

var testLogger = zerolog.Nop()

// promotionCall records one AddPromotedDate invocation.
type promotionCall struct {
	id  uuid.UUID
	day string
}

// fakePaperStore implements repository.PaperStore with per-method hooks.
// Nil hooks succeed with zero values; every call is recorded.
type fakePaperStore struct {
	mu sync.Mutex

	upsertFn  func(doc *domain.PaperDocument) (domain.UpsertResult, error)
	selectFn  func(tag domain.DomainTag, day string, limit int) ([]*domain.PaperDocument, error)
	insertFn  func(doc *domain.PaperDocument) error
	addDateFn func(id uuid.UUID, day string) error
	deleteFn  func(cutoff time.Time) (int64, error)

	upserts       []*domain.PaperDocument
	inserted      []*domain.PaperDocument
	promotions    []promotionCall
	deleteCutoffs []time.Time
}

func (f *fakePaperStore) Upsert(_ context.Context, doc *domain.PaperDocument) (domain.UpsertResult, error) {
	f.mu.Lock()
	f.upserts = append(f.upserts, doc)
	f.mu.Unlock()
	if f.upsertFn != nil {
		return f.upsertFn(doc)
	}
	return domain.UpsertCreated, nil
}

func (f *fakePaperStore) GetBySourceID(_ context.Context, sourceID string) (*domain.PaperDocument, error) {
	return nil, domain.NewNotFoundError("paper", sourceID)
}

func (f *fakePaperStore) QueryByDay(context.Context, string, domain.DomainTag, int) ([]*domain.PaperDocument, error) {
	return nil, nil
}

func (f *fakePaperStore) CountByDay(context.Context, string) (int64, error) {
	return 0, nil
}

func (f *fakePaperStore) CountAll(context.Context) (int64, error) {
	return 0, nil
}

func (f *fakePaperStore) SelectPromotable(_ context.Context, tag domain.DomainTag, day string, limit int) ([]*domain.PaperDocument, error) {
	if f.selectFn != nil {
		return f.selectFn(tag, day, limit)
	}
	return nil, nil
}

func (f *fakePaperStore) InsertPromotedCopy(_ context.Context, doc *domain.PaperDocument) error {
	f.mu.Lock()
	f.inserted = append(f.inserted, doc)
	f.mu.Unlock()
	if f.insertFn != nil {
		return f.insertFn(doc)
	}
	return nil
}

func (f *fakePaperStore) AddPromotedDate(_ context.Context, id uuid.UUID, day string) error {
	f.mu.Lock()
	f.promotions = append(f.promotions, promotionCall{id: id, day: day})
	f.mu.Unlock()
	if f.addDateFn != nil {
		return f.addDateFn(id, day)
	}
	return nil
}

func (f *fakePaperStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	f.deleteCutoffs = append(f.deleteCutoffs, cutoff)
	f.mu.Unlock()
	if f.deleteFn != nil {
		return f.deleteFn(cutoff)
	}
	return 0, nil
}

// fakeStatsStore implements repository.StatsStore.
type fakeStatsStore struct {
	recordErr error
	recorded  []*domain.UpdateStats
}

func (f *fakeStatsStore) Record(_ context.Context, stats *domain.UpdateStats) error {
	f.recorded = append(f.recorded, stats)
	return f.recordErr
}

func (f *fakeStatsStore) Latest(context.Context) (*domain.UpdateStats, error) {
	if len(f.recorded) == 0 {
		return nil, domain.ErrNotFound
	}
	return f.recorded[len(f.recorded)-1], nil
}

// fakeSource implements SourceClient, serving one response per page offset.
type fakeSource struct {
	pages   map[int]*core.SearchResponse
	pageErr map[int]error
	calls   []int
}

func (f *fakeSource) SearchWorks(_ context.Context, _ string, limit, offset int) (*core.SearchResponse, error) {
	f.calls = append(f.calls, offset)
	if err, ok := f.pageErr[offset]; ok {
		return nil, err
	}
	if resp, ok := f.pages[offset]; ok {
		return resp, nil
	}
	return &core.SearchResponse{Limit: limit, Offset: offset}, nil
}

// storableWork returns a record that passes every filter check and
// classifies into artificial_intelligence.
func storableWork(id int64) core.Work {
	return core.Work{
		ID:    id,
		Title: "Deep Learning at Scale",
		Abstract: "We describe a machine learning system that trains deep learning models " +
			"across thousands of machines with near-linear scaling.",
		PublishedDate: "2026-08-20",
		PageCount:     intPtr(30),
	}
}

// promotableDoc returns a stored original eligible for promotion.
func promotableDoc(sourceID string, tag domain.DomainTag) *domain.PaperDocument {
	return &domain.PaperDocument{
		ID:          uuid.New(),
		SourceID:    sourceID,
		Title:       "Older Paper",
		Abstract:    "An earlier stored paper.",
		Domains:     []domain.DomainTag{tag},
		FetchedDate: "2026-08-01",
		FetchedAt:   time.Date(2026, 8, 1, 18, 30, 0, 0, time.UTC),
	}
}
