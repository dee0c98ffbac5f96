package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/researchfeed/paper-feed-service/internal/domain"
)

// PaperStore handles paper document persistence, the daily feed and
// promotion state. Documents are keyed on the external source id, which
// carries a unique constraint; concurrent upserts of the same record are
// resolved by the store, not by callers.
type PaperStore interface {
	// Upsert inserts a new document or updates the existing one with the
	// same source id. The operation is atomic at the store. The returned
	// result distinguishes three outcomes:
	//
	//   - UpsertCreated: no row with this source id existed
	//   - UpsertUpdated: a row existed and its content changed
	//   - UpsertUnchanged: a row existed with identical content; nothing
	//     was written and the row's fetched fields keep their old values
	//
	// Returns domain.ErrInvalidInput if the document has no source id.
	Upsert(ctx context.Context, paper *domain.PaperDocument) (domain.UpsertResult, error)

	// GetBySourceID retrieves a document by its external source id.
	// Returns domain.ErrNotFound if no matching document exists.
	GetBySourceID(ctx context.Context, sourceID string) (*domain.PaperDocument, error)

	// QueryByDay returns the feed for a day key: documents whose
	// fetched_date equals the day or that were promoted on it. An empty
	// domainTag returns all domains. Results are ordered by published_date
	// descending and capped at limit.
	QueryByDay(ctx context.Context, day string, domainTag domain.DomainTag, limit int) ([]*domain.PaperDocument, error)

	// CountByDay counts the documents in the feed for a day key.
	CountByDay(ctx context.Context, day string) (int64, error)

	// CountAll counts all stored documents.
	CountAll(ctx context.Context) (int64, error)

	// SelectPromotable returns up to limit promotion candidates for a
	// domain on the given day: originals not fetched on that day and not
	// already promoted on it, oldest fetched_at first.
	SelectPromotable(ctx context.Context, domainTag domain.DomainTag, day string, limit int) ([]*domain.PaperDocument, error)

	// InsertPromotedCopy inserts a promoted clone as a new row.
	// Returns domain.ErrAlreadyExists if a row with the clone's source id
	// already exists.
	InsertPromotedCopy(ctx context.Context, paper *domain.PaperDocument) error

	// AddPromotedDate appends a day key to a document's promotion history.
	// Appending a day that is already present is a no-op.
	AddPromotedDate(ctx context.Context, id uuid.UUID, day string) error

	// DeleteOlderThan removes documents fetched before the cutoff and
	// returns how many were deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// StatsStore records per-run update statistics. Rows are append-only.
type StatsStore interface {
	// Record appends the stats row for one fetch cycle.
	Record(ctx context.Context, stats *domain.UpdateStats) error

	// Latest returns the most recent stats row.
	// Returns domain.ErrNotFound if no runs have been recorded.
	Latest(ctx context.Context) (*domain.UpdateStats, error)
}
