package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchfeed/paper-feed-service/internal/domain"
)

// Helper to create a valid document for testing.
func newTestDocument() *domain.PaperDocument {
	return &domain.PaperDocument{
		ID:       uuid.New(),
		SourceID: "core:118273452",
		Title:    "Transformer Architectures for Low-Resource Translation",
		Abstract: "We study transformer-based machine translation under low-resource conditions.",
		Authors: []domain.Author{
			{Name: "A. Researcher"},
			{Name: "B. Collaborator"},
		},
		PublishedDate: "2026-02-11",
		DownloadURL:   "https://core.ac.uk/download/118273452.pdf",
		FulltextURLs:  []string{"https://repository.example.edu/118273452.pdf"},
		DOI:           "10.1000/example.118273452",
		PageCount:     24,
		Keywords:      []string{"machine translation", "transformer"},
		Domains:       []domain.DomainTag{domain.DomainNaturalLanguageProcessing},
		FetchedDate:   "2026-03-14",
		FetchedAt:     time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC),
		PromotedDates: []string{},
	}
}

// paperRows builds a pgxmock row set in the canonical column order.
func paperRows(docs ...*domain.PaperDocument) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{
		"id", "source_id", "title", "abstract", "authors",
		"published_date", "download_url", "fulltext_urls", "doi", "page_count",
		"keywords", "domains", "fetched_date", "fetched_at", "promoted_dates", "promoted_from",
	})
	for _, doc := range docs {
		authorsJSON, _ := json.Marshal(doc.Authors)
		fulltextJSON, _ := json.Marshal(doc.FulltextURLs)
		keywordsJSON, _ := json.Marshal(doc.Keywords)
		rows.AddRow(
			doc.ID, doc.SourceID, doc.Title, doc.Abstract, authorsJSON,
			doc.PublishedDate, doc.DownloadURL, fulltextJSON, doc.DOI, pageCountArg(doc.PageCount),
			keywordsJSON, domainsToStrings(doc.Domains), doc.FetchedDate, doc.FetchedAt,
			doc.PromotedDates, doc.PromotedFrom,
		)
	}
	return rows
}

func TestNewPgPaperStore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPgPaperStore(mock)
	assert.NotNil(t, store)
	assert.NotNil(t, store.db)
}

func TestPgPaperStore_Upsert(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a new document", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := NewPgPaperStore(mock)
		doc := newTestDocument()

		mock.ExpectQuery("INSERT INTO papers").
			WithArgs(
				pgxmock.AnyArg(), doc.SourceID, doc.Title, doc.Abstract, pgxmock.AnyArg(),
				doc.PublishedDate, doc.DownloadURL, pgxmock.AnyArg(), doc.DOI, pgxmock.AnyArg(),
				pgxmock.AnyArg(), domainsToStrings(doc.Domains), doc.FetchedDate, doc.FetchedAt,
			).
			WillReturnRows(pgxmock.NewRows([]string{"id", "inserted"}).
				AddRow(doc.ID, true))

		result, err := store.Upsert(ctx, doc)
		require.NoError(t, err)
		assert.Equal(t, domain.UpsertCreated, result)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("updates an existing document with changed content", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := NewPgPaperStore(mock)
		doc := newTestDocument()
		existingID := uuid.New()

		mock.ExpectQuery("INSERT INTO papers").
			WithArgs(
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			).
			WillReturnRows(pgxmock.NewRows([]string{"id", "inserted"}).
				AddRow(existingID, false))

		result, err := store.Upsert(ctx, doc)
		require.NoError(t, err)
		assert.Equal(t, domain.UpsertUpdated, result)
		assert.Equal(t, existingID, doc.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports unchanged when identical content yields no row", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := NewPgPaperStore(mock)
		doc := newTestDocument()

		mock.ExpectQuery("INSERT INTO papers").
			WithArgs(
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			).
			WillReturnError(pgx.ErrNoRows)

		result, err := store.Upsert(ctx, doc)
		require.NoError(t, err)
		assert.Equal(t, domain.UpsertUnchanged, result)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects nil document", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := NewPgPaperStore(mock)
		_, err = store.Upsert(ctx, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("rejects missing source id", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := NewPgPaperStore(mock)
		doc := newTestDocument()
		doc.SourceID = ""

		_, err = store.Upsert(ctx, doc)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("propagates database errors", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := NewPgPaperStore(mock)
		doc := newTestDocument()

		mock.ExpectQuery("INSERT INTO papers").
			WillReturnError(errors.New("connection reset"))

		_, err = store.Upsert(ctx, doc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to upsert paper")
	})
}

func TestPgPaperStore_GetBySourceID(t *testing.T) {
	ctx := context.Background()

	t.Run("returns document when found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := NewPgPaperStore(mock)
		doc := newTestDocument()

		mock.ExpectQuery("SELECT (.+) FROM papers").
			WithArgs(doc.SourceID).
			WillReturnRows(paperRows(doc))

		result, err := store.GetBySourceID(ctx, doc.SourceID)
		require.NoError(t, err)
		assert.Equal(t, doc.SourceID, result.SourceID)
		assert.Equal(t, doc.Title, result.Title)
		assert.Equal(t, doc.Authors, result.Authors)
		assert.Equal(t, 24, result.PageCount)
		assert.Equal(t, doc.Domains, result.Domains)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := NewPgPaperStore(mock)

		mock.ExpectQuery("SELECT (.+) FROM papers").
			WithArgs("core:missing").
			WillReturnError(pgx.ErrNoRows)

		result, err := store.GetBySourceID(ctx, "core:missing")
		assert.Nil(t, result)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("rejects empty source id", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := NewPgPaperStore(mock)
		_, err = store.GetBySourceID(ctx, "")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestPgPaperStore_QueryByDay(t *testing.T) {
	ctx := context.Background()

	t.Run("returns all domains for the day", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := NewPgPaperStore(mock)
		doc := newTestDocument()

		mock.ExpectQuery("SELECT (.+) FROM papers").
			WithArgs("2026-03-14", 100).
			WillReturnRows(paperRows(doc))

		result, err := store.QueryByDay(ctx, "2026-03-14", "", 100)
		require.NoError(t, err)
		require.Len(t, result, 1)
		assert.Equal(t, doc.SourceID, result[0].SourceID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("filters by domain", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := NewPgPaperStore(mock)
		doc := newTestDocument()

		mock.ExpectQuery("SELECT (.+) FROM papers").
			WithArgs("2026-03-14", "natural_language_processing", 10).
			WillReturnRows(paperRows(doc))

		result, err := store.QueryByDay(ctx, "2026-03-14", domain.DomainNaturalLanguageProcessing, 10)
		require.NoError(t, err)
		require.Len(t, result, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty feed", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := NewPgPaperStore(mock)

		mock.ExpectQuery("SELECT (.+) FROM papers").
			WithArgs("2026-03-14", 100).
			WillReturnRows(paperRows())

		result, err := store.QueryByDay(ctx, "2026-03-14", "", 0)
		require.NoError(t, err)
		assert.Empty(t, result)
	})

	t.Run("rejects empty day", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := NewPgPaperStore(mock)
		_, err = store.QueryByDay(ctx, "", "", 100)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestPgPaperStore_Counts(t *testing.T) {
	ctx := context.Background()

	t.Run("count by day", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := NewPgPaperStore(mock)

		mock.ExpectQuery("SELECT COUNT").
			WithArgs("2026-03-14").
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(42)))

		count, err := store.CountByDay(ctx, "2026-03-14")
		require.NoError(t, err)
		assert.Equal(t, int64(42), count)
	})

	t.Run("count all", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := NewPgPaperStore(mock)

		mock.ExpectQuery("SELECT COUNT").
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1234)))

		count, err := store.CountAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1234), count)
	})
}

func TestPgPaperStore_SelectPromotable(t *testing.T) {
	ctx := context.Background()

	t.Run("returns candidates oldest first", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := NewPgPaperStore(mock)
		older := newTestDocument()
		older.SourceID = "core:1"
		older.FetchedAt = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		newer := newTestDocument()
		newer.SourceID = "core:2"
		newer.FetchedAt = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

		mock.ExpectQuery("SELECT (.+) FROM papers").
			WithArgs("natural_language_processing", "2026-03-14", 10).
			WillReturnRows(paperRows(older, newer))

		result, err := store.SelectPromotable(ctx, domain.DomainNaturalLanguageProcessing, "2026-03-14", 10)
		require.NoError(t, err)
		require.Len(t, result, 2)
		assert.Equal(t, "core:1", result[0].SourceID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects empty domain", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := NewPgPaperStore(mock)
		_, err = store.SelectPromotable(ctx, "", "2026-03-14", 10)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestPgPaperStore_InsertPromotedCopy(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts clone", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := NewPgPaperStore(mock)
		doc := newTestDocument()
		clone := doc.PromotedClone("2026-03-14", time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC))

		mock.ExpectExec("INSERT INTO papers").
			WithArgs(
				pgxmock.AnyArg(), clone.SourceID, clone.Title, clone.Abstract, pgxmock.AnyArg(),
				clone.PublishedDate, clone.DownloadURL, pgxmock.AnyArg(), clone.DOI, pgxmock.AnyArg(),
				pgxmock.AnyArg(), domainsToStrings(clone.Domains), clone.FetchedDate, clone.FetchedAt,
				clone.PromotedFrom,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err = store.InsertPromotedCopy(ctx, &clone)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps unique violation to already exists", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := NewPgPaperStore(mock)
		doc := newTestDocument()
		clone := doc.PromotedClone("2026-03-14", time.Now().UTC())

		mock.ExpectExec("INSERT INTO papers").
			WithArgs(
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		err = store.InsertPromotedCopy(ctx, &clone)
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})
}

func TestPgPaperStore_AddPromotedDate(t *testing.T) {
	ctx := context.Background()

	t.Run("appends day", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := NewPgPaperStore(mock)
		id := uuid.New()

		mock.ExpectExec("UPDATE papers").
			WithArgs(id, "2026-03-14").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, store.AddPromotedDate(ctx, id, "2026-03-14"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already promoted is a no-op", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := NewPgPaperStore(mock)
		id := uuid.New()

		mock.ExpectExec("UPDATE papers").
			WithArgs(id, "2026-03-14").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		require.NoError(t, store.AddPromotedDate(ctx, id, "2026-03-14"))
	})

	t.Run("rejects empty day", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := NewPgPaperStore(mock)
		err = store.AddPromotedDate(ctx, uuid.New(), "")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestPgPaperStore_DeleteOlderThan(t *testing.T) {
	ctx := context.Background()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPgPaperStore(mock)
	cutoff := time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("DELETE FROM papers").
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	deleted, err := store.DeleteOlderThan(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(7), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
