package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/researchfeed/paper-feed-service/internal/domain"
)

// Compile-time interface verification.
var _ PaperStore = (*PgPaperStore)(nil)

// paperColumns is the canonical column list for paper queries.
const paperColumns = `id, source_id, title, abstract, authors,
	published_date, download_url, fulltext_urls, doi, page_count,
	keywords, domains, fetched_date, fetched_at, promoted_dates, promoted_from`

// PgPaperStore is a PostgreSQL implementation of PaperStore.
type PgPaperStore struct {
	db DBTX
}

// NewPgPaperStore creates a new PostgreSQL paper store.
func NewPgPaperStore(db DBTX) *PgPaperStore {
	return &PgPaperStore{db: db}
}

// Upsert inserts a new document or updates the existing one keyed on source_id.
// The DO UPDATE is guarded by an IS DISTINCT FROM comparison over the content
// columns, so an upsert carrying identical content touches nothing and returns
// no row; that maps to UpsertUnchanged. The returned (xmax = 0) flag
// distinguishes a fresh insert from an update of an existing row.
func (s *PgPaperStore) Upsert(ctx context.Context, paper *domain.PaperDocument) (domain.UpsertResult, error) {
	if paper == nil {
		return domain.UpsertUnchanged, fmt.Errorf("paper cannot be nil: %w", domain.ErrInvalidInput)
	}
	if paper.SourceID == "" {
		return domain.UpsertUnchanged, fmt.Errorf("source id is required: %w", domain.ErrInvalidInput)
	}

	authorsJSON, err := json.Marshal(paper.Authors)
	if err != nil {
		return domain.UpsertUnchanged, fmt.Errorf("failed to marshal authors: %w", err)
	}
	fulltextJSON, err := json.Marshal(paper.FulltextURLs)
	if err != nil {
		return domain.UpsertUnchanged, fmt.Errorf("failed to marshal fulltext urls: %w", err)
	}
	keywordsJSON, err := json.Marshal(paper.Keywords)
	if err != nil {
		return domain.UpsertUnchanged, fmt.Errorf("failed to marshal keywords: %w", err)
	}

	if paper.ID == uuid.Nil {
		paper.ID = uuid.New()
	}

	query := `
		INSERT INTO papers (
			id, source_id, title, abstract, authors,
			published_date, download_url, fulltext_urls, doi, page_count,
			keywords, domains, fetched_date, fetched_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
		ON CONFLICT (source_id) DO UPDATE SET
			title = EXCLUDED.title,
			abstract = EXCLUDED.abstract,
			authors = EXCLUDED.authors,
			published_date = EXCLUDED.published_date,
			download_url = EXCLUDED.download_url,
			fulltext_urls = EXCLUDED.fulltext_urls,
			doi = EXCLUDED.doi,
			page_count = EXCLUDED.page_count,
			keywords = EXCLUDED.keywords,
			domains = EXCLUDED.domains,
			fetched_date = EXCLUDED.fetched_date,
			fetched_at = EXCLUDED.fetched_at
		WHERE (papers.title, papers.abstract, papers.authors, papers.published_date,
			papers.download_url, papers.fulltext_urls, papers.doi, papers.page_count,
			papers.keywords, papers.domains)
			IS DISTINCT FROM
			(EXCLUDED.title, EXCLUDED.abstract, EXCLUDED.authors, EXCLUDED.published_date,
			EXCLUDED.download_url, EXCLUDED.fulltext_urls, EXCLUDED.doi, EXCLUDED.page_count,
			EXCLUDED.keywords, EXCLUDED.domains)
		RETURNING id, (xmax = 0) AS inserted`

	var (
		id       uuid.UUID
		inserted bool
	)
	err = s.db.QueryRow(ctx, query,
		paper.ID,
		paper.SourceID,
		paper.Title,
		paper.Abstract,
		authorsJSON,
		paper.PublishedDate,
		paper.DownloadURL,
		fulltextJSON,
		paper.DOI,
		pageCountArg(paper.PageCount),
		keywordsJSON,
		domainsToStrings(paper.Domains),
		paper.FetchedDate,
		paper.FetchedAt,
	).Scan(&id, &inserted)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Conflict with identical content: the guarded DO UPDATE wrote
			// nothing, so no row came back.
			return domain.UpsertUnchanged, nil
		}
		return domain.UpsertUnchanged, fmt.Errorf("failed to upsert paper: %w", err)
	}

	paper.ID = id
	if inserted {
		return domain.UpsertCreated, nil
	}
	return domain.UpsertUpdated, nil
}

// GetBySourceID retrieves a document by its external source id.
func (s *PgPaperStore) GetBySourceID(ctx context.Context, sourceID string) (*domain.PaperDocument, error) {
	if sourceID == "" {
		return nil, fmt.Errorf("source id is required: %w", domain.ErrInvalidInput)
	}

	query := `
		SELECT ` + paperColumns + `
		FROM papers
		WHERE source_id = $1`

	row := s.db.QueryRow(ctx, query, sourceID)
	paper, err := scanPaper(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", sourceID)
		}
		return nil, fmt.Errorf("failed to get paper by source id: %w", err)
	}

	return paper, nil
}

// QueryByDay returns the feed for a day key, optionally filtered to one domain.
func (s *PgPaperStore) QueryByDay(ctx context.Context, day string, domainTag domain.DomainTag, limit int) ([]*domain.PaperDocument, error) {
	if day == "" {
		return nil, fmt.Errorf("day is required: %w", domain.ErrInvalidInput)
	}
	limit = clampFeedLimit(limit)

	var (
		rows pgx.Rows
		err  error
	)
	if domainTag == "" {
		query := `
			SELECT ` + paperColumns + `
			FROM papers
			WHERE fetched_date = $1 OR $1 = ANY(promoted_dates)
			ORDER BY published_date DESC
			LIMIT $2`
		rows, err = s.db.Query(ctx, query, day, limit)
	} else {
		query := `
			SELECT ` + paperColumns + `
			FROM papers
			WHERE (fetched_date = $1 OR $1 = ANY(promoted_dates))
				AND $2 = ANY(domains)
			ORDER BY published_date DESC
			LIMIT $3`
		rows, err = s.db.Query(ctx, query, day, string(domainTag), limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query papers by day: %w", err)
	}
	defer rows.Close()

	return collectPapers(rows, limit)
}

// CountByDay counts the documents in the feed for a day key.
func (s *PgPaperStore) CountByDay(ctx context.Context, day string) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM papers
		WHERE fetched_date = $1 OR $1 = ANY(promoted_dates)`

	var count int64
	if err := s.db.QueryRow(ctx, query, day).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count papers by day: %w", err)
	}
	return count, nil
}

// CountAll counts all stored documents.
func (s *PgPaperStore) CountAll(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM papers`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count papers: %w", err)
	}
	return count, nil
}

// SelectPromotable returns promotion candidates for a domain on the given day.
// Promoted copies (promoted_from set) are never candidates themselves.
func (s *PgPaperStore) SelectPromotable(ctx context.Context, domainTag domain.DomainTag, day string, limit int) ([]*domain.PaperDocument, error) {
	if domainTag == "" {
		return nil, fmt.Errorf("domain is required: %w", domain.ErrInvalidInput)
	}
	limit = clampFeedLimit(limit)

	query := `
		SELECT ` + paperColumns + `
		FROM papers
		WHERE $1 = ANY(domains)
			AND fetched_date <> $2
			AND NOT ($2 = ANY(promoted_dates))
			AND promoted_from = ''
		ORDER BY fetched_at ASC
		LIMIT $3`

	rows, err := s.db.Query(ctx, query, string(domainTag), day, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select promotable papers: %w", err)
	}
	defer rows.Close()

	return collectPapers(rows, limit)
}

// InsertPromotedCopy inserts a promoted clone as a new row.
func (s *PgPaperStore) InsertPromotedCopy(ctx context.Context, paper *domain.PaperDocument) error {
	if paper == nil {
		return fmt.Errorf("paper cannot be nil: %w", domain.ErrInvalidInput)
	}
	if paper.SourceID == "" {
		return fmt.Errorf("source id is required: %w", domain.ErrInvalidInput)
	}

	authorsJSON, err := json.Marshal(paper.Authors)
	if err != nil {
		return fmt.Errorf("failed to marshal authors: %w", err)
	}
	fulltextJSON, err := json.Marshal(paper.FulltextURLs)
	if err != nil {
		return fmt.Errorf("failed to marshal fulltext urls: %w", err)
	}
	keywordsJSON, err := json.Marshal(paper.Keywords)
	if err != nil {
		return fmt.Errorf("failed to marshal keywords: %w", err)
	}

	if paper.ID == uuid.Nil {
		paper.ID = uuid.New()
	}

	query := `
		INSERT INTO papers (
			id, source_id, title, abstract, authors,
			published_date, download_url, fulltext_urls, doi, page_count,
			keywords, domains, fetched_date, fetched_at, promoted_from
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)`

	_, err = s.db.Exec(ctx, query,
		paper.ID,
		paper.SourceID,
		paper.Title,
		paper.Abstract,
		authorsJSON,
		paper.PublishedDate,
		paper.DownloadURL,
		fulltextJSON,
		paper.DOI,
		pageCountArg(paper.PageCount),
		keywordsJSON,
		domainsToStrings(paper.Domains),
		paper.FetchedDate,
		paper.FetchedAt,
		paper.PromotedFrom,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.NewAlreadyExistsError("paper", paper.SourceID)
		}
		return fmt.Errorf("failed to insert promoted copy: %w", err)
	}

	return nil
}

// AddPromotedDate appends a day key to a document's promotion history.
// Appending a day that is already present, or targeting a row that no longer
// exists, affects nothing and returns nil.
func (s *PgPaperStore) AddPromotedDate(ctx context.Context, id uuid.UUID, day string) error {
	if day == "" {
		return fmt.Errorf("day is required: %w", domain.ErrInvalidInput)
	}

	query := `
		UPDATE papers
		SET promoted_dates = array_append(promoted_dates, $2)
		WHERE id = $1 AND NOT ($2 = ANY(promoted_dates))`

	if _, err := s.db.Exec(ctx, query, id, day); err != nil {
		return fmt.Errorf("failed to add promoted date: %w", err)
	}
	return nil
}

// DeleteOlderThan removes documents fetched before the cutoff.
func (s *PgPaperStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(ctx, `DELETE FROM papers WHERE fetched_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old papers: %w", err)
	}
	return result.RowsAffected(), nil
}

// pageCountArg converts a domain page count to its stored form.
// Unknown counts (<= 0) are stored as NULL.
func pageCountArg(pageCount int) *int {
	if pageCount <= 0 {
		return nil
	}
	return &pageCount
}

// domainsToStrings converts domain tags to a TEXT[] friendly slice.
func domainsToStrings(domains []domain.DomainTag) []string {
	out := make([]string, len(domains))
	for i, d := range domains {
		out[i] = string(d)
	}
	return out
}

// stringsToDomains converts stored domain strings back to tags.
func stringsToDomains(values []string) []domain.DomainTag {
	out := make([]domain.DomainTag, len(values))
	for i, v := range values {
		out[i] = domain.DomainTag(v)
	}
	return out
}

// paperScanDest holds the destination pointers for scanning a paper row.
type paperScanDest struct {
	paper        domain.PaperDocument
	authorsJSON  []byte
	fulltextJSON []byte
	keywordsJSON []byte
	pageCount    *int
	domains      []string
}

// destinations returns the slice of pointers for Scan operations.
func (d *paperScanDest) destinations() []interface{} {
	return []interface{}{
		&d.paper.ID, &d.paper.SourceID, &d.paper.Title, &d.paper.Abstract, &d.authorsJSON,
		&d.paper.PublishedDate, &d.paper.DownloadURL, &d.fulltextJSON, &d.paper.DOI, &d.pageCount,
		&d.keywordsJSON, &d.domains, &d.paper.FetchedDate, &d.paper.FetchedAt,
		&d.paper.PromotedDates, &d.paper.PromotedFrom,
	}
}

// finalize performs post-scan processing: unmarshals JSON fields and maps
// nullable columns.
func (d *paperScanDest) finalize() (*domain.PaperDocument, error) {
	if len(d.authorsJSON) > 0 {
		if err := json.Unmarshal(d.authorsJSON, &d.paper.Authors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal authors: %w", err)
		}
	}
	if len(d.fulltextJSON) > 0 {
		if err := json.Unmarshal(d.fulltextJSON, &d.paper.FulltextURLs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal fulltext urls: %w", err)
		}
	}
	if len(d.keywordsJSON) > 0 {
		if err := json.Unmarshal(d.keywordsJSON, &d.paper.Keywords); err != nil {
			return nil, fmt.Errorf("failed to unmarshal keywords: %w", err)
		}
	}
	if d.pageCount != nil {
		d.paper.PageCount = *d.pageCount
	}
	d.paper.Domains = stringsToDomains(d.domains)

	return &d.paper, nil
}

// scanPaper scans a single row into a PaperDocument.
func scanPaper(row pgx.Row) (*domain.PaperDocument, error) {
	var dest paperScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// collectPapers drains rows into documents.
func collectPapers(rows pgx.Rows, capacity int) ([]*domain.PaperDocument, error) {
	papers := make([]*domain.PaperDocument, 0, capacity)
	for rows.Next() {
		var dest paperScanDest
		if err := rows.Scan(dest.destinations()...); err != nil {
			return nil, fmt.Errorf("failed to scan paper: %w", err)
		}
		paper, err := dest.finalize()
		if err != nil {
			return nil, err
		}
		papers = append(papers, paper)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating papers: %w", err)
	}

	return papers, nil
}
