package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/researchfeed/paper-feed-service/internal/domain"
)

// Compile-time interface verification.
var _ StatsStore = (*PgStatsStore)(nil)

// PgStatsStore is a PostgreSQL implementation of StatsStore.
type PgStatsStore struct {
	db DBTX
}

// NewPgStatsStore creates a new PostgreSQL stats store.
func NewPgStatsStore(db DBTX) *PgStatsStore {
	return &PgStatsStore{db: db}
}

// Record appends the stats row for one fetch cycle.
func (s *PgStatsStore) Record(ctx context.Context, stats *domain.UpdateStats) error {
	if stats == nil {
		return fmt.Errorf("stats cannot be nil: %w", domain.ErrInvalidInput)
	}

	domainJSON, err := json.Marshal(stats.DomainStats)
	if err != nil {
		return fmt.Errorf("failed to marshal domain stats: %w", err)
	}

	if stats.ID == uuid.Nil {
		stats.ID = uuid.New()
	}

	query := `
		INSERT INTO update_stats (id, run_at, total_papers, domain_stats)
		VALUES ($1, $2, $3, $4)`

	if _, err := s.db.Exec(ctx, query, stats.ID, stats.RunAt, stats.TotalPapers, domainJSON); err != nil {
		return fmt.Errorf("failed to record update stats: %w", err)
	}
	return nil
}

// Latest returns the most recent stats row.
func (s *PgStatsStore) Latest(ctx context.Context) (*domain.UpdateStats, error) {
	query := `
		SELECT id, run_at, total_papers, domain_stats
		FROM update_stats
		ORDER BY run_at DESC
		LIMIT 1`

	var (
		stats      domain.UpdateStats
		domainJSON []byte
	)
	err := s.db.QueryRow(ctx, query).Scan(&stats.ID, &stats.RunAt, &stats.TotalPapers, &domainJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("update stats", "latest")
		}
		return nil, fmt.Errorf("failed to get latest update stats: %w", err)
	}

	if len(domainJSON) > 0 {
		if err := json.Unmarshal(domainJSON, &stats.DomainStats); err != nil {
			return nil, fmt.Errorf("failed to unmarshal domain stats: %w", err)
		}
	}

	return &stats, nil
}
