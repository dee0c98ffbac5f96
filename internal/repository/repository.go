// Package repository provides data access interfaces and implementations
// for the paper feed service.
//
// # Overview
//
// This package defines store interfaces and their PostgreSQL implementations
// following the repository pattern to abstract data persistence from the
// fetch pipeline and the read API.
//
// # Store Interfaces
//
//   - PaperStore: Manages paper documents, the daily feed and promotion state
//   - StatsStore: Records per-run update statistics
//
// # Thread Safety
//
// All store implementations are safe for concurrent use by multiple goroutines.
// The underlying pgxpool handles connection pooling and synchronization.
//
// # Error Handling
//
// All methods return domain-specific errors from the domain package.
// Wrap database errors with context using fmt.Errorf with %w verb.
// Common errors include:
//
//   - domain.ErrNotFound: Resource does not exist
//   - domain.ErrAlreadyExists: Unique constraint violation
//   - domain.ErrInvalidInput: Invalid parameters provided
//
// # Transactions
//
// Use the DBTX interface to support both pool and transaction contexts.
// Pass a transaction from database.DB.WithTransaction for atomic operations.
package repository

import (
	"github.com/researchfeed/paper-feed-service/internal/database"
)

// DBTX is the database interface supporting both pool and transaction contexts.
// This allows stores to work with both direct pool connections and transactions:
//
//	db, _ := database.New(ctx, cfg, logger)
//	paperStore := repository.NewPgPaperStore(db)
//
//	err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
//	    txStore := repository.NewPgPaperStore(tx)
//	    _, err := txStore.Upsert(ctx, paper)
//	    return err
//	})
type DBTX = database.DBTX

// Feed pagination defaults and limits.
const (
	defaultFeedLimit = 100
	maxFeedLimit     = 1000
)

// clampFeedLimit normalizes a feed query limit.
// It clamps limit to [1, maxFeedLimit].
func clampFeedLimit(limit int) int {
	if limit <= 0 {
		return defaultFeedLimit
	}
	if limit > maxFeedLimit {
		return maxFeedLimit
	}
	return limit
}
