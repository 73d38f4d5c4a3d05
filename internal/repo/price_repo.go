// Package repo – price cache repository.
//
// The repository follows a "thin" approach: it performs persistence and
// freshness policy checks, leaving orchestration to the services package.
//
// Error semantics:
//   - ReadFresh returns ErrCacheMiss whenever the cached rows fail the
//     freshness policy. Raw storage errors are propagated; the caller is
//     expected to treat any error as a miss and fall through to a live
//     fetch (fail open).
//   - Upsert relies on the (game_id, store) unique constraint: a write for
//     an existing key pair overwrites in place, never appends.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gamecompare/price-backend/internal/domain"
)

// ErrCacheMiss signals that no usable cached rows exist for a game and the
// caller must run a live aggregation.
var ErrCacheMiss = errors.New("price cache miss")

// ReadFresh returns all cached rows for gameID only when the full set
// satisfies the freshness policy:
//
//   - at least minRows rows exist,
//   - every row's last_updated is within maxAge of now,
//   - at least minAvailable rows carry a positive price.
//
// Any violation is ErrCacheMiss, not a partial return: one stale row forces
// a complete live re-fetch rather than a merge of stale and live data.
func ReadFresh(ctx context.Context, db *gorm.DB, gameID string, maxAge time.Duration, minAvailable, minRows int) ([]domain.PriceRecord, error) {
	var rows []domain.PriceRecord
	err := db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("store ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	if len(rows) < minRows {
		return nil, ErrCacheMiss
	}

	cutoff := time.Now().UTC().Add(-maxAge)
	available := 0
	for _, r := range rows {
		if r.LastUpdated.Before(cutoff) {
			return nil, ErrCacheMiss
		}
		if r.CurrentAmount > 0 {
			available++
		}
	}
	if available < minAvailable {
		return nil, ErrCacheMiss
	}
	return rows, nil
}

// Upsert writes a cache row for (game_id, store), overwriting any existing
// row and refreshing last_updated. Idempotent: writing the same observation
// twice leaves a single row with the latest timestamp.
func Upsert(ctx context.Context, db *gorm.DB, rec *domain.PriceRecord) error {
	rec.LastUpdated = time.Now().UTC()
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "game_id"}, {Name: "store"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"current_amount", "original_amount", "discount_percent",
				"purchase_url", "trust", "last_updated",
			}),
		}).
		Create(rec).Error
}
