// Package domain defines the core data model of the price aggregation
// backend: raw per-store price observations, the reconciled per-game view
// returned to callers, and the persisted cache row. The cache row is mapped
// with GORM; observations and aggregated sets are in-memory only.
package domain

import "time"

// TrustTier ranks how directly a price observation was obtained from a
// storefront's own systems. Higher values win same-store conflicts during
// reconciliation.
type TrustTier int8

const (
	// TrustEstimated marks a manufactured price (a heuristic discount off
	// another store's price). Never persisted, never counted as available
	// data by cache freshness checks.
	TrustEstimated TrustTier = iota
	// TrustScraped marks a price extracted from a storefront's public HTML.
	TrustScraped
	// TrustAggregator marks a price relayed by a third-party deal index.
	TrustAggregator
	// TrustDirectAPI marks a price from a secondary storefront's own catalog
	// or search API, keyed by free-text title.
	TrustDirectAPI
	// TrustAuthoritative marks a price from the canonical storefront's own
	// product endpoint, keyed by the canonical identifier.
	TrustAuthoritative
)

// String returns the tier name used in logs and cache rows.
func (t TrustTier) String() string {
	switch t {
	case TrustAuthoritative:
		return "authoritative"
	case TrustDirectAPI:
		return "direct_api"
	case TrustAggregator:
		return "aggregator"
	case TrustScraped:
		return "scraped"
	case TrustEstimated:
		return "estimated"
	default:
		return "unknown"
	}
}

// ParseTrustTier maps a persisted tier name back to its ordinal. Unknown
// names map to TrustEstimated so stale rows can never outrank live data.
func ParseTrustTier(s string) TrustTier {
	switch s {
	case "authoritative":
		return TrustAuthoritative
	case "direct_api":
		return TrustDirectAPI
	case "aggregator":
		return TrustAggregator
	case "scraped":
		return TrustScraped
	default:
		return TrustEstimated
	}
}

// PriceObservation is one storefront's price data point, already normalized
// to the display currency. Adapters construct observations; the reconciler
// consumes them. Observations are never mutated after construction.
//
// CurrentAmount and OriginalAmount are nil when unknown. A free game is a
// valid observation with Available=true and *CurrentAmount==0; nil and zero
// must stay distinguishable.
type PriceObservation struct {
	Store           string    `json:"store"`
	CurrentAmount   *float64  `json:"current_amount,omitempty"`
	OriginalAmount  *float64  `json:"original_amount,omitempty"`
	DiscountPercent int       `json:"discount_percent"`
	PurchaseURL     string    `json:"purchase_url"`
	Trust           TrustTier `json:"trust"`
	Available       bool      `json:"available"`
}

// Cacheable reports whether the observation may be persisted. Placeholders,
// unavailable results, zero prices, and estimated data are excluded so a
// miss stays retryable instead of being masked by a cached "no price".
func (o PriceObservation) Cacheable() bool {
	return o.Available &&
		o.CurrentAmount != nil && *o.CurrentAmount > 0 &&
		o.Trust != TrustEstimated
}

// AggregatedPriceSet is the reconciled per-game view: exactly one entry per
// configured store, in configured-store order, with synthesized placeholders
// for stores that produced no data.
type AggregatedPriceSet struct {
	GameID      string             `json:"game_id"`
	Entries     []PriceObservation `json:"entries"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// PriceRecord is the persisted cache row, one per (game_id, store). Rows are
// only ever written for available observations with a positive price, so the
// amounts are stored as plain columns. A write for an existing key pair
// overwrites in place.
type PriceRecord struct {
	ID              uint      `json:"-"                gorm:"primaryKey;autoIncrement"`
	GameID          string    `json:"game_id"          gorm:"type:varchar(64);not null;uniqueIndex:ux_price_game_store,priority:1;index:idx_game_updated,priority:1"`
	Store           string    `json:"store"            gorm:"type:varchar(32);not null;uniqueIndex:ux_price_game_store,priority:2"`
	CurrentAmount   float64   `json:"current_amount"   gorm:"not null"`
	OriginalAmount  float64   `json:"original_amount"  gorm:"not null"`
	DiscountPercent int       `json:"discount_percent" gorm:"not null;default:0"`
	PurchaseURL     string    `json:"purchase_url"     gorm:"type:text"`
	Trust           string    `json:"trust"            gorm:"type:varchar(16);not null"`
	LastUpdated     time.Time `json:"last_updated"     gorm:"not null;index:idx_game_updated,priority:2"`
}

// TableName returns the database table name for PriceRecord.
func (PriceRecord) TableName() string { return "price_cache" }

// Observation converts a cache row back to the in-memory shape. Persisted
// rows are available by construction.
func (r PriceRecord) Observation() PriceObservation {
	cur, orig := r.CurrentAmount, r.OriginalAmount
	return PriceObservation{
		Store:           r.Store,
		CurrentAmount:   &cur,
		OriginalAmount:  &orig,
		DiscountPercent: r.DiscountPercent,
		PurchaseURL:     r.PurchaseURL,
		Trust:           ParseTrustTier(r.Trust),
		Available:       true,
	}
}

// RecordFrom builds a cache row from an observation. Callers must check
// Cacheable first; amounts are dereferenced here.
func RecordFrom(gameID string, o PriceObservation, now time.Time) PriceRecord {
	orig := *o.CurrentAmount
	if o.OriginalAmount != nil {
		orig = *o.OriginalAmount
	}
	return PriceRecord{
		GameID:          gameID,
		Store:           o.Store,
		CurrentAmount:   *o.CurrentAmount,
		OriginalAmount:  orig,
		DiscountPercent: o.DiscountPercent,
		PurchaseURL:     o.PurchaseURL,
		Trust:           o.Trust.String(),
		LastUpdated:     now,
	}
}
