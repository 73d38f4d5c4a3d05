// Package sources defines the contract every storefront integration
// implements. One aggregation run fans out over all registered sources
// concurrently; each source converts its native currency to the display
// currency before returning, and contains its own failures: network errors,
// non-2xx statuses, and malformed payloads come back as an error that the
// orchestrator logs and drops, never as a panic or a partial observation.
package sources

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/gamecompare/price-backend/internal/currency"
	"github.com/gamecompare/price-backend/internal/domain"
)

// Source is one storefront integration.
//
// Fetch returns zero or more observations for the game (most sources
// produce at most one; the deal aggregator expands several stores from a
// single response). title is the resolved display title used by sources
// that search by free text; such sources return (nil, nil) when it is
// empty. A nil, nil return means "nothing found", which is not an error.
type Source interface {
	Name() string
	Fetch(ctx context.Context, gameID, title string, rates currency.Rates) ([]domain.PriceObservation, error)
}

// NewClient builds the resty client shared by adapter implementations.
func NewClient(timeout time.Duration) *resty.Client {
	return resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", "price-backend/1.0").
		SetHeader("Accept", "application/json, text/html")
}
