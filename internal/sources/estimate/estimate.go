// Package estimate contains the heuristic estimation adapter: when no real
// observation exists for a secondary store, it manufactures one as a fixed
// fraction of the authoritative price. The output is tagged TrustEstimated,
// which keeps it out of the cache, out of availability counting, and at the
// bottom of conflict resolution. The whole package can be left unwired
// without any other component noticing.
package estimate

import (
	"github.com/gamecompare/price-backend/internal/domain"
)

// Estimator fills gaps in secondary-store coverage from the authoritative
// price.
type Estimator struct {
	// Factor is the fraction of the authoritative price attributed to a
	// competitor, e.g. 0.93.
	Factor float64
}

// Fill returns estimated observations for every store in stores that has no
// entry in seen, derived from the authoritative observation. Returns nothing
// when the authoritative price itself is unknown or zero: a fabricated
// discount off nothing is meaningless, and estimating a "free" competitor
// price would invent availability.
func (e *Estimator) Fill(auth *domain.PriceObservation, seen map[string]bool, stores []domain.StoreInfo, title string) []domain.PriceObservation {
	if e == nil || auth == nil || !auth.Available {
		return nil
	}
	if auth.CurrentAmount == nil || *auth.CurrentAmount <= 0 {
		return nil
	}

	var out []domain.PriceObservation
	for _, s := range stores {
		if s.Name == auth.Store || seen[s.Name] {
			continue
		}
		amount := *auth.CurrentAmount * e.Factor
		orig := amount
		if auth.OriginalAmount != nil && *auth.OriginalAmount > 0 {
			orig = *auth.OriginalAmount * e.Factor
		}
		out = append(out, domain.PriceObservation{
			Store:          s.Name,
			CurrentAmount:  &amount,
			OriginalAmount: &orig,
			PurchaseURL:    s.FallbackURL(title),
			Trust:          domain.TrustEstimated,
			Available:      true,
		})
	}
	return out
}
