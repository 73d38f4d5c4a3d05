package services

import (
	"time"

	"github.com/gamecompare/price-backend/internal/domain"
)

// Reconcile merges raw observations into the stable per-store view:
// exactly one entry per configured store, in configured order.
//
// Same-store conflicts (e.g. the direct adapter and the deal aggregator
// both produced GOG) are collapsed by trust tier; ties go to the cheaper
// price, a deliberate best-deal policy. Stores with no surviving
// observation get a synthesized placeholder pointing at the store's search
// page. Observations for stores outside the configured list are dropped.
func Reconcile(gameID string, observations []domain.PriceObservation, stores []domain.StoreInfo, title string, now time.Time) domain.AggregatedPriceSet {
	best := make(map[string]domain.PriceObservation, len(stores))
	configured := make(map[string]bool, len(stores))
	for _, s := range stores {
		configured[s.Name] = true
	}

	for _, o := range observations {
		if !configured[o.Store] {
			continue
		}
		cur, ok := best[o.Store]
		if !ok || wins(o, cur) {
			best[o.Store] = o
		}
	}

	entries := make([]domain.PriceObservation, 0, len(stores))
	for _, s := range stores {
		if o, ok := best[s.Name]; ok {
			entries = append(entries, o)
			continue
		}
		entries = append(entries, domain.PriceObservation{
			Store:       s.Name,
			PurchaseURL: s.FallbackURL(title),
			Trust:       domain.TrustEstimated,
			Available:   false,
		})
	}

	return domain.AggregatedPriceSet{
		GameID:      gameID,
		Entries:     entries,
		GeneratedAt: now,
	}
}

// wins reports whether candidate should replace incumbent for one store.
// Higher trust wins; equal trust goes to the lower price. An available
// observation always beats an unavailable one of the same tier, and a
// known price beats an unknown one.
func wins(candidate, incumbent domain.PriceObservation) bool {
	if candidate.Trust != incumbent.Trust {
		return candidate.Trust > incumbent.Trust
	}
	if candidate.Available != incumbent.Available {
		return candidate.Available
	}
	switch {
	case candidate.CurrentAmount == nil:
		return false
	case incumbent.CurrentAmount == nil:
		return true
	default:
		return *candidate.CurrentAmount < *incumbent.CurrentAmount
	}
}
