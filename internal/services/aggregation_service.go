package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/gamecompare/price-backend/internal/currency"
	"github.com/gamecompare/price-backend/internal/domain"
	"github.com/gamecompare/price-backend/internal/repo"
	"github.com/gamecompare/price-backend/internal/sources"
	"github.com/gamecompare/price-backend/internal/sources/estimate"
)

// NameResolver obtains a display title for a canonical identifier. The
// title only drives free-text search against secondary sources; resolution
// failure means title-dependent sources are skipped for the run, nothing
// more.
type NameResolver interface {
	ResolveName(ctx context.Context, gameID string) (string, bool)
}

// AggregationService is the entry point of the price aggregation core. One
// GetPrices call checks the cache, fans out over all source adapters
// concurrently on a miss, reconciles the observations, persists the
// cache-eligible ones, and returns the per-store view.
//
// Concurrent requests for the same game run independently: the upsert is
// idempotent, so duplicate work is waste, not a correctness hazard.
type AggregationService struct {
	DB       *gorm.DB
	Sources  []sources.Source
	Resolver NameResolver
	Rates    currency.Fetcher
	Stores   []domain.StoreInfo
	Log      zerolog.Logger

	// Cache-hit policy; see repo.ReadFresh.
	CacheMaxAge       time.Duration
	CacheMinAvailable int
	CacheMinRows      int

	// Estimator fabricates prices for uncovered stores. nil disables it.
	Estimator *estimate.Estimator

	// TitleOverrides bypasses the name resolver for known-problem games.
	TitleOverrides map[string]string
}

// fetchResult carries one adapter's settled outcome across the join.
type fetchResult struct {
	source string
	obs    []domain.PriceObservation
	err    error
}

// GetPrices aggregates prices for one game identifier.
//
// Failures below this method are contained: a failing adapter contributes
// nothing, a failing cache read becomes a live fetch, a failing cache write
// is logged and swallowed. Only an empty identifier or an internal panic
// surface as errors.
func (s *AggregationService) GetPrices(ctx context.Context, gameID string) (set *domain.AggregatedPriceSet, err error) {
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return nil, ErrMissingGameID
	}

	// The reconciler and adapters are plain data transformations, but they
	// chew on arbitrary upstream payloads; a panic here must become a
	// request-level error, not a crashed process.
	defer func() {
		if r := recover(); r != nil {
			s.Log.Error().Interface("panic", r).Str("game_id", gameID).Msg("aggregation panicked")
			set, err = nil, ErrAggregationFailed
		}
	}()

	if cached, ok := s.readCache(ctx, gameID); ok {
		return cached, nil
	}

	start := time.Now()
	set = s.aggregateLive(ctx, gameID)
	aggregationDuration.Observe(time.Since(start).Seconds())
	return set, nil
}

// readCache maps fresh cached rows to an AggregatedPriceSet. Placeholders
// are synthesized for configured stores absent from the cache, so a cache
// hit honors the same completeness contract as a live aggregation.
func (s *AggregationService) readCache(ctx context.Context, gameID string) (*domain.AggregatedPriceSet, bool) {
	rows, err := repo.ReadFresh(ctx, s.DB, gameID, s.CacheMaxAge, s.CacheMinAvailable, s.CacheMinRows)
	if err != nil {
		if err == repo.ErrCacheMiss {
			cacheReads.WithLabelValues("miss").Inc()
		} else {
			// Storage trouble is a miss too: fail open to a live fetch.
			cacheReads.WithLabelValues("error").Inc()
			s.Log.Warn().Err(err).Str("game_id", gameID).Msg("cache read failed, falling through to live fetch")
		}
		return nil, false
	}
	cacheReads.WithLabelValues("hit").Inc()

	obs := make([]domain.PriceObservation, 0, len(rows))
	for _, r := range rows {
		obs = append(obs, r.Observation())
	}
	set := Reconcile(gameID, obs, s.Stores, "", time.Now().UTC())
	return &set, true
}

// aggregateLive runs the full pipeline: rates, title, concurrent fan-out,
// reconciliation, persistence.
func (s *AggregationService) aggregateLive(ctx context.Context, gameID string) *domain.AggregatedPriceSet {
	rates := s.Rates.Snapshot(ctx)
	title := s.resolveTitle(ctx, gameID)

	observations := s.fetchAll(ctx, gameID, title, rates)

	if s.Estimator != nil {
		seen := make(map[string]bool, len(observations))
		for _, o := range observations {
			if o.Available {
				seen[o.Store] = true
			}
		}
		auth := authoritativeOf(observations)
		observations = append(observations, s.Estimator.Fill(auth, seen, s.Stores, title)...)
	}

	set := Reconcile(gameID, observations, s.Stores, title, time.Now().UTC())
	s.persist(ctx, gameID, set)
	return &set
}

// resolveTitle consults the override table before the live resolver.
func (s *AggregationService) resolveTitle(ctx context.Context, gameID string) string {
	if t, ok := s.TitleOverrides[gameID]; ok {
		return t
	}
	if s.Resolver == nil {
		return ""
	}
	title, ok := s.Resolver.ResolveName(ctx, gameID)
	if !ok {
		s.Log.Debug().Str("game_id", gameID).Msg("title resolution failed, skipping title-dependent sources")
		return ""
	}
	return title
}

// fetchAll fans out over every source concurrently and joins with
// settle-all semantics: a slow or failing source never blocks or cancels
// its siblings, it just contributes nothing.
func (s *AggregationService) fetchAll(ctx context.Context, gameID, title string, rates currency.Rates) []domain.PriceObservation {
	results := make([]fetchResult, len(s.Sources))

	var wg sync.WaitGroup
	for i, src := range s.Sources {
		wg.Add(1)
		go func(i int, src sources.Source) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					sourceFetches.WithLabelValues(src.Name(), "panic").Inc()
					s.Log.Error().Interface("panic", r).Str("source", src.Name()).Msg("source adapter panicked")
					results[i] = fetchResult{source: src.Name()}
				}
			}()
			obs, err := src.Fetch(ctx, gameID, title, rates)
			results[i] = fetchResult{source: src.Name(), obs: obs, err: err}
		}(i, src)
	}
	wg.Wait()

	var out []domain.PriceObservation
	for _, r := range results {
		switch {
		case r.err != nil:
			sourceFetches.WithLabelValues(r.source, "error").Inc()
			s.Log.Warn().Err(r.err).Str("source", r.source).Str("game_id", gameID).Msg("source fetch failed")
		case len(r.obs) == 0:
			sourceFetches.WithLabelValues(r.source, "empty").Inc()
		default:
			sourceFetches.WithLabelValues(r.source, "ok").Inc()
			out = append(out, r.obs...)
		}
	}
	return out
}

// persist upserts every cache-eligible entry. Write failures are logged
// and swallowed: the live data is already in hand, and a failed cache
// write must never fail the user-visible aggregation.
func (s *AggregationService) persist(ctx context.Context, gameID string, set domain.AggregatedPriceSet) {
	now := time.Now().UTC()
	for _, o := range set.Entries {
		if !o.Cacheable() {
			continue
		}
		rec := domain.RecordFrom(gameID, o, now)
		if err := repo.Upsert(ctx, s.DB, &rec); err != nil {
			s.Log.Warn().Err(err).Str("game_id", gameID).Str("store", o.Store).Msg("cache write failed")
		}
	}
}

// authoritativeOf picks the authoritative observation out of a batch, the
// discount basis for estimation.
func authoritativeOf(observations []domain.PriceObservation) *domain.PriceObservation {
	for i := range observations {
		if observations[i].Trust == domain.TrustAuthoritative {
			return &observations[i]
		}
	}
	return nil
}
