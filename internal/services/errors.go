// Package services implements the aggregation core: the orchestrator that
// drives one price lookup end to end, and the reconciler that collapses raw
// observations into the per-store view. This file centralizes service-level
// error values so handlers can translate them into HTTP results
// consistently.
package services

import "errors"

var (
	// ErrMissingGameID is returned when a request carries no game
	// identifier. Surfaced before any cache or adapter work happens.
	ErrMissingGameID = errors.New("game identifier is required")

	// ErrAggregationFailed indicates an unexpected internal failure while
	// building the aggregated result. This is the only error class surfaced
	// to callers for a live aggregation; upstream details stay in logs.
	ErrAggregationFailed = errors.New("price aggregation failed")
)
