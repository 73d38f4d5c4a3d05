// Package handlers defines the HTTP-layer error codes used across the API.
//
// Codes are lowercase snake_case and stable: clients branch on them for
// programmatic error handling, while the accompanying message stays free to
// change. Generic codes mirror HTTP status semantics; domain-specific codes
// cover failures a status alone cannot convey.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeMissingGameID     = "missing_game_id"
	ErrCodeAggregationFailed = "aggregation_failed"
)
