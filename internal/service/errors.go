package service

import "errors"

// Validation errors. Returned before anything is written.
var (
	ErrInvalidProposal   = errors.New("invalid trade proposal")
	ErrInvalidDecision   = errors.New("decision must be accept or reject")
	ErrNotOwner          = errors.New("asset is not owned by the expected user")
	ErrAssetNotTradeable = errors.New("asset is not marked tradeable")
	ErrDuplicatePending  = errors.New("an equivalent trade is already pending")
	ErrNotAuthorized     = errors.New("user is not allowed to act on this trade")
	ErrNotFound          = errors.New("trade not found")
)

// Staleness errors. The trade no longer reflects reality and is discarded.
var (
	ErrAssetMissing           = errors.New("asset no longer exists")
	ErrAssetNoLongerTradeable = errors.New("asset is no longer tradeable")
	ErrAlreadySettled         = errors.New("trade is already settled")
)

// Library errors.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrAssetNotFound    = errors.New("asset not found")
	ErrGameNotFound     = errors.New("game not found")
	ErrConcurrentUpdate = errors.New("resource was modified concurrently, retry")
)

// ErrBusy is returned when another proposal for the same user pair is being processed.
var ErrBusy = errors.New("another proposal for this pair is in progress")

// IsStale reports whether err means the trade is no longer valid.
func IsStale(err error) bool {
	return errors.Is(err, ErrAssetMissing) ||
		errors.Is(err, ErrAssetNoLongerTradeable) ||
		errors.Is(err, ErrAlreadySettled)
}
