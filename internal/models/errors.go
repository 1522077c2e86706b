package models

import "errors"

// Sentinel errors shared across stores and handlers. Handlers map these to
// HTTP statuses; everything else is treated as an internal failure.
var (
	// ErrNotFound: unknown asset, watchlist entry, or user reference.
	ErrNotFound = errors.New("not found")

	// ErrConflict: the (user, asset) watchlist pair already exists.
	ErrConflict = errors.New("already watching this asset")

	// ErrAssetNotFound: watchlist add for an asset that has never been cached.
	ErrAssetNotFound = errors.New("asset not found in price cache")

	// ErrStaleWrite: snapshot upsert with a non-advancing upstream timestamp.
	// Dropped silently by the cache; callers may count it.
	ErrStaleWrite = errors.New("stale snapshot write dropped")

	// ErrInvalidThreshold: alert threshold must be a positive percentage.
	ErrInvalidThreshold = errors.New("alert threshold must be greater than zero")

	// ErrForbidden: principal does not own the row it is touching.
	ErrForbidden = errors.New("forbidden")

	// ErrNoValidRecords: an upstream poll cycle yielded zero parseable records.
	ErrNoValidRecords = errors.New("no valid records in upstream response")
)
