package etl

import "errors"

var (
	// ErrWatermarkUnavailable wraps watermark storage failures. It must never
	// be papered over with the epoch sentinel: that would silently widen the
	// re-sync window to the whole catalog.
	ErrWatermarkUnavailable = errors.New("watermark store unavailable")

	ErrIndexUnavailable = errors.New("search index unavailable")
)
