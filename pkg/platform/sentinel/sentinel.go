package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Document-store backends return
// these (optionally wrapped) so services can translate them into domain
// errors without knowing which backend is in play.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: document does not exist in the collection
// - ErrConflict: concurrent mutation lost the race and exhausted retries
// - ErrUnavailable: backend temporarily unreachable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors
// directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
