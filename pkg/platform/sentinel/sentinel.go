package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and transports return
// these (optionally wrapped) so services can translate them into domain
// errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: document does not exist in the store
// - ErrConflict: a uniqueness guard rejected the write
// - ErrInvalidState: entity in wrong state for the requested operation
// - ErrUnavailable: store or messaging channel temporarily unreachable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors
// directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
