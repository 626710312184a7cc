package services

import "errors"

// Error taxonomy shared across services. Handlers translate these into
// user-facing responses; services wrap them with context via fmt.Errorf and
// %w so errors.Is keeps working.
var (
	ErrNotFound          = errors.New("session not found")
	ErrBranchConflict    = errors.New("session branch conflict")
	ErrNotReachable      = errors.New("target commit is not an ancestor of the branch tip")
	ErrStartTimeout      = errors.New("instance did not become ready in time")
	ErrResourceExhausted = errors.New("runtime capacity exhausted")
	ErrPushRejected      = errors.New("remote rejected the forced branch update")
)
