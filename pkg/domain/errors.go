package domain

import "errors"

// ErrSubjectNotFound is returned when the requested subject has no
// story graph. Recoverable: the caller keeps its previous state.
var ErrSubjectNotFound = errors.New("subject not found")

// ErrNodeNotFound is a graph integrity violation (authoring bug).
// Fatal for the session; only a restart recovers.
var ErrNodeNotFound = errors.New("story node not found")

// ErrNoGraphLoaded is returned when a node operation runs before any
// subject was selected.
var ErrNoGraphLoaded = errors.New("no subject graph loaded")

// ErrBusy is returned when an advance or answer arrives while a
// resolution or transition is already in flight.
var ErrBusy = errors.New("engine busy")

// ErrTerminal is returned when an advance or answer targets an End
// node. Only restart actions apply there.
var ErrTerminal = errors.New("terminal node reached")

// ErrSuperseded marks a resolution whose result was discarded because
// a newer loadSubject/restart replaced it.
var ErrSuperseded = errors.New("resolution superseded")

// ErrRateLimited is a rate-limit-class generation failure. Treated as
// content-unavailable for this session, but never persisted so a later
// session retries.
var ErrRateLimited = errors.New("generation rate limited")

// ErrContentUnavailable is any other generation failure. Never fatal;
// always resolved through a degradation path.
var ErrContentUnavailable = errors.New("content unavailable")

// ErrInputInvalid rejects malformed player input (empty answer, option
// index out of range) before it reaches the engine.
var ErrInputInvalid = errors.New("invalid input")
