package model

import "fmt"

// Kind groups errors by how callers must react to them.  Handlers map the
// kind onto an HTTP status; services use it to decide whether a retry makes
// sense (only KindConcurrency is ever retried).
type Kind string

const (
	KindAuth        Kind = "auth"
	KindNotFound    Kind = "not_found"
	KindForbidden   Kind = "forbidden"
	KindState       Kind = "state"
	KindConcurrency Kind = "concurrency"
)

// Error is the domain error carried across layers.  Code is the stable
// reason string returned to clients (for example SESSION_EXPIRED) so the UI
// can tell "log in again" apart from "this action no longer applies".
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// Authentication failures.
var (
	ErrCredentialMalformed = newError(KindAuth, "CREDENTIAL_MALFORMED", "credential is malformed or has an invalid signature")
	ErrSessionMissing      = newError(KindAuth, "SESSION_MISSING", "credential is not bound to a session")
	ErrSessionInactive     = newError(KindAuth, "SESSION_INACTIVE", "session is not active")
	ErrUserAgentMismatch   = newError(KindAuth, "USER_AGENT_MISMATCH", "credential presented from a different client")
	ErrSessionExpired      = newError(KindAuth, "SESSION_EXPIRED", "session has expired")
	ErrUserNotFound        = newError(KindAuth, "USER_NOT_FOUND", "user no longer exists")
	ErrInvalidCredentials  = newError(KindAuth, "INVALID_CREDENTIALS", "invalid login handle or password")
)

// Lookup failures.
var (
	ErrExamNotFound    = newError(KindNotFound, "EXAM_NOT_FOUND", "exam not found")
	ErrAttemptNotFound = newError(KindNotFound, "ATTEMPT_NOT_FOUND", "exam attempt not found")
	ErrNotAssigned     = newError(KindForbidden, "NOT_ASSIGNED", "you are not assigned to this exam")
	ErrForbidden       = newError(KindForbidden, "FORBIDDEN", "insufficient role")
)

// State and validation failures.  None of these are retried.
var (
	ErrNotAvailable         = newError(KindState, "NOT_AVAILABLE", "exam is not available at this time")
	ErrAttemptNotActive     = newError(KindState, "ATTEMPT_NOT_ACTIVE", "exam attempt is no longer in progress")
	ErrInvalidQuestionIndex = newError(KindState, "INVALID_QUESTION_INDEX", "invalid question index")
	ErrInvalidSelection     = newError(KindState, "INVALID_SELECTION", "selected answer is out of range")
	ErrInvalidViolationType = newError(KindState, "INVALID_VIOLATION_TYPE", "invalid violation type")
	ErrIllegalTransition    = newError(KindState, "ILLEGAL_TRANSITION", "illegal attempt status transition")
	ErrUserExists           = newError(KindState, "USER_EXISTS", "user already exists")
	ErrInvalidInput         = newError(KindState, "INVALID_INPUT", "invalid input")
)

// ErrConcurrentUpdate reports a lost race on an attempt row.  The proctor
// service re-reads and retries once before returning it.
var ErrConcurrentUpdate = newError(KindConcurrency, "CONCURRENT_UPDATE", "attempt was modified concurrently, retry")
