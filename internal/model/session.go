package model

import "time"

// Session models an entry in the `sessions` table.  One row is created per
// successful login and is the basis for revocation: a credential is only
// honoured while its session is active, unexpired and presented with the
// user-agent recorded here.
//
// Fields:
//  ID          – UUID embedded in the credential as the `sid` claim.
//  UserID      – owner of the session.
//  UserAgent   – user-agent observed at login.
//  IP          – client address observed at login (informational).
//  Fingerprint – optional client fingerprint (informational).
//  Active      – false once logged out or revoked.
//  ExpiresAt   – absolute expiry; credentials never outlive it.
type Session struct {
	ID          string
	UserID      uint64
	UserAgent   string
	IP          string
	Fingerprint string
	Active      bool
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
