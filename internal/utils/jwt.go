package utils // package utils provides helper functions for credential signing and hashing

import (
    "errors"
    "strconv"
    "time"

    "github.com/golang-jwt/jwt/v5" // JWT library for creating and verifying signed tokens
)

// ErrCredentialExpired is returned by ParseCredential when the signature is
// valid but the exp claim lies in the past.
var ErrCredentialExpired = errors.New("credential expired")

// ErrCredentialInvalid covers every other parse failure: bad signature, wrong
// algorithm, missing claims or a garbled string.
var ErrCredentialInvalid = errors.New("credential invalid")

// CredentialClaims is the payload of a bearer credential.  The subject
// carries the user id, `sid` names the server-side session the credential
// is bound to and `role` is informational only; authorization always
// re-reads the user record.
type CredentialClaims struct {
    SessionID string `json:"sid"`
    Role      string `json:"role,omitempty"`
    jwt.RegisteredClaims
}

// UserID decodes the subject claim.
func (c *CredentialClaims) UserID() (uint64, error) {
    return strconv.ParseUint(c.Subject, 10, 64)
}

// NewCredential signs an HS256 credential for the given user and session.
// The exp claim is set to the session's expiry so the two lapse together.
func NewCredential(secret string, userID uint64, sessionID, role string, issuedAt, expiresAt time.Time) (string, error) {
    claims := CredentialClaims{
        SessionID: sessionID,
        Role:      role,
        RegisteredClaims: jwt.RegisteredClaims{
            Subject:   strconv.FormatUint(userID, 10),
            IssuedAt:  jwt.NewNumericDate(issuedAt),
            ExpiresAt: jwt.NewNumericDate(expiresAt),
        },
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    return t.SignedString([]byte(secret))
}

// ParseCredential verifies the signature and the time-based claims of raw
// against now.  Only HS256 is accepted.  An empty `sid` is not rejected
// here; session binding is the caller's concern.
func ParseCredential(secret, raw string, now time.Time) (*CredentialClaims, error) {
    claims := &CredentialClaims{}
    tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
        return []byte(secret), nil
    },
        jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
        jwt.WithTimeFunc(func() time.Time { return now }),
    )
    if err != nil {
        if errors.Is(err, jwt.ErrTokenExpired) {
            return claims, ErrCredentialExpired
        }
        return nil, ErrCredentialInvalid
    }
    if !tok.Valid {
        return nil, ErrCredentialInvalid
    }
    if _, err := claims.UserID(); err != nil {
        return nil, ErrCredentialInvalid
    }
    return claims, nil
}
