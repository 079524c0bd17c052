package model

import "time"

// Role is the closed set of account roles.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// ParseRole normalises a requested role.  Anything other than "admin"
// becomes a student account.
func ParseRole(s string) Role {
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleStudent
}

// User represents an application user record as stored in the `users`
// table.  Handle and Email are both unique.
type User struct {
	ID           uint64    // users.id
	Handle       string    // users.handle (login id)
	PasswordHash string    // users.password_hash (bcrypt)
	Name         string    // users.name
	Email        string    // users.email
	Role         Role      // users.role
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}
