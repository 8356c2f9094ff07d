package model

import "time"

// Role names carried in the access token.
const (
	RoleStaff   = "STAFF"   // works the door: check-ins, searches, exports
	RoleManager = "MANAGER" // staff plus revenue and account management
)

// User is a staff account as stored in the `users` table.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email (lower-cased)
	PasswordHash string    // users.password_hash (bcrypt)
	Role         string    // users.role, RoleStaff or RoleManager
	IsActive     bool      // users.is_active; inactive accounts cannot log in
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// ValidRole reports whether r is a role this service issues tokens for.
func ValidRole(r string) bool { return r == RoleStaff || r == RoleManager }

// RefreshToken is a row of `refresh_tokens`. Only the SHA-256 hash of the
// token handed to the device is stored.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
}

// Usable reports whether the token may still be exchanged at now.
func (t RefreshToken) Usable(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
