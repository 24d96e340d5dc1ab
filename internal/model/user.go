package model

import "time"

// Roles carried in the users.role column and in the access token's role claim.
const (
	RoleClient    = "CLIENT"
	RoleOrganizer = "ORGANIZER"
	RoleAdmin     = "ADMIN"
)

// Account states stored in users.status.
const (
	UserActive              = "ACTIVE"
	UserBlocked             = "BLOCKED"
	UserPendingVerification = "PENDING_VERIFICATION"
)

// User represents an application user record as stored in the
// `users` table.  Each field corresponds to a column in the
// database.  PasswordHash never leaves the server; handlers build
// their own response shapes.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Name         – display name shown on bookings and receipts.
//  Email        – unique, lower-cased email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – CLIENT, ORGANIZER or ADMIN.
//  Status       – ACTIVE, BLOCKED or PENDING_VERIFICATION.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Name         string    // users.name
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	Status       string    // users.status
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// refresh token belongs to a user and contains metadata for expiry
// and revocation.  The plain token is not stored; only its
// SHA‑256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
