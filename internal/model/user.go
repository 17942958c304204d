package model

import "time"

// Role names stored in users.role and carried in the access token's
// "role" claim.
const (
    RoleAdmin     = "ADMIN"
    RoleApplicant = "APPLICANT"
)

// User is a login account from the `users` table.  Applicants additionally
// own one row in `applicants`; administrators do not.  Inactive accounts
// cannot log in.
type User struct {
    ID           uint64    // users.id
    Email        string    // users.email
    PasswordHash string    // users.password_hash
    Role         string    // users.role: RoleAdmin or RoleApplicant
    IsActive     bool      // users.is_active
    CreatedAt    time.Time // users.created_at
    UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA‑256 hash of the raw token is persisted.
type RefreshToken struct {
    ID        uint64     // refresh_tokens.id
    UserID    uint64     // refresh_tokens.user_id
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
    CreatedAt time.Time  // refresh_tokens.created_at
}
