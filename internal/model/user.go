package model

import "time"

// Roles carried in the JWT "role" claim.  Any buyer may resell a ticket
// they own, so there is no separate reseller role.
const (
    RoleBuyer     = "BUYER"
    RoleOrganizer = "ORGANIZER"
)

// User represents an application user record as stored in the
// `users` table.  Handlers expose a trimmed view; the password hash
// never leaves the repository and auth layers.
//
// Fields:
//  ID           – opaque identifier (UUID).
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – BUYER or ORGANIZER.
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
    ID           string    // users.id
    Email        string    // users.email
    PasswordHash string    // users.password_hash
    Role         string    // users.role
    IsActive     bool      // users.is_active
    CreatedAt    time.Time // users.created_at
    UpdatedAt    time.Time // users.updated_at
}

// Caller is the authenticated identity on whose behalf a workflow runs.
// It is passed explicitly into every operation; nothing reads a
// process-wide "current user".
type Caller struct {
    UserID string
    Role   string
}

// IsOrganizer reports whether the caller holds the organizer role.
func (c Caller) IsOrganizer() bool { return c.Role == RoleOrganizer }
