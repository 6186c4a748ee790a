package entity

import "time"

const (
	RoleAdmin        = "admin"
	RoleCollaborator = "collaborator"
)

// AdminUser represents a row in the `admin_users` table. Email is stored
// lower-cased.
type AdminUser struct {
	ID           int64      `db:"id"`
	Email        string     `db:"email"`
	Name         string     `db:"name"`
	PasswordHash string     `db:"password_hash"`
	Salt         string     `db:"salt"`
	Role         string     `db:"role"`
	CreatedAt    time.Time  `db:"created_at"`
	LastLogin    *time.Time `db:"last_login"`
}

// Summary is the projection returned to clients after authentication.
type Summary struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// Listing is the projection used by the collaborator management screen.
type Listing struct {
	Summary
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login"`
}

func (u *AdminUser) Summary() Summary {
	return Summary{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

func (u *AdminUser) Listing() Listing {
	return Listing{Summary: u.Summary(), CreatedAt: u.CreatedAt, LastLogin: u.LastLogin}
}

func (u *AdminUser) IsAdmin() bool { return u.Role == RoleAdmin }

// Patch lists the mutable columns; nil fields are left untouched.
type Patch struct {
	Name         *string
	Role         *string
	PasswordHash *string
	Salt         *string
}

func (p Patch) Empty() bool {
	return p.Name == nil && p.Role == nil && p.PasswordHash == nil
}

// NormalizeRole maps anything other than "admin" to collaborator.
func NormalizeRole(role string) string {
	if role == RoleAdmin {
		return RoleAdmin
	}
	return RoleCollaborator
}
