package models

import "time"

// Role decides what a signed-in user may see and do.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleAdmin
}

// Profile is the directory entry of a user. It is owned by the identity
// provider; this service only reads it.
type Profile struct {
	ID    string `gorm:"type:uuid;primaryKey" json:"id"`
	Email string `gorm:"type:text" json:"email"`
	Name  string `gorm:"type:text" json:"name"`
}

// DisplayName returns the profile name, falling back to a generic label.
func (p *Profile) DisplayName() string {
	if p == nil || p.Name == "" {
		return "Student"
	}
	return p.Name
}

// UserRole assigns a role to a user. Users without a row are students.
type UserRole struct {
	UserID    string    `gorm:"type:uuid;primaryKey" json:"user_id"`
	Role      Role      `gorm:"type:text;not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
