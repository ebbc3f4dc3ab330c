package models

import (
	"strings"
	"time"
)

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Profile holds optional public profile fields.
type Profile struct {
	Bio      string `json:"bio"`
	Avatar   string `json:"avatar"`
	Location string `json:"location"`
	Website  string `json:"website"`
}

// Settings holds per-user preferences.
type Settings struct {
	EmailNotifications bool `gorm:"not null;default:true" json:"emailNotifications"`
	PublicProfile      bool `gorm:"not null;default:true" json:"publicProfile"`
}

// User represents an account.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Email        string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"not null" json:"-"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	Username     string     `gorm:"uniqueIndex;not null" json:"username"`
	Role         string     `gorm:"size:16;not null;default:user" json:"role"`
	IsActive     bool       `gorm:"not null;default:true" json:"isActive"`
	Profile      Profile    `gorm:"embedded;embeddedPrefix:profile_" json:"profile"`
	Settings     Settings   `gorm:"embedded;embeddedPrefix:settings_" json:"settings"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// DisplayName returns "First Last" when both names are set, falling back to
// the username, then the email local part, then "Anonymous".
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.Username != "":
		return u.Username
	}
	if local := EmailLocalPart(u.Email); local != "" {
		return local
	}
	return "Anonymous"
}

// PublicUser is the subset of a user exposed to other callers.
type PublicUser struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Profile   any       `json:"profile"`
	CreatedAt time.Time `json:"createdAt"`
}

// EmailLocalPart returns the portion of an address before '@'.
func EmailLocalPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
