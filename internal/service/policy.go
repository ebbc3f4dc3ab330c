// Package service holds the application's business rules on top of the repositories.
package service

import "blogosphere/internal/models"

// Caller identifies who is making a request. The zero value is anonymous.
type Caller struct {
	UserID uint
	Role   string
}

// IsAnonymous reports whether no authenticated user is attached.
func (c Caller) IsAnonymous() bool {
	return c.UserID == 0
}

// IsAdmin reports whether the caller holds the admin role.
func (c Caller) IsAdmin() bool {
	return !c.IsAnonymous() && c.Role == models.RoleAdmin
}

func (c Caller) owns(p *models.Post) bool {
	return !c.IsAnonymous() && p.AuthorID == c.UserID
}

// IsPublished reports whether p is visible to everyone.
func IsPublished(p *models.Post) bool {
	return p.IsPublished()
}

// CanRead reports whether c may see p. Drafts are visible to their author and admins.
func CanRead(p *models.Post, c Caller) bool {
	return IsPublished(p) || c.owns(p) || c.IsAdmin()
}

// CanModify reports whether c may update or delete p.
func CanModify(p *models.Post, c Caller) bool {
	return c.owns(p) || c.IsAdmin()
}

// CanPublish reports whether c may publish p. Only the author can.
func CanPublish(p *models.Post, c Caller) bool {
	return c.owns(p)
}
