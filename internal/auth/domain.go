package auth

import "time"

// Role enumerates the access levels of pharmacy staff.
type Role string

const (
	RoleAdmin      Role = "admin"
	RolePharmacist Role = "pharmacist"
)

// User represents a staff account holding an API credential.
type User struct {
	ID        int64
	Name      string
	Role      Role
	KeyID     string
	KeyHash   string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Principal is the authenticated identity attached to a request. The
// credential itself stays opaque to the rest of the application.
type Principal struct {
	UserID int64
	Name   string
	Role   Role
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
