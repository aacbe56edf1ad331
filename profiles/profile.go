package profiles

import (
	"strings"
	"time"
)

// RoleType represents a user's role within their tenant
type RoleType string

const (
	RoleAdmin      RoleType = "admin"      // Full control of the tenant
	RoleManager    RoleType = "manager"    // Manages orders, staff and suppliers
	RoleFinance    RoleType = "finance"    // Commissions and financial reports
	RoleCashier    RoleType = "cashier"    // Cash register operation
	RoleTechnician RoleType = "technician" // Works assigned service orders
	RoleAttendant  RoleType = "attendant"  // Front desk, creates orders and customers
)

// roleLevels orders roles for minimum-level checks. Higher outranks lower.
var roleLevels = map[RoleType]int{
	RoleAttendant:  1,
	RoleTechnician: 2,
	RoleCashier:    3,
	RoleFinance:    4,
	RoleManager:    5,
	RoleAdmin:      6,
}

// Level returns the numeric rank of the role, 0 for unknown roles.
func (r RoleType) Level() int {
	return roleLevels[r]
}

// AtLeast reports whether the role satisfies the given minimum role.
func (r RoleType) AtLeast(minimum RoleType) bool {
	return r.Level() >= minimum.Level()
}

// Valid reports whether the role is one of the known enumerated roles.
func (r RoleType) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// Profile is the application-level user record. Exactly one profile exists
// per authenticated identity, and a profile always belongs to exactly one
// tenant.
type Profile struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	TenantID    string    `json:"tenant_id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Role        RoleType  `json:"role"`
	Permissions []string  `json:"permissions,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`

	// Degraded marks a fallback profile derived from session claims after
	// the profile fetch was exhausted. Views may render a reduced surface.
	Degraded bool `json:"-"`
}

// HasPermission reports whether the profile carries the named permission.
func (p *Profile) HasPermission(name string) bool {
	for _, perm := range p.Permissions {
		if perm == name {
			return true
		}
	}
	return false
}

// DisplayNameFromEmail derives a presentable name from an email address,
// used by the degraded fallback when no profile row is available.
func DisplayNameFromEmail(email string) string {
	local, _, found := strings.Cut(email, "@")
	if !found || local == "" {
		return email
	}
	words := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
