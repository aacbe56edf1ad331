package tenants

import "time"

// PlanTier is the tenant's subscription level.
type PlanTier string

const (
	PlanFree       PlanTier = "free"
	PlanStarter    PlanTier = "starter"
	PlanPro        PlanTier = "pro"
	PlanEnterprise PlanTier = "enterprise"
)

// Tenant is the company a profile belongs to and the unit of data
// isolation. Every profile references exactly one tenant.
type Tenant struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Plan         PlanTier  `json:"plan"`
	ContactEmail string    `json:"contact_email,omitempty"`
	ContactPhone string    `json:"contact_phone,omitempty"`
	BillingDoc   string    `json:"billing_doc,omitempty"` // Tax/company registration number
	CreatedAt    time.Time `json:"created_at,omitempty"`
}
