package shop

import "time"

// OrderStatus is the lifecycle state of a service order.
type OrderStatus string

const (
	StatusOpen         OrderStatus = "open"
	StatusInProgress   OrderStatus = "in_progress"
	StatusWaitingParts OrderStatus = "waiting_parts"
	StatusCompleted    OrderStatus = "completed"
	StatusDelivered    OrderStatus = "delivered"
	StatusCanceled     OrderStatus = "canceled"
)

// Closed reports whether the order has left the active pipeline.
func (s OrderStatus) Closed() bool {
	return s == StatusDelivered || s == StatusCanceled
}

// ServiceOrder is a repair job for a customer's device.
type ServiceOrder struct {
	ID            string      `json:"id,omitempty"`
	TenantID      string      `json:"tenant_id"`
	Number        int         `json:"number"`
	CustomerID    string      `json:"customer_id"`
	TechnicianID  string      `json:"technician_id,omitempty"`
	Device        string      `json:"device"`
	ReportedIssue string      `json:"reported_issue"`
	Status        OrderStatus `json:"status"`
	LaborCents    int64       `json:"labor_cents"`
	PartsCents    int64       `json:"parts_cents"`
	CreatedAt     time.Time   `json:"created_at,omitempty"`
	UpdatedAt     time.Time   `json:"updated_at,omitempty"`
}

// TotalCents is the order's charged amount.
func (o ServiceOrder) TotalCents() int64 {
	return o.LaborCents + o.PartsCents
}

type Customer struct {
	ID        string    `json:"id,omitempty"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Document  string    `json:"document,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type Product struct {
	ID         string    `json:"id,omitempty"`
	TenantID   string    `json:"tenant_id"`
	SKU        string    `json:"sku,omitempty"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
	Stock      int       `json:"stock"`
	ImageURL   string    `json:"image_url,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// Commission is a technician's cut of a delivered order.
type Commission struct {
	ID           string    `json:"id,omitempty"`
	TenantID     string    `json:"tenant_id"`
	OrderID      string    `json:"order_id"`
	TechnicianID string    `json:"technician_id"`
	Percent      float64   `json:"percent"`
	AmountCents  int64     `json:"amount_cents"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

// EntryKind distinguishes money moving in from money moving out.
type EntryKind string

const (
	EntryIncome  EntryKind = "income"
	EntryExpense EntryKind = "expense"
)

// CashEntry is a line in the cash register.
type CashEntry struct {
	ID          string    `json:"id,omitempty"`
	TenantID    string    `json:"tenant_id"`
	Kind        EntryKind `json:"kind"`
	Description string    `json:"description"`
	AmountCents int64     `json:"amount_cents"`
	OrderID     string    `json:"order_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}
