package shop

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/fixdesk/fixdesk/backend"
	apperrors "github.com/fixdesk/fixdesk/internal/errors"
)

const (
	ordersTable      = "service_orders"
	customersTable   = "customers"
	productsTable    = "products"
	commissionsTable = "commissions"
	cashTable        = "cash_entries"
)

// Repo gives tenant-scoped access to the shop's records. Every query is
// pinned to the tenant it was created for; rows written through it have
// their tenant forced to the same value.
type Repo struct {
	data     *backend.DataClient
	tenantID string
}

func NewRepo(data *backend.DataClient, tenantID string) (*Repo, error) {
	if data == nil {
		return nil, errors.New("[shop.NewRepo] data client not provided")
	}
	if tenantID == "" {
		return nil, errors.Wrap(apperrors.ErrTenantNotFound, "[shop.NewRepo]")
	}
	return &Repo{data: data, tenantID: tenantID}, nil
}

// OrderFilter narrows ListOrders. Zero fields are ignored.
type OrderFilter struct {
	Statuses     []OrderStatus
	CustomerID   string
	TechnicianID string
	Since        time.Time
	Until        time.Time
	Limit        int
	Offset       int
}

func (r *Repo) ListOrders(ctx context.Context, accessToken string, filter OrderFilter) ([]ServiceOrder, error) {
	query := r.data.From(ordersTable).
		Eq("tenant_id", r.tenantID).
		Order("created_at", backend.Descending)

	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			statuses = append(statuses, string(status))
		}
		query = query.In("status", statuses...)
	}
	if filter.CustomerID != "" {
		query = query.Eq("customer_id", filter.CustomerID)
	}
	if filter.TechnicianID != "" {
		query = query.Eq("technician_id", filter.TechnicianID)
	}
	if !filter.Since.IsZero() {
		query = query.Gte("created_at", filter.Since.UTC().Format(time.RFC3339))
	}
	if !filter.Until.IsZero() {
		query = query.Lte("created_at", filter.Until.UTC().Format(time.RFC3339))
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var orders []ServiceOrder
	if err := query.Get(ctx, accessToken, &orders); err != nil {
		return nil, errors.Wrap(err, "[Repo.ListOrders]")
	}
	return orders, nil
}

func (r *Repo) GetOrder(ctx context.Context, accessToken, orderID string) (*ServiceOrder, error) {
	var orders []ServiceOrder
	err := r.data.From(ordersTable).
		Eq("tenant_id", r.tenantID).
		Eq("id", orderID).
		Limit(1).
		Get(ctx, accessToken, &orders)
	if err != nil {
		return nil, errors.Wrap(err, "[Repo.GetOrder]")
	}
	if len(orders) == 0 {
		return nil, errors.Wrap(apperrors.ErrNotFound, "[Repo.GetOrder]")
	}
	return &orders[0], nil
}

func (r *Repo) CreateOrder(ctx context.Context, accessToken string, order *ServiceOrder) error {
	order.TenantID = r.tenantID
	if order.Status == "" {
		order.Status = StatusOpen
	}
	if err := r.data.From(ordersTable).Insert(ctx, accessToken, order); err != nil {
		return errors.Wrap(err, "[Repo.CreateOrder]")
	}
	return nil
}

func (r *Repo) UpdateOrderStatus(ctx context.Context, accessToken, orderID string, status OrderStatus) error {
	err := r.data.From(ordersTable).
		Eq("tenant_id", r.tenantID).
		Eq("id", orderID).
		Update(ctx, accessToken, map[string]any{"status": status})
	if err != nil {
		return errors.Wrap(err, "[Repo.UpdateOrderStatus]")
	}
	return nil
}

func (r *Repo) ListCustomers(ctx context.Context, accessToken string) ([]Customer, error) {
	var customers []Customer
	err := r.data.From(customersTable).
		Eq("tenant_id", r.tenantID).
		Order("name", backend.Ascending).
		Get(ctx, accessToken, &customers)
	if err != nil {
		return nil, errors.Wrap(err, "[Repo.ListCustomers]")
	}
	return customers, nil
}

func (r *Repo) CreateCustomer(ctx context.Context, accessToken string, customer *Customer) error {
	customer.TenantID = r.tenantID
	if err := r.data.From(customersTable).Insert(ctx, accessToken, customer); err != nil {
		return errors.Wrap(err, "[Repo.CreateCustomer]")
	}
	return nil
}

func (r *Repo) ListProducts(ctx context.Context, accessToken string) ([]Product, error) {
	var products []Product
	err := r.data.From(productsTable).
		Eq("tenant_id", r.tenantID).
		Order("name", backend.Ascending).
		Get(ctx, accessToken, &products)
	if err != nil {
		return nil, errors.Wrap(err, "[Repo.ListProducts]")
	}
	return products, nil
}

func (r *Repo) CreateProduct(ctx context.Context, accessToken string, product *Product) error {
	product.TenantID = r.tenantID
	if err := r.data.From(productsTable).Insert(ctx, accessToken, product); err != nil {
		return errors.Wrap(err, "[Repo.CreateProduct]")
	}
	return nil
}

func (r *Repo) SetProductImage(ctx context.Context, accessToken, productID, imageURL string) error {
	err := r.data.From(productsTable).
		Eq("tenant_id", r.tenantID).
		Eq("id", productID).
		Update(ctx, accessToken, map[string]any{"image_url": imageURL})
	if err != nil {
		return errors.Wrap(err, "[Repo.SetProductImage]")
	}
	return nil
}

func (r *Repo) ListCommissions(ctx context.Context, accessToken, technicianID string, since, until time.Time) ([]Commission, error) {
	query := r.data.From(commissionsTable).
		Eq("tenant_id", r.tenantID).
		Order("created_at", backend.Descending)
	if technicianID != "" {
		query = query.Eq("technician_id", technicianID)
	}
	if !since.IsZero() {
		query = query.Gte("created_at", since.UTC().Format(time.RFC3339))
	}
	if !until.IsZero() {
		query = query.Lte("created_at", until.UTC().Format(time.RFC3339))
	}

	var commissions []Commission
	if err := query.Get(ctx, accessToken, &commissions); err != nil {
		return nil, errors.Wrap(err, "[Repo.ListCommissions]")
	}
	return commissions, nil
}

func (r *Repo) ListCashEntries(ctx context.Context, accessToken string, since, until time.Time) ([]CashEntry, error) {
	query := r.data.From(cashTable).
		Eq("tenant_id", r.tenantID).
		Order("occurred_at", backend.Descending)
	if !since.IsZero() {
		query = query.Gte("occurred_at", since.UTC().Format(time.RFC3339))
	}
	if !until.IsZero() {
		query = query.Lte("occurred_at", until.UTC().Format(time.RFC3339))
	}

	var entries []CashEntry
	if err := query.Get(ctx, accessToken, &entries); err != nil {
		return nil, errors.Wrap(err, "[Repo.ListCashEntries]")
	}
	return entries, nil
}

func (r *Repo) AddCashEntry(ctx context.Context, accessToken string, entry *CashEntry) error {
	entry.TenantID = r.tenantID
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	if err := r.data.From(cashTable).Insert(ctx, accessToken, entry); err != nil {
		return errors.Wrap(err, "[Repo.AddCashEntry]")
	}
	return nil
}
