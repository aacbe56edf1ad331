package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fixdesk/fixdesk/bootstrap"
	"github.com/fixdesk/fixdesk/gate"
	"github.com/fixdesk/fixdesk/shop"
)

// gatedState pulls the session state the gate resolved for this request.
// The gate only lets authorised requests through, so absence is a wiring
// bug, not a user error.
func gatedState(w http.ResponseWriter, r *http.Request) (bootstrap.State, bool) {
	state, ok := gate.StateFromContext(r.Context())
	if !ok || !state.Authenticated() {
		respondError(w, http.StatusUnauthorized, "not authorized")
		return bootstrap.State{}, false
	}
	return state, true
}

func (s *Server) ListOrdersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, ok := gatedState(w, r)
		if !ok {
			return
		}
		repo, err := s.tenantRepo(state)
		if err != nil {
			respondForError(w, err)
			return
		}

		orders, err := repo.ListOrders(r.Context(), state.Session.AccessToken, orderFilterFromQuery(r))
		if err != nil {
			respondForError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"orders":        orders,
			"status_counts": shop.StatusCounts(orders),
		})
	}
}

func orderFilterFromQuery(r *http.Request) shop.OrderFilter {
	query := r.URL.Query()
	filter := shop.OrderFilter{
		CustomerID:   query.Get("customer_id"),
		TechnicianID: query.Get("technician_id"),
	}
	if statuses := query.Get("status"); statuses != "" {
		for _, status := range strings.Split(statuses, ",") {
			filter.Statuses = append(filter.Statuses, shop.OrderStatus(status))
		}
	}
	if since, err := time.Parse(time.RFC3339, query.Get("since")); err == nil {
		filter.Since = since
	}
	if until, err := time.Parse(time.RFC3339, query.Get("until")); err == nil {
		filter.Until = until
	}
	if limit, err := strconv.Atoi(query.Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(query.Get("offset")); err == nil && offset > 0 {
		filter.Offset = offset
	}
	return filter
}

func (s *Server) GetOrderHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, ok := gatedState(w, r)
		if !ok {
			return
		}
		repo, err := s.tenantRepo(state)
		if err != nil {
			respondForError(w, err)
			return
		}

		order, err := repo.GetOrder(r.Context(), state.Session.AccessToken, r.PathValue("id"))
		if err != nil {
			respondForError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, order)
	}
}

func (s *Server) CreateOrderHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, ok := gatedState(w, r)
		if !ok {
			return
		}
		var order shop.ServiceOrder
		if !decodeJSON(w, r, &order) {
			return
		}
		if order.CustomerID == "" || order.Device == "" {
			respondError(w, http.StatusBadRequest, "customer_id and device are required")
			return
		}

		repo, err := s.tenantRepo(state)
		if err != nil {
			respondForError(w, err)
			return
		}
		if err := repo.CreateOrder(r.Context(), state.Session.AccessToken, &order); err != nil {
			respondForError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, order)
	}
}

func (s *Server) UpdateOrderStatusHandler() http.HandlerFunc {
	type statusRequest struct {
		Status shop.OrderStatus `json:"status"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		state, ok := gatedState(w, r)
		if !ok {
			return
		}
		var request statusRequest
		if !decodeJSON(w, r, &request) {
			return
		}
		if request.Status == "" {
			respondError(w, http.StatusBadRequest, "status is required")
			return
		}

		repo, err := s.tenantRepo(state)
		if err != nil {
			respondForError(w, err)
			return
		}
		if err := repo.UpdateOrderStatus(r.Context(), state.Session.AccessToken, r.PathValue("id"), request.Status); err != nil {
			respondForError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) ExportOrdersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, ok := gatedState(w, r)
		if !ok {
			return
		}
		repo, err := s.tenantRepo(state)
		if err != nil {
			respondForError(w, err)
			return
		}

		orders, err := repo.ListOrders(r.Context(), state.Session.AccessToken, orderFilterFromQuery(r))
		if err != nil {
			respondForError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="orders.csv"`)
		if err := shop.ExportOrdersCSV(w, orders); err != nil {
			s.log.Error().Err(err).Msg("order export failed mid-stream")
		}
	}
}

func (s *Server) ListCustomersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, ok := gatedState(w, r)
		if !ok {
			return
		}
		repo, err := s.tenantRepo(state)
		if err != nil {
			respondForError(w, err)
			return
		}

		customers, err := repo.ListCustomers(r.Context(), state.Session.AccessToken)
		if err != nil {
			respondForError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"customers": customers})
	}
}

func (s *Server) CreateCustomerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, ok := gatedState(w, r)
		if !ok {
			return
		}
		var customer shop.Customer
		if !decodeJSON(w, r, &customer) {
			return
		}
		if customer.Name == "" {
			respondError(w, http.StatusBadRequest, "name is required")
			return
		}

		repo, err := s.tenantRepo(state)
		if err != nil {
			respondForError(w, err)
			return
		}
		if err := repo.CreateCustomer(r.Context(), state.Session.AccessToken, &customer); err != nil {
			respondForError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, customer)
	}
}

func (s *Server) ListProductsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, ok := gatedState(w, r)
		if !ok {
			return
		}
		repo, err := s.tenantRepo(state)
		if err != nil {
			respondForError(w, err)
			return
		}

		products, err := repo.ListProducts(r.Context(), state.Session.AccessToken)
		if err != nil {
			respondForError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"products": products})
	}
}

func (s *Server) CreateProductHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, ok := gatedState(w, r)
		if !ok {
			return
		}
		var product shop.Product
		if !decodeJSON(w, r, &product) {
			return
		}
		if product.Name == "" {
			respondError(w, http.StatusBadRequest, "name is required")
			return
		}

		repo, err := s.tenantRepo(state)
		if err != nil {
			respondForError(w, err)
			return
		}
		if err := repo.CreateProduct(r.Context(), state.Session.AccessToken, &product); err != nil {
			respondForError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, product)
	}
}

func (s *Server) ListCommissionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, ok := gatedState(w, r)
		if !ok {
			return
		}
		repo, err := s.tenantRepo(state)
		if err != nil {
			respondForError(w, err)
			return
		}

		since, until := rangeFromQuery(r)
		technicianID := r.URL.Query().Get("technician_id")
		commissions, err := repo.ListCommissions(r.Context(), state.Session.AccessToken, technicianID, since, until)
		if err != nil {
			respondForError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"commissions": commissions,
			"total_cents": shop.CommissionTotalCents(commissions, technicianID),
		})
	}
}

func (s *Server) ListCashEntriesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, ok := gatedState(w, r)
		if !ok {
			return
		}
		repo, err := s.tenantRepo(state)
		if err != nil {
			respondForError(w, err)
			return
		}

		since, until := rangeFromQuery(r)
		entries, err := repo.ListCashEntries(r.Context(), state.Session.AccessToken, since, until)
		if err != nil {
			respondForError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"entries":       entries,
			"balance_cents": shop.CashBalanceCents(entries),
		})
	}
}

func (s *Server) AddCashEntryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, ok := gatedState(w, r)
		if !ok {
			return
		}
		var entry shop.CashEntry
		if !decodeJSON(w, r, &entry) {
			return
		}
		if entry.Kind != shop.EntryIncome && entry.Kind != shop.EntryExpense {
			respondError(w, http.StatusBadRequest, "kind must be income or expense")
			return
		}
		if entry.AmountCents <= 0 {
			respondError(w, http.StatusBadRequest, "amount_cents must be positive")
			return
		}

		repo, err := s.tenantRepo(state)
		if err != nil {
			respondForError(w, err)
			return
		}
		if err := repo.AddCashEntry(r.Context(), state.Session.AccessToken, &entry); err != nil {
			respondForError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, entry)
	}
}

func (s *Server) ExportCashEntriesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, ok := gatedState(w, r)
		if !ok {
			return
		}
		repo, err := s.tenantRepo(state)
		if err != nil {
			respondForError(w, err)
			return
		}

		since, until := rangeFromQuery(r)
		entries, err := repo.ListCashEntries(r.Context(), state.Session.AccessToken, since, until)
		if err != nil {
			respondForError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="cash_register.csv"`)
		if err := shop.ExportCashEntriesCSV(w, entries); err != nil {
			s.log.Error().Err(err).Msg("cash export failed mid-stream")
		}
	}
}

func rangeFromQuery(r *http.Request) (since, until time.Time) {
	query := r.URL.Query()
	if parsed, err := time.Parse(time.RFC3339, query.Get("since")); err == nil {
		since = parsed
	}
	if parsed, err := time.Parse(time.RFC3339, query.Get("until")); err == nil {
		until = parsed
	}
	return since, until
}
