package server

import (
	"net/http"

	"github.com/fixdesk/fixdesk/bootstrap"
	"github.com/fixdesk/fixdesk/gate"
	"github.com/fixdesk/fixdesk/profiles"
	"github.com/fixdesk/fixdesk/shop"
)

const (
	RouteHealth = "/health"

	RouteSignIn  = "/api/auth/signin"
	RouteSignUp  = "/api/auth/signup"
	RouteSignOut = "/api/auth/signout"
	RouteRefresh = "/api/auth/refresh"
	RouteSession = "/api/auth/session"

	RouteSSOAuthorize = "/auth/sso/authorize"
	RouteSSOCallback  = "/auth/sso/callback"

	RouteOrders       = "/api/shop/orders"
	RouteOrdersExport = "/api/shop/orders/export"
	RouteOrderByID    = "/api/shop/orders/{id}"
	RouteOrderStatus  = "/api/shop/orders/{id}/status"
	RouteCustomers    = "/api/shop/customers"
	RouteProducts     = "/api/shop/products"
	RouteCommissions  = "/api/shop/commissions"
	RouteCash         = "/api/shop/cash"
	RouteCashExport   = "/api/shop/cash/export"

	RouteResetPassword = "/api/auth/reset-password"
	RouteAvatar        = "/api/profile/avatar"
	RouteProductImage  = "/api/shop/products/{id}/image"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.APIMiddleware()...))

	// Session lifecycle
	s.RegisterRouteHandler("POST "+RouteSignIn, ChainMiddleware(s.SignInHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteSignUp, ChainMiddleware(s.SignUpHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteSignOut, ChainMiddleware(s.SignOutHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteSession, ChainMiddleware(s.SessionHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteResetPassword, ChainMiddleware(s.ResetPasswordHandler(), s.APIMiddleware()...))

	// SSO (only when an issuer is configured)
	if s.config.GetSSOIssuerURL() != "" {
		s.RegisterRouteHandler("GET "+RouteSSOAuthorize, ChainMiddleware(s.SSOAuthorizeHandler(), s.APIMiddleware()...))
		s.RegisterRouteHandler("GET "+RouteSSOCallback, ChainMiddleware(s.SSOCallbackHandler(), s.APIMiddleware()...))
		s.RegisterRouteHandler("POST "+RouteSSOCallback, ChainMiddleware(s.SSOCallbackHandler(), s.APIMiddleware()...)) // form_post response mode
	}

	// Shop records, behind the session gate
	s.protect("GET "+RouteOrders, s.ListOrdersHandler(), anyRole())
	s.protect("POST "+RouteOrders, s.CreateOrderHandler(), anyRole())
	s.protect("GET "+RouteOrdersExport, s.ExportOrdersHandler(), minRole(profiles.RoleManager))
	s.protect("GET "+RouteOrderByID, s.GetOrderHandler(), anyRole())
	s.protect("PATCH "+RouteOrderStatus, s.UpdateOrderStatusHandler(), minRole(profiles.RoleTechnician))
	s.protect("GET "+RouteCustomers, s.ListCustomersHandler(), anyRole())
	s.protect("POST "+RouteCustomers, s.CreateCustomerHandler(), anyRole())
	s.protect("GET "+RouteProducts, s.ListProductsHandler(), anyRole())
	s.protect("POST "+RouteProducts, s.CreateProductHandler(), minRole(profiles.RoleManager))
	s.protect("GET "+RouteCommissions, s.ListCommissionsHandler(), minRole(profiles.RoleManager))
	s.protect("GET "+RouteCash, s.ListCashEntriesHandler(), minRole(profiles.RoleFinance))
	s.protect("POST "+RouteCash, s.AddCashEntryHandler(), minRole(profiles.RoleCashier))
	s.protect("GET "+RouteCashExport, s.ExportCashEntriesHandler(), minRole(profiles.RoleFinance))

	// Uploads, when an object storage backend is wired
	if s.backends.Storage != nil {
		s.protect("POST "+RouteAvatar, s.UploadAvatarHandler(), anyRole())
		s.protect("POST "+RouteProductImage, s.UploadProductImageHandler(), minRole(profiles.RoleManager))
	}
}

func (s *Server) protect(pattern string, handler func(w http.ResponseWriter, r *http.Request), req gate.Requirement) {
	s.RegisterRouteHandler(pattern, ChainMiddleware(handler, s.APIMiddleware(s.gate.Protect(req))...))
}

func anyRole() gate.Requirement {
	return gate.Requirement{}
}

func minRole(role profiles.RoleType) gate.Requirement {
	return gate.Requirement{MinRole: role}
}

// tenantRepo builds the request's tenant-scoped shop repo from the gated
// session state.
func (s *Server) tenantRepo(state bootstrap.State) (*shop.Repo, error) {
	return shop.NewRepo(s.backends.Data, state.Profile.TenantID)
}
