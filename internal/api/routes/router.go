package routes

import (
	"net/http"

	"github.com/labtrack/lims/internal/api/handlers"
	"github.com/labtrack/lims/internal/api/loaders"
	"github.com/labtrack/lims/internal/api/middleware"
	"github.com/labtrack/lims/internal/infrastructure/observability"
)

// Handlers groups the resource handlers the router mounts
type Handlers struct {
	Auth     *handlers.AuthHandler
	Patients *handlers.PatientHandler
	Results  *handlers.ResultHandler
	Billing  *handlers.BillingHandler
	Audit    *handlers.AuditHandler
	Users    *handlers.UserHandler
	Catalog  *handlers.CatalogHandler
}

// Router holds all route handlers
type Router struct {
	mux            *http.ServeMux
	handlers       Handlers
	sessions       middleware.SessionResolver
	billing        loaders.BillingSource
	allowedOrigins []string
	metrics        *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	h Handlers,
	sessions middleware.SessionResolver,
	billing loaders.BillingSource,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:            http.NewServeMux(),
		handlers:       h,
		sessions:       sessions,
		billing:        billing,
		allowedOrigins: allowedOrigins,
		metrics:        metrics,
	}
}

// protected mounts fn behind session authentication
func (r *Router) protected(pattern string, fn http.HandlerFunc) {
	r.mux.Handle(pattern, middleware.RequireAuth(r.sessions)(fn))
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Auth
	r.mux.HandleFunc("POST /api/auth/login", r.handlers.Auth.Login)
	r.protected("POST /api/auth/logout", r.handlers.Auth.Logout)
	r.protected("GET /api/auth/session", r.handlers.Auth.Session)

	// Patients
	r.protected("GET /api/patients", r.handlers.Patients.ListPatients)
	r.protected("POST /api/patients", r.handlers.Patients.RegisterPatient)
	r.protected("GET /api/patients/search", r.handlers.Patients.SearchPatients)
	r.protected("GET /api/patients/{id}", r.handlers.Patients.GetPatient)
	r.protected("PATCH /api/patients/{id}", r.handlers.Patients.UpdatePatient)
	r.protected("DELETE /api/patients/{id}", r.handlers.Patients.DeletePatient)

	// Result pipeline
	r.protected("GET /api/results", r.handlers.Results.ListResults)
	r.protected("POST /api/results", r.handlers.Results.CreateResult)
	r.protected("POST /api/results/panels", r.handlers.Results.CreatePanel)
	r.protected("GET /api/results/{id}", r.handlers.Results.GetResult)
	r.protected("PATCH /api/results/{id}", r.handlers.Results.UpdateResult)
	r.protected("DELETE /api/results/{id}", r.handlers.Results.DeleteResult)
	r.protected("POST /api/results/{id}/advance", r.handlers.Results.AdvanceResult)

	// Billing ledger
	r.protected("GET /api/billing", r.handlers.Billing.ListBilling)
	r.protected("POST /api/billing", r.handlers.Billing.CreateBilling)
	r.protected("GET /api/billing/summary", r.handlers.Billing.Summary)
	r.protected("PATCH /api/billing/{id}/status", r.handlers.Billing.SetStatus)
	r.protected("DELETE /api/billing/{id}", r.handlers.Billing.DeleteBilling)

	// Audit trail
	r.protected("GET /api/audit-logs", r.handlers.Audit.ListAuditLogs)
	r.protected("GET /api/stream/audit-logs", r.handlers.Audit.StreamAuditLogs)

	// Users
	r.protected("GET /api/users", r.handlers.Users.ListUsers)
	r.protected("POST /api/users", r.handlers.Users.CreateUser)
	r.protected("PATCH /api/users/{id}", r.handlers.Users.UpdateUser)
	r.protected("DELETE /api/users/{id}", r.handlers.Users.DeleteUser)

	// Catalog
	r.protected("GET /api/catalog", r.handlers.Catalog.GetCatalog)
	r.protected("GET /api/catalog/classify", r.handlers.Catalog.Classify)

	// Apply middleware in reverse order (last middleware wraps first)
	handler := middleware.RoutePattern(r.mux)
	handler = loaders.Middleware(r.billing)(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	// CORS wraps everything so preflights never reach auth
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
