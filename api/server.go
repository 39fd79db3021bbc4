/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     zerolog request logging, request-scoped logger in context
  3. Recoverer:  Panic recovery (500 envelope instead of crash)
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/health                           Store ping
  /api/account-types/*                  Global account types
  /api/businesses/{businessID}/*        Accounts, journals and reports of one business
  /api/scenarios/*                      Demo scenarios

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Logging, recovery and business scoping
  - cmd/ledger/serve.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Log         zerolog.Logger
	CORSOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(opts.Log))
	r.Use(recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusNotFound, Envelope{
			Status: statusError, Message: "Route not found", Error: &ErrorBody{Code: "not_found"},
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusMethodNotAllowed, Envelope{
			Status: statusError, Message: "Method not allowed", Error: &ErrorBody{Code: "method_not_allowed"},
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Account type routes
		r.Route("/account-types", func(r chi.Router) {
			r.Get("/", h.ListAccountTypes)
			r.Post("/", h.CreateAccountType)
			r.Get("/{id}", h.GetAccountType)
			r.Put("/{id}", h.UpdateAccountType)
			r.Delete("/{id}", h.DeleteAccountType)
		})

		r.Route("/businesses/{businessID}", func(r chi.Router) {
			r.Use(businessScope)

			// Account routes
			r.Route("/accounts", func(r chi.Router) {
				r.Get("/", h.ListAccounts)
				r.Post("/", h.CreateAccount)
				r.Get("/{accountID}", h.GetAccount)
				r.Put("/{accountID}", h.UpdateAccount)
				r.Delete("/{accountID}", h.DeleteAccount)
				r.Get("/{accountID}/movement", h.GetAccountMovement)
				r.Get("/{accountID}/ledger", h.GetLedger)
				r.Get("/{accountID}/balance", h.GetBalance)
				r.Get("/{accountID}/report", h.GetAccountReport)
			})

			// Journal routes
			r.Route("/journals", func(r chi.Router) {
				r.Get("/", h.ListJournals)
				r.Post("/", h.CreateJournal)
				r.Get("/{journalID}", h.GetJournal)
				r.Put("/{journalID}", h.UpdateJournal)
				r.Delete("/{journalID}", h.DeleteJournal)
				r.Put("/{journalID}/lines", h.ReplaceJournalLines)
			})
			r.Route("/journal-lines", func(r chi.Router) {
				r.Put("/{lineID}", h.UpdateJournalLine)
				r.Delete("/{lineID}", h.DeleteJournalLine)
			})

			// Report routes
			r.Route("/reports", func(r chi.Router) {
				r.Get("/profit-and-loss", h.GetProfitAndLoss)
				r.Get("/trial-balance", h.GetTrialBalance)
			})
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
