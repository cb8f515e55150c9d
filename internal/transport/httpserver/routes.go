package httpserver

import (
	"net/http"
	"time"

	"family-ledger-go/internal/config"
	"family-ledger-go/internal/transport/httpserver/handler"
	"family-ledger-go/internal/transport/httpserver/middleware"
	"family-ledger-go/pkg/logger"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(cfg config.Config, handlers *handler.Handlers, identity middleware.Identity, log logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.NewCORS(cfg.CORSOrigins))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.Common.Health)

		r.Post("/session/register", handlers.Common.Register)
		r.Post("/session/login", handlers.Common.Login)
		r.Post("/session/logout", handlers.Common.Logout)

		auth := middleware.NewSessionAuth(identity, log)
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)

			r.Get("/session/me", handlers.Common.Me)

			r.Get("/dashboard", handlers.Dashboard.Dashboard)
			r.Get("/dashboard/snapshots", handlers.Dashboard.Snapshots)
			r.Get("/dashboard/snapshots/{id}", handlers.Dashboard.Snapshot)
			r.Get("/dashboard/export.xlsx", handlers.Dashboard.ExportXLSX)
			r.Get("/dashboard/chart.png", handlers.Dashboard.Chart)

			r.Get("/incomes", handlers.Ledger.ListIncomes)
			r.Post("/incomes", handlers.Ledger.CreateIncome)
			r.Get("/expenses", handlers.Ledger.ListExpenses)
			r.Post("/expenses", handlers.Ledger.CreateExpense)
			r.Get("/expenses/{id}", handlers.Ledger.GetExpense)
			r.Get("/expense-categories", handlers.Ledger.ListCategories)

			r.Get("/personal-expenses", handlers.Personal.ListMine)
			r.Post("/personal-expenses", handlers.Personal.Create)
			r.Get("/personal-expenses/pending", handlers.Personal.ListPending)
			r.Get("/personal-expenses/{id}", handlers.Personal.Get)
			r.Put("/personal-expenses/{id}", handlers.Personal.Update)
			r.Post("/personal-expenses/{id}/submit", handlers.Personal.Submit)
			r.Post("/personal-expenses/{id}/cancel", handlers.Personal.Cancel)
			r.Post("/personal-expenses/{id}/decide", handlers.Personal.Decide)
			r.Get("/personal-expenses/{id}/approvals", handlers.Personal.Approvals)

			r.Get("/reports/approved-expenses", handlers.Ledger.ApprovedExpenses)

			r.Get("/notifications", handlers.Ledger.ListNotifications)
			r.Post("/notifications/mark-read", handlers.Ledger.MarkNotificationsRead)

			r.Route("/admin/users", func(r chi.Router) {
				r.Get("/", handlers.Admin.ListUsers)
				r.Post("/", handlers.Admin.CreateUser)
				r.Put("/{id}", handlers.Admin.UpdateUser)
				r.Delete("/{id}", handlers.Admin.DeleteUser)
			})
		})
	})

	return r
}
