package router

import (
	"net/http"

	"bloomkart/internal/handler"
	"bloomkart/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// New creates a new HTTP router with all routes and middleware configured.
// Admin routes require the API key; storefront routes are open.
func New(
	productHandler *handler.ProductHandler,
	orderHandler *handler.OrderHandler,
	paymentHandler *handler.PaymentHandler,
	apiKey string,
	logger zerolog.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS)

	// Health check endpoint (no authentication required)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", productHandler.GetAll)
		r.Get("/products/{id}", productHandler.GetByID)

		r.Post("/orders", orderHandler.Create)
		r.Get("/orders/{id}", orderHandler.GetByID)
		r.Patch("/orders/{id}", orderHandler.Update)
		r.Get("/orders/{id}/history", orderHandler.GetHistory)
		r.Post("/orders/{id}/payments", paymentHandler.Create)

		// Admin surface
		r.Group(func(r chi.Router) {
			r.Use(middleware.APIKeyAuth(apiKey, logger))

			r.Get("/orders", orderHandler.List)
			r.Patch("/orders/{id}/status", orderHandler.UpdateStatus)
			r.Patch("/admin/payments/{id}/verify", paymentHandler.Verify)
		})
	})

	return r
}
