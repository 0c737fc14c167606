package rest

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/moviemix/api"
	"github.com/frahmantamala/moviemix/internal/order"
	"github.com/frahmantamala/moviemix/internal/transport"
	"github.com/frahmantamala/moviemix/internal/transport/middleware"
	"github.com/frahmantamala/moviemix/internal/transport/swagger"
	"github.com/frahmantamala/moviemix/internal/verification"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

type Handlers struct {
	Orders       *order.Handler
	Verification *verification.Handler
	Webhook      *verification.WebhookHandler
	Health       *HealthHandler
}

type Options struct {
	AllowedOrigins []string
	// Auth guards owner routes; nil leaves them unregistered.
	Auth func(http.Handler) http.Handler
	// Validator checks requests against the API document when set.
	Validator func(http.Handler) http.Handler
}

func RegisterAllRoutes(router *chi.Mux, handlers Handlers, opts Options, logger *slog.Logger) {
	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(api.Spec)
	})
	router.Handle("/swagger/*", swagger.Handler())

	if handlers.Health == nil {
		handlers.Health = NewHealthHandler(transport.NewBaseHandler(logger), nil)
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", handlers.Health.Ping)
		r.Get("/health", handlers.Health.Health)

		r.Group(func(vr chi.Router) {
			if opts.Validator != nil {
				vr.Use(opts.Validator)
			}

			if handlers.Webhook != nil {
				vr.Post("/payment/callback", handlers.Webhook.HandlePaymentCallback)
			}

			if opts.Auth == nil {
				logger.Warn("no owner authentication configured, order routes disabled")
				return
			}

			vr.Group(func(pr chi.Router) {
				pr.Use(opts.Auth)

				pr.Route("/orders", func(or chi.Router) {
					if handlers.Orders != nil {
						or.Post("/", handlers.Orders.CreateOrder)
						or.Get("/pending", handlers.Orders.GetPending)
						or.Get("/{id}", handlers.Orders.GetOrder)
					}
					if handlers.Verification != nil {
						or.Post("/{id}/verify", handlers.Verification.VerifyOrder)
					}
				})
			})
		})
	})
}
