package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/moviemix/api"
	"github.com/frahmantamala/moviemix/internal/order"
	"github.com/frahmantamala/moviemix/internal/paymentgateway"
	"github.com/frahmantamala/moviemix/internal/transport"
	"github.com/frahmantamala/moviemix/internal/transport/middleware"
	"github.com/frahmantamala/moviemix/internal/transport/rest"
	"github.com/frahmantamala/moviemix/internal/verification"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const webhookTolerance = 5 * time.Minute

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server and the background verification workers`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startHTTPServer()
	},
}

func startHTTPServer() error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := initLogger(cfg)

	app, err := buildApp(cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	if budget := verification.PolicyFromConfig(cfg.Verification).Budget(); cfg.Server.WriteTimeout > 0 && budget > cfg.Server.WriteTimeout {
		log.Warn("synchronous verification can outlast the write timeout",
			"verification_budget", budget,
			"write_timeout", cfg.Server.WriteTimeout)
	}

	router, err := setupRoutes(app)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.Dispatcher.Start()
	if _, err := app.Dispatcher.ResumePending(ctx); err != nil {
		log.Error("failed to resume pending verifications", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting HTTP server", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown error", "error", err)
		}
		// interrupted verifications keep their markers and resume on next start
		app.Dispatcher.Shutdown()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

func setupRoutes(app *App) (*chi.Mux, error) {
	cfg, log := app.Config, app.Logger
	base := transport.NewBaseHandler(log)

	verifier, err := middleware.NewTokenVerifier(cfg.Security)
	if err != nil {
		return nil, fmt.Errorf("failed to configure token verification: %w", err)
	}

	doc, err := api.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load api document: %w", err)
	}
	validator, err := middleware.OpenAPIValidator(doc, log)
	if err != nil {
		return nil, err
	}

	checks := map[string]rest.Check{
		"database": func(ctx context.Context) error { return app.SQL.PingContext(ctx) },
	}
	if app.Publisher != nil {
		checks["message_broker"] = app.Publisher.Ping
	}

	handlers := rest.Handlers{
		Orders:       order.NewHandler(app.Service, log),
		Verification: verification.NewHandler(app.Poller, app.Orders, log),
		Webhook: verification.NewWebhookHandler(
			base,
			app.Poller,
			paymentgateway.NewSignatureVerifier(cfg.Payment.ClientSecret, webhookTolerance),
			log,
		),
		Health: rest.NewHealthHandler(base, checks),
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, handlers, rest.Options{
		AllowedOrigins: middleware.SplitOrigins(cfg.Server.AllowedOrigins),
		Auth:           middleware.OwnerAuth(verifier, base),
		Validator:      validator,
	}, log)

	return router, nil
}

func init() {
	rootCmd.AddCommand(httpServerCmd)
}
