package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Run background workers outside the HTTP server`,
}

var verifyWorkerCmd = &cobra.Command{
	Use:   "verify",
	Short: "Resume verification of every pending order",
	Long: `Queue every persisted pending-order marker for verification and wait for the
runs to finish. With --watch the markers are rescanned on an interval until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startVerifyWorker()
	},
}

var (
	watch         bool
	watchInterval time.Duration
	maxWorkers    int
	queueSize     int
)

func startVerifyWorker() error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if maxWorkers > 0 {
		cfg.Verification.Workers = maxWorkers
	}
	if queueSize > 0 {
		cfg.Verification.QueueSize = queueSize
	}
	log := initLogger(cfg)

	app, err := buildApp(cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting verification worker",
		"workers", cfg.Verification.Workers,
		"queue_size", cfg.Verification.QueueSize,
		"watch", watch)

	app.Dispatcher.Start()
	defer app.Dispatcher.Shutdown()

	if _, err := app.Dispatcher.ResumePending(ctx); err != nil {
		return fmt.Errorf("failed to resume pending verifications: %w", err)
	}

	if !watch {
		if err := app.Dispatcher.Drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		log.Info("verification worker finished")
		return nil
	}

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("received signal, shutting down verification worker")
			return nil
		case <-ticker.C:
			// wait for the previous sweep so markers are not queued twice
			if err := app.Dispatcher.Drain(ctx); err != nil {
				continue
			}
			if _, err := app.Dispatcher.ResumePending(ctx); err != nil {
				log.Error("failed to rescan pending verifications", "error", err)
			}
		}
	}
}

func init() {
	verifyWorkerCmd.Flags().BoolVar(&watch, "watch", false, "keep rescanning pending markers until interrupted")
	verifyWorkerCmd.Flags().DurationVar(&watchInterval, "interval", time.Minute, "rescan interval with --watch")
	verifyWorkerCmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "number of verification workers (overrides config)")
	verifyWorkerCmd.Flags().IntVar(&queueSize, "queue-size", 0, "verification queue size (overrides config)")

	workerCmd.AddCommand(verifyWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
