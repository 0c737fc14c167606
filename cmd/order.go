package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/frahmantamala/moviemix/internal/order"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Operator tooling for payment orders",
}

var createOrderCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a payment order on behalf of an owner",
	RunE: func(cmd *cobra.Command, args []string) error {
		return createOrder(cmd.Context())
	},
}

var verifyOrderCmd = &cobra.Command{
	Use:   "verify [order-id]",
	Short: "Verify one order against the gateway in the foreground",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return verifyOrder(cmd.Context(), args[0])
	},
}

var (
	orderOwner    string
	orderAmount   string
	orderPhone    string
	orderEmail    string
	orderTitle    string
	orderLanguage string
)

func createOrder(ctx context.Context) error {
	amount, err := decimal.NewFromString(orderAmount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", orderAmount, err)
	}

	app, err := setupOperatorApp()
	if err != nil {
		return err
	}
	defer app.Close()

	resp, err := app.Service.CreateOrder(ctx, orderOwner, &order.CreateOrderDTO{
		Amount:        amount,
		CustomerPhone: orderPhone,
		CustomerEmail: orderEmail,
		Title:         orderTitle,
		Language:      orderLanguage,
	})
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func verifyOrder(ctx context.Context, orderID string) error {
	app, err := setupOperatorApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome, err := app.Poller.Verify(ctx, orderID)
	if outcome != nil {
		if perr := printJSON(outcome); perr != nil {
			return perr
		}
	}
	return err
}

func setupOperatorApp() (*App, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return buildApp(cfg, initLogger(cfg))
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	flags := createOrderCmd.Flags()
	flags.StringVar(&orderOwner, "owner", "", "owner identity (email) the order belongs to")
	flags.StringVar(&orderAmount, "amount", "", "amount in INR, at most two decimals")
	flags.StringVar(&orderPhone, "phone", "", "customer phone")
	flags.StringVar(&orderEmail, "email", "", "customer email")
	flags.StringVar(&orderTitle, "title", "", "requested movie title")
	flags.StringVar(&orderLanguage, "language", "", "requested movie language")
	_ = createOrderCmd.MarkFlagRequired("owner")
	_ = createOrderCmd.MarkFlagRequired("amount")

	orderCmd.AddCommand(createOrderCmd)
	orderCmd.AddCommand(verifyOrderCmd)

	rootCmd.AddCommand(orderCmd)
}
