// Command paymentwatch reconciles one order's payment against a running
// checkout API and exits with the outcome: 0 paid, 2 still pending, 1 failed.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/checkoutclient"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/observability"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/services"
)

const (
	exitPaid    = 0
	exitFailed  = 1
	exitPending = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("paymentwatch", flag.ContinueOnError)
	baseURL := fs.String("base-url", envOr("CHECKOUT_API_BASE_URL", "http://localhost:8080/api/v1"), "checkout API root")
	tenant := fs.String("tenant", os.Getenv("CHECKOUT_TENANT_ID"), "tenant id")
	order := fs.String("order", "", "order id to reconcile")
	interval := fs.Duration("interval", 2*time.Second, "delay between status polls")
	attempts := fs.Int("attempts", 15, "maximum status polls")
	token := fs.String("token", os.Getenv("CHECKOUT_API_TOKEN"), "bearer token sent to the API")
	if err := fs.Parse(args); err != nil {
		return exitFailed
	}
	if *tenant == "" || *order == "" {
		fmt.Fprintln(os.Stderr, "paymentwatch: -tenant and -order are required")
		fs.Usage()
		return exitFailed
	}

	logger, err := observability.NewLogger("paymentwatch")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		return exitFailed
	}
	defer func() {
		_ = logger.Sync()
	}()

	client, err := checkoutclient.New(checkoutclient.Config{
		BaseURL:     *baseURL,
		BearerToken: *token,
		UserAgent:   "paymentwatch/1",
	})
	if err != nil {
		logger.Error("invalid client configuration", zap.Error(err))
		return exitFailed
	}
	reconciler, err := services.NewPaymentReconciler(services.PaymentReconcilerDeps{
		Reader:      client,
		Interval:    *interval,
		MaxAttempts: *attempts,
		OnAttempt: func(attempt int, view services.PaymentStatusView, err error) {
			if err != nil {
				logger.Warn("status poll failed", zap.Int("attempt", attempt), zap.Error(err))
				return
			}
			logger.Debug("status polled", zap.Int("attempt", attempt), zap.String("status", string(view.PaymentStatus)))
		},
		Logger: observability.EventLogger(logger),
	})
	if err != nil {
		logger.Error("failed to build reconciler", zap.Error(err))
		return exitFailed
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outcome, err := reconciler.Reconcile(ctx, services.ReconcileCommand{TenantID: *tenant, OrderID: *order})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("reconcile failed", zap.Error(err))
		return exitFailed
	}

	_ = json.NewEncoder(os.Stdout).Encode(map[string]any{
		"orderId":       *order,
		"state":         outcome.State,
		"reason":        outcome.Reason,
		"attempts":      outcome.Attempts,
		"paymentStatus": outcome.Status.PaymentStatus,
		"orderNumber":   outcome.Status.OrderNumber,
	})
	return exitCode(outcome.State)
}

func exitCode(state domain.ReconciliationState) int {
	switch state {
	case domain.ReconciliationSuccess:
		return exitPaid
	case domain.ReconciliationPending, domain.ReconciliationLoading:
		return exitPending
	}
	return exitFailed
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
