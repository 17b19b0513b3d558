package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultPollAttempts = 15
	reconcilerMeterName = "github.com/AlexVillalobosJara/ECommerce-sub001/internal/services"

	// ReasonStatusUnavailable is reported when the attempt budget ran out while
	// the status endpoint kept failing.
	ReasonStatusUnavailable = "status_unavailable"
	// ReasonOrderNotFound is reported when the order does not exist.
	ReasonOrderNotFound = "order_not_found"
	// ReasonInvalidRequest is reported when the status read was refused as malformed.
	ReasonInvalidRequest = "invalid_request"
)

// ErrReconcileInvalidInput indicates a missing tenant or order id.
var ErrReconcileInvalidInput = errors.New("reconcile: invalid input")

// PaymentReconcilerDeps wires the reconciliation poller.
type PaymentReconcilerDeps struct {
	Reader      PaymentStatusReader
	Interval    time.Duration
	MaxAttempts int
	// IsPermanent classifies read errors that end polling at once. The default
	// treats ErrPaymentStatusNotFound and ErrPaymentStatusInvalidInput as permanent.
	IsPermanent func(error) bool
	// OnAttempt observes every poll, after the read returns.
	OnAttempt func(attempt int, view PaymentStatusView, err error)
	Meter     metric.Meter
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type paymentReconciler struct {
	reader      PaymentStatusReader
	interval    time.Duration
	maxAttempts int
	isPermanent func(error) bool
	onAttempt   func(int, PaymentStatusView, error)
	outcomes    metric.Int64Counter
	attempts    metric.Int64Histogram
	logger      func(ctx context.Context, event string, fields map[string]any)
}

var _ PaymentReconciler = (*paymentReconciler)(nil)

// NewPaymentReconciler constructs the poller. Interval defaults to 2s and
// MaxAttempts to 15.
func NewPaymentReconciler(deps PaymentReconcilerDeps) (PaymentReconciler, error) {
	if deps.Reader == nil {
		return nil, errors.New("payment reconciler: status reader is required")
	}
	interval := deps.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	maxAttempts := deps.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultPollAttempts
	}
	isPermanent := deps.IsPermanent
	if isPermanent == nil {
		isPermanent = isPermanentStatusError
	}
	onAttempt := deps.OnAttempt
	if onAttempt == nil {
		onAttempt = func(int, PaymentStatusView, error) {}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(reconcilerMeterName)
	}
	outcomes, err := meter.Int64Counter("checkout.reconcile.outcomes",
		metric.WithDescription("Terminal outcomes of payment reconciliation runs"))
	if err != nil {
		return nil, err
	}
	attempts, err := meter.Int64Histogram("checkout.reconcile.attempts",
		metric.WithDescription("Status polls spent per reconciliation run"))
	if err != nil {
		return nil, err
	}

	return &paymentReconciler{
		reader:      deps.Reader,
		interval:    interval,
		maxAttempts: maxAttempts,
		isPermanent: isPermanent,
		onAttempt:   onAttempt,
		outcomes:    outcomes,
		attempts:    attempts,
		logger:      logger,
	}, nil
}

// Reconcile polls the payment status of an order until it is terminal or the
// attempt budget runs out. The first poll happens immediately. Cancelling ctx
// stops polling and returns ctx.Err().
func (r *paymentReconciler) Reconcile(ctx context.Context, cmd ReconcileCommand) (ReconciliationOutcome, error) {
	tenantID := strings.TrimSpace(cmd.TenantID)
	orderID := strings.TrimSpace(cmd.OrderID)
	if tenantID == "" || orderID == "" {
		return ReconciliationOutcome{State: domain.ReconciliationError, Reason: ReasonInvalidRequest}, ErrReconcileInvalidInput
	}

	var (
		timer   *time.Timer
		last    PaymentStatusView
		lastErr error
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if attempt > 1 {
			if timer == nil {
				timer = time.NewTimer(r.interval)
			} else {
				timer.Reset(r.interval)
			}
			select {
			case <-ctx.Done():
				return r.cancelled(ctx, attempt-1, last)
			case <-timer.C:
			}
		}
		if ctx.Err() != nil {
			return r.cancelled(ctx, attempt-1, last)
		}

		view, err := r.reader.ReadPaymentStatus(ctx, tenantID, orderID)
		r.onAttempt(attempt, view, err)
		if err != nil {
			if ctx.Err() != nil {
				return r.cancelled(ctx, attempt, last)
			}
			if r.isPermanent(err) {
				return r.finish(ctx, orderID, ReconciliationOutcome{
					State:    domain.ReconciliationError,
					Reason:   permanentReason(err),
					Attempts: attempt,
					Status:   last,
				}), nil
			}
			lastErr = err
			continue
		}

		last, lastErr = view, nil
		switch view.PaymentStatus {
		case domain.PaymentStatusCompleted:
			return r.finish(ctx, orderID, ReconciliationOutcome{
				State:    domain.ReconciliationSuccess,
				Attempts: attempt,
				Status:   view,
			}), nil
		case domain.PaymentStatusFailed, domain.PaymentStatusCancelled:
			return r.finish(ctx, orderID, ReconciliationOutcome{
				State:    domain.ReconciliationError,
				Reason:   "payment_" + string(view.PaymentStatus),
				Attempts: attempt,
				Status:   view,
			}), nil
		}
	}

	if lastErr != nil {
		r.logger(ctx, "reconcile.status_unavailable", map[string]any{
			"orderId": orderID,
			"error":   lastErr.Error(),
		})
		return r.finish(ctx, orderID, ReconciliationOutcome{
			State:    domain.ReconciliationError,
			Reason:   ReasonStatusUnavailable,
			Attempts: r.maxAttempts,
			Status:   last,
		}), nil
	}
	return r.finish(ctx, orderID, ReconciliationOutcome{
		State:    domain.ReconciliationPending,
		Attempts: r.maxAttempts,
		Status:   last,
	}), nil
}

func (r *paymentReconciler) finish(ctx context.Context, orderID string, outcome ReconciliationOutcome) ReconciliationOutcome {
	attrs := metric.WithAttributes(
		attribute.String("state", string(outcome.State)),
		attribute.String("reason", outcome.Reason),
	)
	r.outcomes.Add(context.WithoutCancel(ctx), 1, attrs)
	r.attempts.Record(context.WithoutCancel(ctx), int64(outcome.Attempts), attrs)
	r.logger(ctx, "reconcile.finished", map[string]any{
		"orderId":  orderID,
		"state":    string(outcome.State),
		"reason":   outcome.Reason,
		"attempts": outcome.Attempts,
	})
	return outcome
}

func (r *paymentReconciler) cancelled(ctx context.Context, attempts int, last PaymentStatusView) (ReconciliationOutcome, error) {
	r.outcomes.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(attribute.String("state", "cancelled")))
	return ReconciliationOutcome{
		State:    domain.ReconciliationLoading,
		Attempts: attempts,
		Status:   last,
	}, ctx.Err()
}

func isPermanentStatusError(err error) bool {
	return errors.Is(err, ErrPaymentStatusNotFound) || errors.Is(err, ErrPaymentStatusInvalidInput)
}

func permanentReason(err error) string {
	switch {
	case errors.Is(err, ErrPaymentStatusNotFound):
		return ReasonOrderNotFound
	case errors.Is(err, ErrPaymentStatusInvalidInput):
		return ReasonInvalidRequest
	}
	return "status_read_failed"
}
