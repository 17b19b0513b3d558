package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/payments"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/repositories"
)

const attemptIDPrefix = "pay_"

var (
	// ErrPaymentInvalidInput indicates a missing order, bad URL or unknown gateway id.
	ErrPaymentInvalidInput = errors.New("payment: invalid input")
	// ErrNoActiveGateway indicates the tenant has no gateway enabled.
	ErrNoActiveGateway = errors.New("payment: no active gateway")
	// ErrGatewayMisconfigured indicates the gateway answered without a usable redirect
	// or refused the request because of its own configuration.
	ErrGatewayMisconfigured = errors.New("payment: gateway misconfigured")
	// ErrGatewayUnavailable indicates the gateway could not be reached. Callers may
	// retry or pick another gateway.
	ErrGatewayUnavailable = errors.New("payment: gateway unavailable")
	// ErrPaymentOrderNotFound indicates the order does not exist for the tenant.
	ErrPaymentOrderNotFound = errors.New("payment: order not found")
	// ErrPaymentOrderSettled indicates the order already has a completed payment.
	ErrPaymentOrderSettled = errors.New("payment: order already paid")
	// ErrPaymentUnavailable indicates checkout records could not be read or written.
	ErrPaymentUnavailable = errors.New("payment: unavailable")
)

var (
	displayNamePolicy = bluemonday.StrictPolicy()
	angleBrackets     = strings.NewReplacer("<", "", ">", "")
)

// gatewayResolver abstracts payments.Registry for easier testing.
type gatewayResolver interface {
	Resolve(descriptor domain.GatewayDescriptor) (string, payments.Gateway, error)
}

// PaymentDispatcherDeps wires the payment dispatcher.
type PaymentDispatcherDeps struct {
	TenantConfigs repositories.TenantConfigRepository
	Orders        repositories.OrderRepository
	Attempts      repositories.PaymentAttemptRepository
	Gateways      gatewayResolver
	Events        PaymentEventPublisher
	Clock         func() time.Time
	IDGenerator   func() string
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type paymentDispatcher struct {
	configs  repositories.TenantConfigRepository
	orders   repositories.OrderRepository
	attempts repositories.PaymentAttemptRepository
	gateways gatewayResolver
	events   PaymentEventPublisher
	now      func() time.Time
	newID    func() string
	logger   func(ctx context.Context, event string, fields map[string]any)
}

var _ PaymentDispatcher = (*paymentDispatcher)(nil)

// NewPaymentDispatcher constructs a PaymentDispatcher. Events is optional.
func NewPaymentDispatcher(deps PaymentDispatcherDeps) (PaymentDispatcher, error) {
	if deps.TenantConfigs == nil {
		return nil, errors.New("payment dispatcher: tenant config repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("payment dispatcher: order repository is required")
	}
	if deps.Attempts == nil {
		return nil, errors.New("payment dispatcher: payment attempt repository is required")
	}
	if deps.Gateways == nil {
		return nil, errors.New("payment dispatcher: gateway registry is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &paymentDispatcher{
		configs:  deps.TenantConfigs,
		orders:   deps.Orders,
		attempts: deps.Attempts,
		gateways: deps.Gateways,
		events:   deps.Events,
		now: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// ListActiveGateways returns the tenant's gateways in configured order. The
// first entry is the default selection.
func (d *paymentDispatcher) ListActiveGateways(ctx context.Context, tenantID string) ([]GatewayDescriptor, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, ErrPaymentInvalidInput
	}
	cfg, err := d.configs.Get(ctx, tenantID)
	if err != nil {
		return nil, d.translate(ctx, "payment.tenant_lookup_failed", err, ErrPaymentInvalidInput)
	}
	if len(cfg.ActiveGateways) == 0 {
		return nil, ErrNoActiveGateway
	}
	out := make([]GatewayDescriptor, 0, len(cfg.ActiveGateways))
	for _, gw := range cfg.ActiveGateways {
		gw.DisplayName = sanitizeDisplayName(gw.DisplayName, gw.ID)
		out = append(out, gw)
	}
	return out, nil
}

// Initiate creates a redirect at the selected gateway and records a pending
// attempt. The customer leaves the site with the returned URL.
func (d *paymentDispatcher) Initiate(ctx context.Context, cmd InitiatePaymentCommand) (PaymentInitiation, error) {
	tenantID := strings.TrimSpace(cmd.TenantID)
	orderID := strings.TrimSpace(cmd.OrderID)
	if tenantID == "" || orderID == "" {
		return PaymentInitiation{}, ErrPaymentInvalidInput
	}
	returnURL, err := withOrderID(cmd.ReturnURL, orderID)
	if err != nil {
		return PaymentInitiation{}, err
	}
	cancelURL, err := withOrderID(cmd.CancelURL, orderID)
	if err != nil {
		return PaymentInitiation{}, err
	}

	gateways, err := d.ListActiveGateways(ctx, tenantID)
	if err != nil {
		return PaymentInitiation{}, err
	}
	descriptor, err := selectGateway(gateways, cmd.GatewayID)
	if err != nil {
		return PaymentInitiation{}, err
	}
	cfg, err := d.configs.Get(ctx, tenantID)
	if err != nil {
		return PaymentInitiation{}, d.translate(ctx, "payment.tenant_lookup_failed", err, ErrPaymentInvalidInput)
	}

	order, err := d.orders.FindByID(ctx, tenantID, orderID)
	if err != nil {
		return PaymentInitiation{}, d.translate(ctx, "payment.order_lookup_failed", err, ErrPaymentOrderNotFound)
	}
	if !order.Totals.Total.IsPositive() {
		return PaymentInitiation{}, ErrPaymentInvalidInput
	}
	latest, err := d.attempts.LatestForOrder(ctx, tenantID, orderID)
	switch {
	case err == nil:
		if latest.Status == domain.PaymentStatusCompleted {
			return PaymentInitiation{}, ErrPaymentOrderSettled
		}
	case repositories.IsNotFound(err):
	default:
		return PaymentInitiation{}, d.translate(ctx, "payment.attempt_lookup_failed", err, ErrPaymentUnavailable)
	}

	provider, gateway, err := d.gateways.Resolve(descriptor)
	if err != nil {
		d.logger(ctx, "payment.gateway_unregistered", map[string]any{
			"gatewayId": descriptor.ID,
			"provider":  descriptor.Provider,
			"error":     err.Error(),
		})
		return PaymentInitiation{}, ErrGatewayMisconfigured
	}

	attemptID := attemptIDPrefix + d.newID()
	currency := order.Currency
	if currency == "" {
		currency = cfg.Currency
	}
	redirect, err := gateway.CreateRedirect(ctx, payments.RedirectRequest{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		AttemptID:      attemptID,
		Amount:         order.Totals.Total,
		Currency:       currency,
		Precision:      cfg.Precision,
		CustomerID:     firstNonEmpty(cmd.CustomerID, order.CustomerID),
		ReturnURL:      returnURL,
		CancelURL:      cancelURL,
		IdempotencyKey: idempotencyKeyFor(cmd.IdempotencyKey, descriptor.ID, attemptID),
		Metadata: map[string]string{
			"tenant_id": tenantID,
			"gateway":   descriptor.ID,
		},
	})
	if err != nil {
		return PaymentInitiation{}, d.translateGatewayError(ctx, descriptor, provider, err)
	}
	if strings.TrimSpace(redirect.PaymentURL) == "" {
		d.logger(ctx, "payment.redirect_missing_url", map[string]any{
			"gatewayId": descriptor.ID,
			"orderId":   orderID,
		})
		return PaymentInitiation{}, ErrGatewayMisconfigured
	}

	now := d.now()
	attempt := domain.PaymentAttempt{
		ID:          attemptID,
		TenantID:    tenantID,
		OrderID:     order.ID,
		GatewayID:   descriptor.ID,
		Status:      domain.PaymentStatusPending,
		ExternalRef: redirect.ExternalRef,
		Amount:      order.Totals.Total,
		Currency:    currency,
		PaymentURL:  redirect.PaymentURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := d.attempts.Insert(ctx, attempt); err != nil {
		return PaymentInitiation{}, d.translate(ctx, "payment.attempt_insert_failed", err, ErrPaymentUnavailable)
	}

	d.publish(ctx, domain.PaymentEvent{
		Type:       domain.PaymentEventInitiated,
		TenantID:   tenantID,
		OrderID:    order.ID,
		AttemptID:  attemptID,
		GatewayID:  descriptor.ID,
		Status:     domain.PaymentStatusPending,
		Amount:     order.Totals.Total.String(),
		Currency:   currency,
		OccurredAt: now,
	})
	d.logger(ctx, "payment.initiated", map[string]any{
		"orderId":   order.ID,
		"attemptId": attemptID,
		"gatewayId": descriptor.ID,
		"provider":  provider,
	})

	return PaymentInitiation{
		PaymentURL: redirect.PaymentURL,
		AttemptID:  attemptID,
		GatewayID:  descriptor.ID,
		ExpiresAt:  redirect.ExpiresAt,
	}, nil
}

func (d *paymentDispatcher) publish(ctx context.Context, event domain.PaymentEvent) {
	if d.events == nil {
		return
	}
	if _, err := d.events.PublishPaymentEvent(ctx, event); err != nil {
		d.logger(ctx, "payment.event_publish_failed", map[string]any{
			"type":      event.Type,
			"attemptId": event.AttemptID,
			"error":     err.Error(),
		})
	}
}

func (d *paymentDispatcher) translateGatewayError(ctx context.Context, descriptor domain.GatewayDescriptor, provider string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	fields := map[string]any{
		"gatewayId": descriptor.ID,
		"provider":  provider,
		"error":     err.Error(),
	}
	if errors.Is(err, payments.ErrGatewayRejected) {
		d.logger(ctx, "payment.gateway_rejected", fields)
		return ErrGatewayMisconfigured
	}
	d.logger(ctx, "payment.gateway_failed", fields)
	return fmt.Errorf("%w: %s", ErrGatewayUnavailable, descriptor.ID)
}

func (d *paymentDispatcher) translate(ctx context.Context, event string, err, notFound error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case repositories.IsNotFound(err):
		return notFound
	}
	d.logger(ctx, event, map[string]any{"error": err.Error()})
	return ErrPaymentUnavailable
}

func selectGateway(gateways []GatewayDescriptor, gatewayID string) (GatewayDescriptor, error) {
	if len(gateways) == 0 {
		return GatewayDescriptor{}, ErrNoActiveGateway
	}
	gatewayID = strings.TrimSpace(gatewayID)
	if gatewayID == "" {
		return gateways[0], nil
	}
	for _, gw := range gateways {
		if strings.EqualFold(gw.ID, gatewayID) {
			return gw, nil
		}
	}
	return GatewayDescriptor{}, ErrPaymentInvalidInput
}

// withOrderID validates an absolute http(s) URL and sets its orderId query
// parameter.
func withOrderID(raw, orderID string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrPaymentInvalidInput
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return "", ErrPaymentInvalidInput
	}
	q := u.Query()
	q.Set("orderId", orderID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// sanitizeDisplayName returns plain text for the provider. Entities are
// decoded before the strict policy runs so encoded markup is stripped like
// literal markup, and stray angle brackets are dropped from the result.
func sanitizeDisplayName(name, fallback string) string {
	cleaned := displayNamePolicy.Sanitize(html.UnescapeString(name))
	cleaned = strings.TrimSpace(angleBrackets.Replace(html.UnescapeString(cleaned)))
	if cleaned == "" {
		return fallback
	}
	return cleaned
}

func idempotencyKeyFor(clientKey, gatewayID, attemptID string) string {
	if key := strings.TrimSpace(clientKey); key != "" {
		return "checkout-payment:" + gatewayID + ":" + key
	}
	return "checkout-payment:" + attemptID
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
