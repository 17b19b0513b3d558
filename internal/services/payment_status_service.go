package services

import (
	"context"
	"errors"
	"strings"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/repositories"
)

var (
	// ErrPaymentStatusInvalidInput indicates a missing tenant or order id.
	ErrPaymentStatusInvalidInput = errors.New("payment status: invalid input")
	// ErrPaymentStatusNotFound indicates the order does not exist for the tenant.
	ErrPaymentStatusNotFound = errors.New("payment status: order not found")
	// ErrPaymentStatusUnavailable indicates the status could not be read right now.
	ErrPaymentStatusUnavailable = errors.New("payment status: unavailable")
)

// PaymentStatusServiceDeps wires the payment status reader.
type PaymentStatusServiceDeps struct {
	Orders   repositories.OrderRepository
	Attempts repositories.PaymentAttemptRepository
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type paymentStatusService struct {
	orders   repositories.OrderRepository
	attempts repositories.PaymentAttemptRepository
	logger   func(ctx context.Context, event string, fields map[string]any)
}

var _ PaymentStatusReader = (*paymentStatusService)(nil)

// NewPaymentStatusService builds the read model behind the payment-status endpoint.
func NewPaymentStatusService(deps PaymentStatusServiceDeps) (PaymentStatusReader, error) {
	if deps.Orders == nil {
		return nil, errors.New("payment status service: order repository is required")
	}
	if deps.Attempts == nil {
		return nil, errors.New("payment status service: payment attempt repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &paymentStatusService{orders: deps.Orders, attempts: deps.Attempts, logger: logger}, nil
}

// ReadPaymentStatus reports the latest attempt status for an order. It never
// writes; an order without attempts reports PaymentStatusNone.
func (s *paymentStatusService) ReadPaymentStatus(ctx context.Context, tenantID, orderID string) (PaymentStatusView, error) {
	tenantID = strings.TrimSpace(tenantID)
	orderID = strings.TrimSpace(orderID)
	if tenantID == "" || orderID == "" {
		return PaymentStatusView{}, ErrPaymentStatusInvalidInput
	}

	order, err := s.orders.FindByID(ctx, tenantID, orderID)
	if err != nil {
		return PaymentStatusView{}, s.translate(ctx, orderID, err)
	}
	view := PaymentStatusView{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		PaymentStatus: domain.PaymentStatusNone,
		Amount:        order.Totals.Total,
		Currency:      order.Currency,
	}

	attempt, err := s.attempts.LatestForOrder(ctx, tenantID, orderID)
	switch {
	case err == nil:
		view.PaymentStatus = attempt.Status
		view.Gateway = attempt.GatewayID
		if !attempt.Amount.IsZero() {
			view.Amount = attempt.Amount
		}
	case repositories.IsNotFound(err):
	default:
		return PaymentStatusView{}, s.translate(ctx, orderID, err)
	}
	return view, nil
}

func (s *paymentStatusService) translate(ctx context.Context, orderID string, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case repositories.IsNotFound(err):
		return ErrPaymentStatusNotFound
	}
	s.logger(ctx, "payment_status.read_failed", map[string]any{
		"orderId": orderID,
		"error":   err.Error(),
	})
	return ErrPaymentStatusUnavailable
}
