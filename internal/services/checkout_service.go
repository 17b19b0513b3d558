package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/repositories"
)

const orderIDPrefix = "ord_"

var (
	// ErrCheckoutInvalidInput indicates the caller supplied invalid input parameters.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutEmptyCart indicates the cart holds no purchasable lines.
	ErrCheckoutEmptyCart = errors.New("checkout: cart has no purchasable lines")
	// ErrCheckoutCartChanged indicates the cart moved to another generation while pricing.
	ErrCheckoutCartChanged = errors.New("checkout: cart changed")
	// ErrCheckoutTenantNotFound indicates no checkout config exists for the tenant.
	ErrCheckoutTenantNotFound = errors.New("checkout: tenant not found")
	// ErrCheckoutUnavailable indicates checkout dependencies are currently unavailable.
	ErrCheckoutUnavailable = errors.New("checkout: unavailable")
)

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Sessions      *CartSessions
	TenantConfigs repositories.TenantConfigRepository
	Coupons       CouponService
	Shipping      ShippingService
	Orders        repositories.OrderRepository
	Clock         func() time.Time
	IDGenerator   func() string
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	sessions *CartSessions
	configs  repositories.TenantConfigRepository
	coupons  CouponService
	shipping ShippingService
	orders   repositories.OrderRepository
	now      func() time.Time
	newID    func() string
	logger   func(ctx context.Context, event string, fields map[string]any)
}

var _ CheckoutService = (*checkoutService)(nil)

// NewCheckoutService constructs a CheckoutService validating required dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Sessions == nil {
		return nil, errors.New("checkout service: cart sessions are required")
	}
	if deps.TenantConfigs == nil {
		return nil, errors.New("checkout service: tenant config repository is required")
	}
	if deps.Coupons == nil {
		return nil, errors.New("checkout service: coupon service is required")
	}
	if deps.Shipping == nil {
		return nil, errors.New("checkout service: shipping service is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("checkout service: order repository is required")
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

	return &checkoutService{
		sessions: deps.Sessions,
		configs:  deps.TenantConfigs,
		coupons:  deps.Coupons,
		shipping: deps.Shipping,
		orders:   deps.Orders,
		now: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// QuoteTotals prices the session cart. Every figure is derived from a single
// snapshot taken before any collaborator is consulted.
func (s *checkoutService) QuoteTotals(ctx context.Context, cmd QuoteTotalsCommand) (CheckoutQuote, error) {
	_, quote, err := s.quote(ctx, cmd)
	return quote, err
}

// CommitOrder prices the cart and persists the order for order processing.
// The commit is refused when the cart generation no longer matches the one
// that was priced.
func (s *checkoutService) CommitOrder(ctx context.Context, cmd CommitOrderCommand) (Order, error) {
	cart, quote, err := s.quote(ctx, cmd.QuoteTotalsCommand)
	if err != nil {
		return Order{}, err
	}
	if cmd.ExpectedGeneration != 0 && cmd.ExpectedGeneration != quote.Generation {
		return Order{}, ErrCheckoutCartChanged
	}
	if cart.Generation() != quote.Generation {
		return Order{}, ErrCheckoutCartChanged
	}

	now := s.now()
	id := s.newID()
	order := Order{
		ID:             orderIDPrefix + id,
		TenantID:       strings.TrimSpace(cmd.TenantID),
		OrderNumber:    orderNumber(now, id),
		CustomerID:     strings.TrimSpace(cmd.CustomerID),
		Currency:       quote.Currency,
		Totals:         quote.Totals,
		CouponCode:     quote.CouponCode,
		Commune:        strings.TrimSpace(cmd.Commune),
		ShippingMethod: quote.SelectedOption.Method,
		Lines:          quote.Cart.PurchaseLines,
		QuoteLines:     quote.Cart.QuoteLines,
		CartGeneration: quote.Generation,
		CreatedAt:      now,
	}
	if err := s.orders.Insert(ctx, order); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Order{}, err
		}
		s.logger(ctx, "checkout.order_insert_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
		return Order{}, ErrCheckoutUnavailable
	}

	cleared := cart.ClearAt(quote.Generation)
	s.logger(ctx, "checkout.order_committed", map[string]any{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"total":       order.Totals.Total.String(),
		"currency":    order.Currency,
		"generation":  order.CartGeneration,
		"cartCleared": cleared,
	})
	return order, nil
}

func (s *checkoutService) quote(ctx context.Context, cmd QuoteTotalsCommand) (*CartAggregator, CheckoutQuote, error) {
	tenantID := strings.TrimSpace(cmd.TenantID)
	if tenantID == "" || strings.TrimSpace(cmd.SessionID) == "" {
		return nil, CheckoutQuote{}, ErrCheckoutInvalidInput
	}
	cart, ok := s.sessions.Lookup(tenantID, cmd.SessionID)
	if !ok {
		return nil, CheckoutQuote{}, ErrCheckoutEmptyCart
	}
	snap := cart.Snapshot()
	if snap.IsEmpty() {
		return nil, CheckoutQuote{}, ErrCheckoutEmptyCart
	}
	subtotal := snap.Subtotal()
	couponCode := domain.NormalizeCouponCode(cmd.CouponCode)
	commune := strings.TrimSpace(cmd.Commune)

	var (
		cfg       domain.TenantCheckoutConfig
		discount  decimal.Decimal
		index     *ZoneIndex
		indexErr  error
		appliedAs string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cfg, err = s.configs.Get(gctx, tenantID)
		if err != nil {
			return s.translateConfigError(gctx, tenantID, err)
		}
		return nil
	})
	if couponCode != "" {
		g.Go(func() error {
			applied, err := s.coupons.ApplyCoupon(gctx, ApplyCouponCommand{
				TenantID:     tenantID,
				Code:         couponCode,
				CartSubtotal: subtotal,
				CustomerID:   cmd.CustomerID,
			})
			if err != nil {
				return err
			}
			discount = applied.DiscountAmount
			appliedAs = applied.Code
			return nil
		})
	}
	if commune != "" {
		g.Go(func() error {
			index, indexErr = s.shipping.ZoneIndex(gctx, tenantID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, CheckoutQuote{}, err
	}

	if cfg.ShippingMode != domain.ShippingModeProvider {
		if commune == "" {
			return nil, CheckoutQuote{}, ErrCheckoutInvalidInput
		}
		if indexErr != nil {
			return nil, CheckoutQuote{}, indexErr
		}
	}

	discount = clampDiscount(discount, subtotal)
	shippingQuote, err := ResolveShipping(commune, snap.TotalWeightKg(), subtotal.Sub(discount), cfg, index)
	if err != nil {
		return nil, CheckoutQuote{}, err
	}
	logZoneConflict(ctx, s.logger, tenantID, commune, shippingQuote)

	option, err := SelectShippingOption(shippingQuote, cmd.ShippingMethod)
	if err != nil {
		return nil, CheckoutQuote{}, err
	}

	totals, err := ComputeTotals(TotalsInput{
		Subtotal:         subtotal,
		DiscountAmount:   discount,
		ShippingCost:     option.Cost,
		TaxRate:          cfg.TaxRate,
		PricesIncludeTax: cfg.PricesIncludeTax,
		Precision:        cfg.Precision,
	})
	if err != nil {
		return nil, CheckoutQuote{}, fmt.Errorf("%w: %v", ErrCheckoutInvalidInput, err)
	}

	return cart, CheckoutQuote{
		Generation:     snap.Generation,
		Currency:       cfg.Currency,
		Cart:           snap,
		Totals:         totals,
		Shipping:       shippingQuote,
		SelectedOption: option,
		CouponCode:     appliedAs,
	}, nil
}

func (s *checkoutService) translateConfigError(ctx context.Context, tenantID string, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case repositories.IsNotFound(err):
		return ErrCheckoutTenantNotFound
	}
	s.logger(ctx, "checkout.tenant_config_failed", map[string]any{
		"tenantId": tenantID,
		"error":    err.Error(),
	})
	return ErrCheckoutUnavailable
}

func orderNumber(now time.Time, id string) string {
	suffix := id
	if len(suffix) > 8 {
		suffix = suffix[len(suffix)-8:]
	}
	return fmt.Sprintf("CO-%04d-%s", now.Year(), suffix)
}
