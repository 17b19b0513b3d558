package services

import (
	"context"
	"errors"
	"strings"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/repositories"
)

var (
	// ErrCartVariantNotFound indicates the catalog has no sellable variant for the reference.
	ErrCartVariantNotFound = errors.New("cart: variant not found")
	// ErrCartUnavailable indicates the catalog collaborator could not be reached.
	ErrCartUnavailable = errors.New("cart: unavailable")
)

// CartServiceDeps wires the collaborators of the session cart service.
type CartServiceDeps struct {
	Sessions *CartSessions
	Catalog  repositories.CatalogRepository
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type cartService struct {
	sessions *CartSessions
	catalog  repositories.CatalogRepository
	logger   func(ctx context.Context, event string, fields map[string]any)
}

var _ CartService = (*cartService)(nil)

// NewCartService constructs a CartService over session-scoped aggregators.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Sessions == nil {
		return nil, errors.New("cart service: sessions are required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("cart service: catalog repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &cartService{sessions: deps.Sessions, catalog: deps.Catalog, logger: logger}, nil
}

func (s *cartService) GetCart(_ context.Context, ref CartRef) (CartSnapshot, error) {
	cart, err := s.sessions.Get(ref.TenantID, ref.SessionID)
	if err != nil {
		return CartSnapshot{}, err
	}
	return cart.Snapshot(), nil
}

func (s *cartService) AddLine(ctx context.Context, cmd AddCartLineCommand) (CartSnapshot, error) {
	variantRef := strings.TrimSpace(cmd.VariantRef)
	if variantRef == "" || cmd.Quantity < 1 {
		return CartSnapshot{}, ErrCartInvalidInput
	}
	cart, err := s.sessions.Get(cmd.TenantID, cmd.SessionID)
	if err != nil {
		return CartSnapshot{}, err
	}

	product, variant, err := s.catalog.FindVariant(ctx, strings.TrimSpace(cmd.TenantID), variantRef)
	if err != nil {
		switch {
		case repositories.IsNotFound(err):
			return CartSnapshot{}, ErrCartVariantNotFound
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return CartSnapshot{}, err
		default:
			s.logger(ctx, "cart.catalog_lookup_failed", map[string]any{
				"variantRef": variantRef,
				"error":      err.Error(),
			})
			return CartSnapshot{}, ErrCartUnavailable
		}
	}
	if !variant.IsActive {
		return CartSnapshot{}, ErrCartVariantNotFound
	}

	if err := cart.AddLine(product, variant, cmd.Quantity); err != nil {
		return CartSnapshot{}, err
	}
	snap := cart.Snapshot()
	s.logger(ctx, "cart.line_added", map[string]any{
		"variantRef": variantRef,
		"quantity":   cmd.Quantity,
		"quoteOnly":  variant.IsQuoteOnly,
		"generation": snap.Generation,
	})
	return snap, nil
}

func (s *cartService) SetQuantity(_ context.Context, cmd SetCartQuantityCommand) (CartSnapshot, error) {
	if strings.TrimSpace(cmd.VariantRef) == "" {
		return CartSnapshot{}, ErrCartInvalidInput
	}
	cart, err := s.sessions.Get(cmd.TenantID, cmd.SessionID)
	if err != nil {
		return CartSnapshot{}, err
	}
	if err := cart.SetQuantity(cmd.VariantRef, cmd.Quantity); err != nil {
		return CartSnapshot{}, err
	}
	return cart.Snapshot(), nil
}

func (s *cartService) RemoveLine(_ context.Context, cmd RemoveCartLineCommand) (CartSnapshot, error) {
	cart, err := s.sessions.Get(cmd.TenantID, cmd.SessionID)
	if err != nil {
		return CartSnapshot{}, err
	}
	cart.RemoveLine(cmd.VariantRef)
	return cart.Snapshot(), nil
}
