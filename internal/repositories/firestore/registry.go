// Package firestore implements the checkout repositories on Cloud Firestore.
//
// Layout:
//
//	tenants/{tenantId}                                  checkout config
//	tenants/{tenantId}/shippingZones/{zoneId}
//	tenants/{tenantId}/coupons/{CODE}
//	tenants/{tenantId}/coupons/{CODE}/customers/{customerId}
//	tenants/{tenantId}/coupons/{CODE}/redemptions/{orderId}
//	tenants/{tenantId}/variants/{variantId}
//	tenants/{tenantId}/orders/{orderId}
//	communes/{code}
//	paymentAttempts/{attemptId}
//
// Money and weight are stored as decimal strings.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"

	pfirestore "github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/firestore"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/repositories"
)

const (
	tenantsCollection     = "tenants"
	zonesCollection       = "shippingZones"
	couponsCollection     = "coupons"
	customersCollection   = "customers"
	redemptionsCollection = "redemptions"
	variantsCollection    = "variants"
	ordersCollection      = "orders"
	communesCollection    = "communes"
	attemptsCollection    = "paymentAttempts"
)

// Registry implements repositories.Registry on a shared Firestore provider.
type Registry struct {
	provider *pfirestore.Provider
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry wires every Firestore repository to provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry: provider is required")
	}
	return &Registry{provider: provider}, nil
}

// Close releases the Firestore client.
func (r *Registry) Close(context.Context) error {
	return r.provider.Close()
}

func (r *Registry) TenantConfigs() repositories.TenantConfigRepository {
	return &TenantConfigRepository{provider: r.provider}
}

func (r *Registry) ShippingZones() repositories.ShippingZoneRepository {
	return &ShippingZoneRepository{provider: r.provider}
}

func (r *Registry) Communes() repositories.CommuneRepository {
	return &CommuneRepository{provider: r.provider}
}

func (r *Registry) Coupons() repositories.CouponRepository {
	return &CouponRepository{provider: r.provider}
}

func (r *Registry) Catalog() repositories.CatalogRepository {
	return &CatalogRepository{provider: r.provider}
}

func (r *Registry) Orders() repositories.OrderRepository {
	return &OrderRepository{provider: r.provider}
}

func (r *Registry) PaymentAttempts() repositories.PaymentAttemptRepository {
	return &PaymentAttemptRepository{provider: r.provider}
}

func tenantDoc(client *firestore.Client, tenantID string) *firestore.DocumentRef {
	return client.Collection(tenantsCollection).Doc(strings.TrimSpace(tenantID))
}

func parseDecimal(field, value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode %s: %w", field, err)
	}
	return d, nil
}

func parseOptionalDecimal(field string, value *string) (*decimal.Decimal, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	d, err := parseDecimal(field, *value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func formatOptionalDecimal(value *decimal.Decimal) *string {
	if value == nil {
		return nil
	}
	s := value.String()
	return &s
}
