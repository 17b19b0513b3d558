package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/repositories/memory"
)

const testTenant = "tenant-1"

var testNow = time.Date(2024, time.May, 20, 15, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type recordedEvent struct {
	name   string
	fields map[string]any
}

type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *eventRecorder) log(_ context.Context, event string, fields map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{name: event, fields: fields})
}

func (r *eventRecorder) find(name string) (recordedEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.name == name {
			return e, true
		}
	}
	return recordedEvent{}, false
}

func testTenantConfig() domain.TenantCheckoutConfig {
	return domain.TenantCheckoutConfig{
		TenantID:     testTenant,
		Currency:     "CLP",
		Precision:    0,
		ShippingMode: domain.ShippingModeZones,
		DefaultProvider: domain.ShippingProvider{
			Carrier:       "Starken",
			Cost:          decimal.NewFromInt(5990),
			EstimatedDays: 4,
		},
		TaxRate: decimal.NewFromInt(19),
		ActiveGateways: []domain.GatewayDescriptor{
			{ID: "stripe", DisplayName: "Tarjeta <b>Stripe</b>", Provider: "stripe"},
			{ID: "webpay", DisplayName: "Webpay Plus", Provider: "hosted", Sandbox: true},
		},
	}
}

// newSeededStore returns a memory store with one tenant, a metro zone priced
// 3000 + 500/kg and a small catalog.
func newSeededStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	store.PutTenantConfig(testTenantConfig())
	store.PutCommunes(testCommunes())
	store.PutZones(testTenant, []domain.ShippingZone{metroZone(t)})

	compareAt := dec(t, "45000")
	store.PutVariant(testTenant,
		domain.CatalogProduct{ID: "prod-chair", Title: "Silla Eames"},
		domain.CatalogVariant{ID: "var-chair-black", Title: "Silla Eames Negra", Price: dec(t, "40000"), CompareAtPrice: &compareAt, WeightKg: dec(t, "0.75"), IsActive: true},
	)
	store.PutVariant(testTenant,
		domain.CatalogProduct{ID: "prod-lamp", Title: "Lámpara"},
		domain.CatalogVariant{ID: "var-lamp", Title: "Lámpara de pie", Price: dec(t, "15000"), WeightKg: dec(t, "2"), IsActive: true},
	)
	store.PutVariant(testTenant,
		domain.CatalogProduct{ID: "prod-sofa", Title: "Sofá a medida"},
		domain.CatalogVariant{ID: "var-sofa-custom", Title: "Sofá a medida", Price: dec(t, "999999"), WeightKg: dec(t, "40"), IsQuoteOnly: true, IsActive: true},
	)
	store.PutVariant(testTenant,
		domain.CatalogProduct{ID: "prod-old", Title: "Descontinuado"},
		domain.CatalogVariant{ID: "var-old", Price: dec(t, "100"), IsActive: false},
	)
	store.PutCoupon(testTenant, domain.Coupon{
		Code:          "diez",
		DiscountType:  domain.DiscountTypePercentage,
		DiscountValue: decimal.NewFromInt(10),
		ValidFrom:     testNow.Add(-24 * time.Hour),
		ValidUntil:    testNow.Add(24 * time.Hour),
		IsActive:      true,
	})
	return store
}
