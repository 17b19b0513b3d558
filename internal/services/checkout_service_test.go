package services

import (
	"context"
	"errors"
	"testing"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/repositories/memory"
)

type checkoutFixture struct {
	store    *memory.Store
	sessions *CartSessions
	carts    CartService
	checkout CheckoutService
	events   *eventRecorder
}

func newCheckoutFixture(t *testing.T) checkoutFixture {
	t.Helper()
	store := newSeededStore(t)
	zone := metroZone(t)
	zone.FreeShippingThreshold = nil
	store.PutZones(testTenant, []domain.ShippingZone{zone})

	events := &eventRecorder{}
	sessions := NewCartSessions(0, fixedClock)
	carts, err := NewCartService(CartServiceDeps{Sessions: sessions, Catalog: store.Catalog()})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}
	coupons, err := NewCouponService(CouponServiceDeps{Coupons: store.Coupons(), TenantConfigs: store.TenantConfigs(), Clock: fixedClock})
	if err != nil {
		t.Fatalf("NewCouponService: %v", err)
	}
	shipping, err := NewShippingService(ShippingServiceDeps{
		TenantConfigs: store.TenantConfigs(),
		Zones:         store.ShippingZones(),
		Communes:      store.Communes(),
		Clock:         fixedClock,
	})
	if err != nil {
		t.Fatalf("NewShippingService: %v", err)
	}
	checkout, err := NewCheckoutService(CheckoutServiceDeps{
		Sessions:      sessions,
		TenantConfigs: store.TenantConfigs(),
		Coupons:       coupons,
		Shipping:      shipping,
		Orders:        store.Orders(),
		Clock:         fixedClock,
		IDGenerator:   func() string { return "01HZX3K9Q4ABCDEFGH" },
		Logger:        events.log,
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}
	return checkoutFixture{store: store, sessions: sessions, carts: carts, checkout: checkout, events: events}
}

func (f checkoutFixture) add(t *testing.T, session, variant string, qty int) CartSnapshot {
	t.Helper()
	snap, err := f.carts.AddLine(context.Background(), AddCartLineCommand{
		CartRef:    CartRef{TenantID: testTenant, SessionID: session},
		VariantRef: variant,
		Quantity:   qty,
	})
	if err != nil {
		t.Fatalf("AddLine(%s): %v", variant, err)
	}
	return snap
}

func TestCheckoutService_QuoteTotals(t *testing.T) {
	f := newCheckoutFixture(t)
	f.add(t, "s1", "var-chair-black", 2)
	f.add(t, "s1", "var-sofa-custom", 1)

	quote, err := f.checkout.QuoteTotals(context.Background(), QuoteTotalsCommand{
		CartRef:    CartRef{TenantID: testTenant, SessionID: "s1"},
		CouponCode: "diez",
		Commune:    "Ñuñoa",
	})
	if err != nil {
		t.Fatalf("QuoteTotals: %v", err)
	}

	want := map[string]string{
		"subtotal": "80000",
		"discount": "8000",
		"shipping": "3750",
		"tax":      "13680",
		"total":    "89430",
	}
	got := map[string]string{
		"subtotal": quote.Totals.Subtotal.String(),
		"discount": quote.Totals.DiscountAmount.String(),
		"shipping": quote.Totals.ShippingCost.String(),
		"tax":      quote.Totals.TaxAmount.String(),
		"total":    quote.Totals.Total.String(),
	}
	for key, value := range want {
		if got[key] != value {
			t.Fatalf("expected %s %s got %s", key, value, got[key])
		}
	}
	if quote.CouponCode != "DIEZ" || quote.Currency != "CLP" {
		t.Fatalf("unexpected quote metadata %+v", quote)
	}
	if len(quote.Cart.QuoteLines) != 1 {
		t.Fatalf("expected quote-only line reported separately")
	}
	if quote.SelectedOption.Method != domain.ShippingMethodZone {
		t.Fatalf("expected zone shipping got %s", quote.SelectedOption.Method)
	}
}

func TestCheckoutService_QuoteTotalsErrors(t *testing.T) {
	f := newCheckoutFixture(t)
	f.add(t, "s1", "var-lamp", 1)
	f.add(t, "quote-only", "var-sofa-custom", 1)

	cases := []struct {
		name string
		cmd  QuoteTotalsCommand
		want error
	}{
		{"missing session", QuoteTotalsCommand{CartRef: CartRef{TenantID: testTenant}}, ErrCheckoutInvalidInput},
		{"unknown session", QuoteTotalsCommand{CartRef: CartRef{TenantID: testTenant, SessionID: "ghost"}, Commune: "13120"}, ErrCheckoutEmptyCart},
		{"quote lines only", QuoteTotalsCommand{CartRef: CartRef{TenantID: testTenant, SessionID: "quote-only"}, Commune: "13120"}, ErrCheckoutEmptyCart},
		{"missing commune", QuoteTotalsCommand{CartRef: CartRef{TenantID: testTenant, SessionID: "s1"}}, ErrCheckoutInvalidInput},
		{"unknown coupon", QuoteTotalsCommand{CartRef: CartRef{TenantID: testTenant, SessionID: "s1"}, Commune: "13120", CouponCode: "NOPE"}, ErrCouponNotFound},
		{"no zone", QuoteTotalsCommand{CartRef: CartRef{TenantID: testTenant, SessionID: "s1"}, Commune: "Valparaíso"}, ErrNoZoneForAddress},
		{"unknown shipping method", QuoteTotalsCommand{CartRef: CartRef{TenantID: testTenant, SessionID: "s1"}, Commune: "13120", ShippingMethod: domain.ShippingMethodPickup}, ErrShippingInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.checkout.QuoteTotals(context.Background(), tc.cmd); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v got %v", tc.want, err)
			}
		})
	}
}

func TestCheckoutService_CommitOrder(t *testing.T) {
	f := newCheckoutFixture(t)
	f.add(t, "s1", "var-chair-black", 1)
	f.add(t, "s1", "var-sofa-custom", 1)

	ref := CartRef{TenantID: testTenant, SessionID: "s1"}
	quote, err := f.checkout.QuoteTotals(context.Background(), QuoteTotalsCommand{CartRef: ref, Commune: "13120"})
	if err != nil {
		t.Fatalf("QuoteTotals: %v", err)
	}

	order, err := f.checkout.CommitOrder(context.Background(), CommitOrderCommand{
		QuoteTotalsCommand: QuoteTotalsCommand{CartRef: ref, Commune: "13120", CustomerID: "cust-9"},
		ExpectedGeneration: quote.Generation,
	})
	if err != nil {
		t.Fatalf("CommitOrder: %v", err)
	}
	if order.ID != "ord_01HZX3K9Q4ABCDEFGH" {
		t.Fatalf("unexpected order id %s", order.ID)
	}
	if order.OrderNumber != "CO-2024-ABCDEFGH" {
		t.Fatalf("unexpected order number %s", order.OrderNumber)
	}
	if !order.Totals.Total.Equal(quote.Totals.Total) {
		t.Fatalf("order total %s differs from quote %s", order.Totals.Total, quote.Totals.Total)
	}
	if len(order.Lines) != 1 || len(order.QuoteLines) != 1 {
		t.Fatalf("unexpected order lines %+v", order)
	}

	stored, err := f.store.Orders().FindByID(context.Background(), testTenant, order.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if stored.CustomerID != "cust-9" {
		t.Fatalf("unexpected stored order %+v", stored)
	}

	snap, err := f.carts.GetCart(context.Background(), ref)
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if !snap.IsEmpty() || len(snap.QuoteLines) != 0 {
		t.Fatalf("expected cart cleared after commit got %+v", snap)
	}
	event, ok := f.events.find("checkout.order_committed")
	if !ok || event.fields["cartCleared"] != true {
		t.Fatalf("expected checkout.order_committed event got %+v", f.events.events)
	}
}

func TestCheckoutService_CommitOrderRejectsStaleGeneration(t *testing.T) {
	f := newCheckoutFixture(t)
	f.add(t, "s1", "var-chair-black", 1)
	ref := CartRef{TenantID: testTenant, SessionID: "s1"}

	quote, err := f.checkout.QuoteTotals(context.Background(), QuoteTotalsCommand{CartRef: ref, Commune: "13120"})
	if err != nil {
		t.Fatalf("QuoteTotals: %v", err)
	}
	f.add(t, "s1", "var-lamp", 1)

	_, err = f.checkout.CommitOrder(context.Background(), CommitOrderCommand{
		QuoteTotalsCommand: QuoteTotalsCommand{CartRef: ref, Commune: "13120"},
		ExpectedGeneration: quote.Generation,
	})
	if !errors.Is(err, ErrCheckoutCartChanged) {
		t.Fatalf("expected ErrCheckoutCartChanged got %v", err)
	}
	if _, err := f.store.Orders().FindByID(context.Background(), testTenant, "ord_01HZX3K9Q4ABCDEFGH"); err == nil {
		t.Fatalf("order persisted despite stale generation")
	}
}

func TestCheckoutService_ProviderModeNeedsNoCommune(t *testing.T) {
	f := newCheckoutFixture(t)
	cfg := testTenantConfig()
	cfg.ShippingMode = domain.ShippingModeProvider
	cfg.PricesIncludeTax = true
	f.store.PutTenantConfig(cfg)
	f.add(t, "s1", "var-lamp", 1)

	quote, err := f.checkout.QuoteTotals(context.Background(), QuoteTotalsCommand{CartRef: CartRef{TenantID: testTenant, SessionID: "s1"}})
	if err != nil {
		t.Fatalf("QuoteTotals: %v", err)
	}
	if !quote.Totals.ShippingCost.Equal(dec(t, "5990")) {
		t.Fatalf("expected provider shipping 5990 got %s", quote.Totals.ShippingCost)
	}
	if !quote.Totals.Total.Equal(dec(t, "20990")) {
		t.Fatalf("expected tax-inclusive total 20990 got %s", quote.Totals.Total)
	}
	if !quote.Totals.TaxIncluded {
		t.Fatalf("expected tax-inclusive totals")
	}
}

func TestCheckoutService_UnknownTenant(t *testing.T) {
	f := newCheckoutFixture(t)
	if _, err := f.sessions.Get("ghost", "s1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	cart, _ := f.sessions.Lookup("ghost", "s1")
	_ = cart.AddLine(domain.CatalogProduct{ID: "p"}, domain.CatalogVariant{ID: "v", Price: dec(t, "10"), IsActive: true}, 1)

	_, err := f.checkout.QuoteTotals(context.Background(), QuoteTotalsCommand{CartRef: CartRef{TenantID: "ghost", SessionID: "s1"}, Commune: "13120"})
	if !errors.Is(err, ErrCheckoutTenantNotFound) {
		t.Fatalf("expected ErrCheckoutTenantNotFound got %v", err)
	}
}
