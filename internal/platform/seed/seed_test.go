package seed

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/storage"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/repositories/memory"
)

func TestLoadAppliesFixture(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	fixture, err := Load(ctx, storage.NewReader(nil), "testdata/checkout.yaml", store)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(fixture.Tenants) != 1 {
		t.Fatalf("expected one tenant, got %d", len(fixture.Tenants))
	}

	cfg, err := store.TenantConfigs().Get(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("tenant config: %v", err)
	}
	if cfg.Currency != "CLP" || cfg.ShippingMode != domain.ShippingModeHybrid {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if !cfg.TaxRate.Equal(decimal.NewFromInt(19)) || !cfg.DefaultProvider.Cost.Equal(decimal.NewFromInt(5990)) {
		t.Fatalf("unexpected amounts tax=%s provider=%s", cfg.TaxRate, cfg.DefaultProvider.Cost)
	}
	if len(cfg.ActiveGateways) != 1 || cfg.ActiveGateways[0].Provider != "hosted" {
		t.Fatalf("unexpected gateways %+v", cfg.ActiveGateways)
	}

	zones, err := store.ShippingZones().ListByTenant(ctx, "tenant-1")
	if err != nil || len(zones) != 1 {
		t.Fatalf("zones: %v %+v", err, zones)
	}
	if zones[0].FreeShippingThreshold == nil || !zones[0].FreeShippingThreshold.Equal(decimal.NewFromInt(50000)) || !zones[0].IsActive {
		t.Fatalf("unexpected zone %+v", zones[0])
	}

	coupon, err := store.Coupons().FindByCode(ctx, "tenant-1", "DIEZ")
	if err != nil {
		t.Fatalf("coupon: %v", err)
	}
	if coupon.MaxUses == nil || *coupon.MaxUses != 5 || coupon.DiscountType != domain.DiscountTypePercentage {
		t.Fatalf("unexpected coupon %+v", coupon)
	}

	product, variant, err := store.Catalog().FindVariant(ctx, "tenant-1", "var-chair")
	if err != nil {
		t.Fatalf("variant: %v", err)
	}
	if product.Title != "Chair" || !variant.WeightKg.Equal(decimal.RequireFromString("0.75")) || variant.CompareAtPrice == nil {
		t.Fatalf("unexpected catalog entry %+v %+v", product, variant)
	}

	_, sofa, err := store.Catalog().FindVariant(ctx, "tenant-1", "var-sofa")
	if err != nil {
		t.Fatalf("quote-only variant: %v", err)
	}
	if !sofa.IsQuoteOnly || sofa.ProductID != "var-sofa" || !sofa.Price.IsZero() {
		t.Fatalf("unexpected quote-only variant %+v", sofa)
	}

	communes, _ := store.Communes().List(ctx)
	if len(communes) != 2 {
		t.Fatalf("expected 2 communes, got %d", len(communes))
	}
}

func TestParseRejectsInvalidFixtures(t *testing.T) {
	cases := map[string]string{
		"no tenants":     "communes: []\n",
		"unknown key":    "tenants:\n  - id: t\n    colour: red\n",
		"bad mode":       "tenants:\n  - id: t\n    shippingMode: drone\n",
		"negative price": "tenants:\n  - id: t\n    variants:\n      - {id: v, price: \"-1\"}\n",
		"bad decimal":    "tenants:\n  - id: t\n    taxRate: nineteen\n",
		"coupon window":  "tenants:\n  - id: t\n    coupons:\n      - {code: x, discountType: percentage, discountValue: \"5\", validFrom: 2025-01-01T00:00:00Z, validUntil: 2024-01-01T00:00:00Z}\n",
		"coupon kind":    "tenants:\n  - id: t\n    coupons:\n      - {code: x, discountType: bogo, discountValue: \"5\"}\n",
		"missing price":  "tenants:\n  - id: t\n    variants:\n      - {id: v}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			fixture, err := Parse([]byte(doc))
			if err == nil {
				err = fixture.Apply(memory.New())
			}
			if err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestApplyWritesNothingOnError(t *testing.T) {
	doc := strings.Join([]string{
		"tenants:",
		"  - id: good",
		"    taxRate: \"19\"",
		"  - id: bad",
		"    zones:",
		"      - {id: z, baseCost: \"-5\"}",
	}, "\n")
	fixture, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	store := memory.New()
	if err := fixture.Apply(store); err == nil {
		t.Fatal("expected error")
	}
	if _, err := store.TenantConfigs().Get(context.Background(), "good"); err == nil {
		t.Fatal("expected no tenant to be stored")
	}
}

type failingSource struct{ err error }

func (s failingSource) ReadAll(context.Context, string) ([]byte, error) { return nil, s.err }

func TestLoadPropagatesReadErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := Load(context.Background(), failingSource{err: boom}, "gs://fixtures/seed.yaml", memory.New())
	if !errors.Is(err, boom) {
		t.Fatalf("expected read error, got %v", err)
	}
}
