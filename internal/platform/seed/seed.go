// Package seed loads YAML fixtures into the in-memory store used by the
// memory backend.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/repositories/memory"
)

// Source reads raw fixture bytes from a local path or bucket URL.
type Source interface {
	ReadAll(ctx context.Context, location string) ([]byte, error)
}

// Fixture is the decoded seed document.
type Fixture struct {
	Communes []communeFixture `yaml:"communes"`
	Tenants  []tenantFixture  `yaml:"tenants"`
}

type communeFixture struct {
	Code   string `yaml:"code"`
	Name   string `yaml:"name"`
	Region string `yaml:"region"`
}

type tenantFixture struct {
	ID               string           `yaml:"id"`
	Currency         string           `yaml:"currency"`
	Precision        int32            `yaml:"precision"`
	ShippingMode     string           `yaml:"shippingMode"`
	DefaultProvider  providerFixture  `yaml:"defaultProvider"`
	TaxRate          string           `yaml:"taxRate"`
	PricesIncludeTax bool             `yaml:"pricesIncludeTax"`
	Gateways         []gatewayFixture `yaml:"gateways"`
	Zones            []zoneFixture    `yaml:"zones"`
	Coupons          []couponFixture  `yaml:"coupons"`
	Variants         []variantFixture `yaml:"variants"`
}

type providerFixture struct {
	Carrier       string `yaml:"carrier"`
	Cost          string `yaml:"cost"`
	EstimatedDays int    `yaml:"estimatedDays"`
}

type gatewayFixture struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"displayName"`
	Sandbox     bool   `yaml:"sandbox"`
	Provider    string `yaml:"provider"`
}

type zoneFixture struct {
	ID                    string   `yaml:"id"`
	Name                  string   `yaml:"name"`
	Communes              []string `yaml:"communes"`
	BaseCost              string   `yaml:"baseCost"`
	CostPerKg             string   `yaml:"costPerKg"`
	FreeShippingThreshold *string  `yaml:"freeShippingThreshold"`
	EstimatedDays         int      `yaml:"estimatedDays"`
	AllowsStorePickup     bool     `yaml:"allowsStorePickup"`
	Inactive              bool     `yaml:"inactive"`
	Position              int      `yaml:"position"`
}

type couponFixture struct {
	Code               string    `yaml:"code"`
	Description        string    `yaml:"description"`
	DiscountType       string    `yaml:"discountType"`
	DiscountValue      string    `yaml:"discountValue"`
	MinimumPurchase    *string   `yaml:"minimumPurchase"`
	MaximumDiscount    *string   `yaml:"maximumDiscount"`
	MaxUses            *int      `yaml:"maxUses"`
	MaxUsesPerCustomer *int      `yaml:"maxUsesPerCustomer"`
	ValidFrom          time.Time `yaml:"validFrom"`
	ValidUntil         time.Time `yaml:"validUntil"`
	Inactive           bool      `yaml:"inactive"`
}

type variantFixture struct {
	ID             string  `yaml:"id"`
	ProductID      string  `yaml:"productId"`
	ProductTitle   string  `yaml:"productTitle"`
	Title          string  `yaml:"title"`
	Price          string  `yaml:"price"`
	CompareAtPrice *string `yaml:"compareAtPrice"`
	WeightKg       string  `yaml:"weightKg"`
	QuoteOnly      bool    `yaml:"quoteOnly"`
	Inactive       bool    `yaml:"inactive"`
}

var errEmptyFixture = errors.New("seed: fixture defines no tenants")

// Load reads the fixture at location and applies it to store.
func Load(ctx context.Context, source Source, location string, store *memory.Store) (Fixture, error) {
	if source == nil || store == nil {
		return Fixture{}, errors.New("seed: source and store are required")
	}
	data, err := source.ReadAll(ctx, location)
	if err != nil {
		return Fixture{}, err
	}
	fixture, err := Parse(data)
	if err != nil {
		return Fixture{}, err
	}
	if err := fixture.Apply(store); err != nil {
		return Fixture{}, err
	}
	return fixture, nil
}

// Parse decodes a YAML fixture. Unknown keys are rejected.
func Parse(data []byte) (Fixture, error) {
	var fixture Fixture
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fixture); err != nil {
		return Fixture{}, fmt.Errorf("seed: decode fixture: %w", err)
	}
	if len(fixture.Tenants) == 0 {
		return Fixture{}, errEmptyFixture
	}
	return fixture, nil
}

// Apply converts the fixture to domain records and stores them. Nothing is
// written when any record is invalid.
func (f Fixture) Apply(store *memory.Store) error {
	type tenantRecords struct {
		cfg      domain.TenantCheckoutConfig
		zones    []domain.ShippingZone
		coupons  []domain.Coupon
		products []domain.CatalogProduct
		variants []domain.CatalogVariant
	}

	records := make([]tenantRecords, 0, len(f.Tenants))
	for _, tf := range f.Tenants {
		cfg, err := tf.config()
		if err != nil {
			return err
		}
		rec := tenantRecords{cfg: cfg}
		for _, zf := range tf.Zones {
			zone, err := zf.zone()
			if err != nil {
				return fmt.Errorf("seed: tenant %s: %w", cfg.TenantID, err)
			}
			rec.zones = append(rec.zones, zone)
		}
		for _, cf := range tf.Coupons {
			coupon, err := cf.coupon()
			if err != nil {
				return fmt.Errorf("seed: tenant %s: %w", cfg.TenantID, err)
			}
			rec.coupons = append(rec.coupons, coupon)
		}
		for _, vf := range tf.Variants {
			product, variant, err := vf.variant()
			if err != nil {
				return fmt.Errorf("seed: tenant %s: %w", cfg.TenantID, err)
			}
			rec.products = append(rec.products, product)
			rec.variants = append(rec.variants, variant)
		}
		records = append(records, rec)
	}

	communes := make([]domain.Commune, 0, len(f.Communes))
	for _, c := range f.Communes {
		if strings.TrimSpace(c.Code) == "" || strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("seed: commune %q needs code and name", c.Code)
		}
		communes = append(communes, domain.Commune{Code: strings.TrimSpace(c.Code), Name: strings.TrimSpace(c.Name), Region: c.Region})
	}

	store.PutCommunes(communes)
	for _, rec := range records {
		store.PutTenantConfig(rec.cfg)
		store.PutZones(rec.cfg.TenantID, rec.zones)
		for _, coupon := range rec.coupons {
			store.PutCoupon(rec.cfg.TenantID, coupon)
		}
		for i := range rec.variants {
			store.PutVariant(rec.cfg.TenantID, rec.products[i], rec.variants[i])
		}
	}
	return nil
}

func (t tenantFixture) config() (domain.TenantCheckoutConfig, error) {
	id := strings.TrimSpace(t.ID)
	if id == "" {
		return domain.TenantCheckoutConfig{}, errors.New("seed: tenant id is required")
	}
	mode := domain.ShippingMode(strings.ToLower(strings.TrimSpace(t.ShippingMode)))
	switch mode {
	case "":
		mode = domain.ShippingModeZones
	case domain.ShippingModeZones, domain.ShippingModeProvider, domain.ShippingModeHybrid:
	default:
		return domain.TenantCheckoutConfig{}, fmt.Errorf("seed: tenant %s: unknown shipping mode %q", id, t.ShippingMode)
	}
	if t.Precision < 0 || t.Precision > domain.MaxPrecision {
		return domain.TenantCheckoutConfig{}, fmt.Errorf("seed: tenant %s: precision %d out of range", id, t.Precision)
	}
	taxRate, err := amount("taxRate", t.TaxRate, true)
	if err != nil {
		return domain.TenantCheckoutConfig{}, fmt.Errorf("seed: tenant %s: %w", id, err)
	}
	providerCost, err := amount("defaultProvider.cost", t.DefaultProvider.Cost, true)
	if err != nil {
		return domain.TenantCheckoutConfig{}, fmt.Errorf("seed: tenant %s: %w", id, err)
	}

	gateways := make([]domain.GatewayDescriptor, 0, len(t.Gateways))
	for _, g := range t.Gateways {
		if strings.TrimSpace(g.ID) == "" {
			return domain.TenantCheckoutConfig{}, fmt.Errorf("seed: tenant %s: gateway id is required", id)
		}
		gateways = append(gateways, domain.GatewayDescriptor{
			ID:          strings.TrimSpace(g.ID),
			DisplayName: g.DisplayName,
			Sandbox:     g.Sandbox,
			Provider:    strings.TrimSpace(g.Provider),
		})
	}

	return domain.TenantCheckoutConfig{
		TenantID:     id,
		Currency:     strings.ToUpper(strings.TrimSpace(t.Currency)),
		Precision:    t.Precision,
		ShippingMode: mode,
		DefaultProvider: domain.ShippingProvider{
			Carrier:       t.DefaultProvider.Carrier,
			Cost:          providerCost,
			EstimatedDays: t.DefaultProvider.EstimatedDays,
		},
		TaxRate:          taxRate,
		PricesIncludeTax: t.PricesIncludeTax,
		ActiveGateways:   gateways,
	}, nil
}

func (z zoneFixture) zone() (domain.ShippingZone, error) {
	if strings.TrimSpace(z.ID) == "" {
		return domain.ShippingZone{}, errors.New("zone id is required")
	}
	base, err := amount("zone "+z.ID+" baseCost", z.BaseCost, true)
	if err != nil {
		return domain.ShippingZone{}, err
	}
	perKg, err := amount("zone "+z.ID+" costPerKg", z.CostPerKg, true)
	if err != nil {
		return domain.ShippingZone{}, err
	}
	threshold, err := optionalAmount("zone "+z.ID+" freeShippingThreshold", z.FreeShippingThreshold)
	if err != nil {
		return domain.ShippingZone{}, err
	}
	return domain.ShippingZone{
		ID:                    strings.TrimSpace(z.ID),
		Name:                  z.Name,
		CommuneCodes:          append([]string(nil), z.Communes...),
		BaseCost:              base,
		CostPerKg:             perKg,
		FreeShippingThreshold: threshold,
		EstimatedDays:         z.EstimatedDays,
		AllowsStorePickup:     z.AllowsStorePickup,
		IsActive:              !z.Inactive,
		Position:              z.Position,
	}, nil
}

func (c couponFixture) coupon() (domain.Coupon, error) {
	code := domain.NormalizeCouponCode(c.Code)
	if code == "" {
		return domain.Coupon{}, errors.New("coupon code is required")
	}
	kind, ok := domain.ParseDiscountType(c.DiscountType)
	if !ok {
		return domain.Coupon{}, fmt.Errorf("coupon %s: unknown discount type %q", code, c.DiscountType)
	}
	value, err := amount("coupon "+code+" discountValue", c.DiscountValue, false)
	if err != nil {
		return domain.Coupon{}, err
	}
	minimum, err := optionalAmount("coupon "+code+" minimumPurchase", c.MinimumPurchase)
	if err != nil {
		return domain.Coupon{}, err
	}
	maximum, err := optionalAmount("coupon "+code+" maximumDiscount", c.MaximumDiscount)
	if err != nil {
		return domain.Coupon{}, err
	}
	if c.ValidFrom.IsZero() || c.ValidUntil.IsZero() || !c.ValidUntil.After(c.ValidFrom) {
		return domain.Coupon{}, fmt.Errorf("coupon %s: validUntil must be after validFrom", code)
	}
	return domain.Coupon{
		Code:                  code,
		Description:           c.Description,
		DiscountType:          kind,
		DiscountValue:         value,
		MinimumPurchaseAmount: minimum,
		MaximumDiscountAmount: maximum,
		MaxUses:               c.MaxUses,
		MaxUsesPerCustomer:    c.MaxUsesPerCustomer,
		ValidFrom:             c.ValidFrom.UTC(),
		ValidUntil:            c.ValidUntil.UTC(),
		IsActive:              !c.Inactive,
	}, nil
}

func (v variantFixture) variant() (domain.CatalogProduct, domain.CatalogVariant, error) {
	id := strings.TrimSpace(v.ID)
	if id == "" {
		return domain.CatalogProduct{}, domain.CatalogVariant{}, errors.New("variant id is required")
	}
	price, err := amount("variant "+id+" price", v.Price, v.QuoteOnly)
	if err != nil {
		return domain.CatalogProduct{}, domain.CatalogVariant{}, err
	}
	compareAt, err := optionalAmount("variant "+id+" compareAtPrice", v.CompareAtPrice)
	if err != nil {
		return domain.CatalogProduct{}, domain.CatalogVariant{}, err
	}
	weight, err := amount("variant "+id+" weightKg", v.WeightKg, true)
	if err != nil {
		return domain.CatalogProduct{}, domain.CatalogVariant{}, err
	}
	productID := strings.TrimSpace(v.ProductID)
	if productID == "" {
		productID = id
	}
	return domain.CatalogProduct{ID: productID, Title: v.ProductTitle},
		domain.CatalogVariant{
			ID:             id,
			ProductID:      productID,
			Title:          v.Title,
			Price:          price,
			CompareAtPrice: compareAt,
			WeightKg:       weight,
			IsQuoteOnly:    v.QuoteOnly,
			IsActive:       !v.Inactive,
		}, nil
}

// amount parses a non-negative decimal. Blank values are zero when allowBlank is set.
func amount(field, value string, allowBlank bool) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		if allowBlank {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("%s is required", field)
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", field, err)
	}
	if parsed.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must not be negative", field)
	}
	return parsed, nil
}

func optionalAmount(field string, value *string) (*decimal.Decimal, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	parsed, err := amount(field, *value, false)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
