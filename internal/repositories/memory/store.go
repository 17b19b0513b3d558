// Package memory keeps checkout records in process. It backs local runs seeded
// from fixtures and the service tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/repositories"
)

// Store holds every repository's records behind one lock.
type Store struct {
	mu sync.RWMutex

	tenants  map[string]domain.TenantCheckoutConfig
	zones    map[string][]domain.ShippingZone
	communes []domain.Commune
	coupons  map[string]*couponRecord
	variants map[string]catalogEntry
	orders   map[string]domain.Order
	attempts map[string]domain.PaymentAttempt
}

type catalogEntry struct {
	product domain.CatalogProduct
	variant domain.CatalogVariant
}

var _ repositories.Registry = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		tenants:  make(map[string]domain.TenantCheckoutConfig),
		zones:    make(map[string][]domain.ShippingZone),
		coupons:  make(map[string]*couponRecord),
		variants: make(map[string]catalogEntry),
		orders:   make(map[string]domain.Order),
		attempts: make(map[string]domain.PaymentAttempt),
	}
}

func (s *Store) Close(context.Context) error { return nil }

func (s *Store) TenantConfigs() repositories.TenantConfigRepository     { return tenantConfigRepo{s} }
func (s *Store) ShippingZones() repositories.ShippingZoneRepository     { return zoneRepo{s} }
func (s *Store) Communes() repositories.CommuneRepository               { return communeRepo{s} }
func (s *Store) Coupons() repositories.CouponRepository                 { return couponRepo{s} }
func (s *Store) Catalog() repositories.CatalogRepository                { return catalogRepo{s} }
func (s *Store) Orders() repositories.OrderRepository                   { return orderRepo{s} }
func (s *Store) PaymentAttempts() repositories.PaymentAttemptRepository { return attemptRepo{s} }

// PutTenantConfig stores cfg, replacing any previous config for the tenant.
func (s *Store) PutTenantConfig(cfg domain.TenantCheckoutConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg.ActiveGateways = append([]domain.GatewayDescriptor(nil), cfg.ActiveGateways...)
	s.tenants[cfg.TenantID] = cfg
}

// PutZones replaces a tenant's shipping zones.
func (s *Store) PutZones(tenantID string, zones []domain.ShippingZone) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones[tenantID] = append([]domain.ShippingZone(nil), zones...)
}

// PutCommunes replaces the commune directory.
func (s *Store) PutCommunes(communes []domain.Commune) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.communes = append([]domain.Commune(nil), communes...)
}

// PutVariant registers a sellable variant for a tenant.
func (s *Store) PutVariant(tenantID string, product domain.CatalogProduct, variant domain.CatalogVariant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if variant.ProductID == "" {
		variant.ProductID = product.ID
	}
	s.variants[scopedKey(tenantID, variant.ID)] = catalogEntry{product: product, variant: variant}
}

type tenantConfigRepo struct{ s *Store }

func (r tenantConfigRepo) Get(_ context.Context, tenantID string) (domain.TenantCheckoutConfig, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	cfg, ok := r.s.tenants[strings.TrimSpace(tenantID)]
	if !ok {
		return domain.TenantCheckoutConfig{}, repositories.NotFound("tenantConfigs.get")
	}
	cfg.ActiveGateways = append([]domain.GatewayDescriptor(nil), cfg.ActiveGateways...)
	return cfg, nil
}

type zoneRepo struct{ s *Store }

func (r zoneRepo) ListByTenant(_ context.Context, tenantID string) ([]domain.ShippingZone, error) {
	r.s.mu.RLock()
	zones := append([]domain.ShippingZone(nil), r.s.zones[strings.TrimSpace(tenantID)]...)
	r.s.mu.RUnlock()
	sort.SliceStable(zones, func(i, j int) bool { return zones[i].Position < zones[j].Position })
	return zones, nil
}

type communeRepo struct{ s *Store }

func (r communeRepo) List(context.Context) ([]domain.Commune, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]domain.Commune(nil), r.s.communes...), nil
}

type catalogRepo struct{ s *Store }

func (r catalogRepo) FindVariant(_ context.Context, tenantID, variantRef string) (domain.CatalogProduct, domain.CatalogVariant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	entry, ok := r.s.variants[scopedKey(tenantID, variantRef)]
	if !ok {
		return domain.CatalogProduct{}, domain.CatalogVariant{}, repositories.NotFound("catalog.findVariant")
	}
	return entry.product, entry.variant, nil
}

func scopedKey(tenantID, id string) string {
	return strings.TrimSpace(tenantID) + "/" + strings.TrimSpace(id)
}

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
