package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/repositories"
)

const defaultZoneCacheTTL = 5 * time.Minute

var (
	// ErrShippingTenantNotFound indicates no checkout config exists for the tenant.
	ErrShippingTenantNotFound = errors.New("shipping: tenant not found")
	// ErrShippingUnavailable indicates zones or the commune directory could not be loaded.
	ErrShippingUnavailable = errors.New("shipping: unavailable")
)

// ShippingServiceDeps wires the shipping service.
type ShippingServiceDeps struct {
	TenantConfigs repositories.TenantConfigRepository
	Zones         repositories.ShippingZoneRepository
	Communes      repositories.CommuneRepository
	CacheTTL      time.Duration
	Clock         func() time.Time
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type shippingService struct {
	configs  repositories.TenantConfigRepository
	zones    repositories.ShippingZoneRepository
	communes repositories.CommuneRepository
	cache    *zoneIndexCache
	logger   func(ctx context.Context, event string, fields map[string]any)

	dirMu     sync.Mutex
	directory *CommuneDirectory
	dirLoaded time.Time
}

var _ ShippingService = (*shippingService)(nil)

// NewShippingService constructs a ShippingService caching one zone index per tenant.
func NewShippingService(deps ShippingServiceDeps) (ShippingService, error) {
	if deps.TenantConfigs == nil {
		return nil, errors.New("shipping service: tenant config repository is required")
	}
	if deps.Zones == nil {
		return nil, errors.New("shipping service: zone repository is required")
	}
	if deps.Communes == nil {
		return nil, errors.New("shipping service: commune repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = defaultZoneCacheTTL
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &shippingService{
		configs:  deps.TenantConfigs,
		zones:    deps.Zones,
		communes: deps.Communes,
		cache:    newZoneIndexCache(ttl, func() time.Time { return clock().UTC() }),
		logger:   logger,
	}, nil
}

func (s *shippingService) QuoteShipping(ctx context.Context, cmd ShippingQuoteCommand) (ShippingQuote, error) {
	tenantID := strings.TrimSpace(cmd.TenantID)
	if tenantID == "" {
		return ShippingQuote{}, ErrShippingInvalidInput
	}
	cfg, err := s.configs.Get(ctx, tenantID)
	if err != nil {
		return ShippingQuote{}, s.translate(ctx, tenantID, err)
	}

	var index *ZoneIndex
	if cfg.ShippingMode != domain.ShippingModeProvider {
		if strings.TrimSpace(cmd.Commune) == "" {
			return ShippingQuote{}, ErrShippingInvalidInput
		}
		index, err = s.ZoneIndex(ctx, tenantID)
		if err != nil {
			return ShippingQuote{}, err
		}
	}

	quote, err := ResolveShipping(cmd.Commune, cmd.WeightKg, cmd.Subtotal, cfg, index)
	if err != nil {
		return ShippingQuote{}, err
	}
	logZoneConflict(ctx, s.logger, tenantID, cmd.Commune, quote)
	return quote, nil
}

// ZoneIndex returns the cached index for tenantID, rebuilding it from the
// repositories once the cache entry expires.
func (s *shippingService) ZoneIndex(ctx context.Context, tenantID string) (*ZoneIndex, error) {
	if index, ok := s.cache.Get(tenantID); ok {
		return index, nil
	}
	dir, err := s.communeDirectory(ctx)
	if err != nil {
		return nil, err
	}
	zones, err := s.zones.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, s.translate(ctx, tenantID, err)
	}
	index := BuildZoneIndex(zones, dir)
	s.cache.Put(tenantID, index)
	s.logger(ctx, "shipping.zone_index_built", map[string]any{
		"tenantId": tenantID,
		"zones":    index.Len(),
	})
	return index, nil
}

func (s *shippingService) communeDirectory(ctx context.Context) (*CommuneDirectory, error) {
	s.dirMu.Lock()
	defer s.dirMu.Unlock()

	now := s.cache.now()
	if s.directory != nil && now.Sub(s.dirLoaded) < s.cache.ttl {
		return s.directory, nil
	}
	communes, err := s.communes.List(ctx)
	if err != nil {
		if s.directory != nil && !errors.Is(err, context.Canceled) {
			s.logger(ctx, "shipping.commune_refresh_failed", map[string]any{"error": err.Error()})
			return s.directory, nil
		}
		return nil, s.translate(ctx, "", err)
	}
	s.directory = NewCommuneDirectory(communes)
	s.dirLoaded = now
	return s.directory, nil
}

func (s *shippingService) translate(ctx context.Context, tenantID string, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case repositories.IsNotFound(err):
		return ErrShippingTenantNotFound
	}
	s.logger(ctx, "shipping.load_failed", map[string]any{
		"tenantId": tenantID,
		"error":    err.Error(),
	})
	return ErrShippingUnavailable
}

func logZoneConflict(ctx context.Context, logger func(context.Context, string, map[string]any), tenantID, commune string, quote ShippingQuote) {
	if len(quote.ConflictingZones) == 0 {
		return
	}
	logger(ctx, "shipping.zone_conflict", map[string]any{
		"tenantId":         tenantID,
		"commune":          commune,
		"selectedZone":     quote.ZoneID,
		"conflictingZones": quote.ConflictingZones,
	})
}

type zoneIndexCache struct {
	ttl time.Duration
	now func() time.Time
	mu  sync.RWMutex
	m   map[string]zoneIndexEntry
}

type zoneIndexEntry struct {
	index   *ZoneIndex
	expires time.Time
}

func newZoneIndexCache(ttl time.Duration, now func() time.Time) *zoneIndexCache {
	return &zoneIndexCache{
		ttl: ttl,
		now: now,
		m:   make(map[string]zoneIndexEntry),
	}
}

func (c *zoneIndexCache) Get(tenantID string) (*ZoneIndex, bool) {
	c.mu.RLock()
	entry, ok := c.m[tenantID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expires) {
		c.mu.Lock()
		delete(c.m, tenantID)
		c.mu.Unlock()
		return nil, false
	}
	return entry.index, true
}

func (c *zoneIndexCache) Put(tenantID string, index *ZoneIndex) {
	c.mu.Lock()
	c.m[tenantID] = zoneIndexEntry{index: index, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}
