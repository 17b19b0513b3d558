package services

import (
	"errors"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/textutil"
)

var (
	// ErrNoZoneForAddress means zones-only shipping has no zone for the commune.
	ErrNoZoneForAddress = errors.New("shipping: no zone for address")
	// ErrShippingInvalidInput reports a malformed shipping request or config.
	ErrShippingInvalidInput = errors.New("shipping: invalid input")
)

// CommuneDirectory maps commune codes and names to one canonical key.
type CommuneDirectory struct {
	byCode map[string]string
	byName map[string]string
}

// NewCommuneDirectory indexes communes by folded code and folded name.
func NewCommuneDirectory(communes []domain.Commune) *CommuneDirectory {
	dir := &CommuneDirectory{
		byCode: make(map[string]string, len(communes)),
		byName: make(map[string]string, len(communes)),
	}
	for _, c := range communes {
		code := strings.TrimSpace(c.Code)
		if code == "" {
			continue
		}
		dir.byCode[textutil.FoldKey(code)] = code
		if name := textutil.FoldKey(c.Name); name != "" {
			if _, taken := dir.byName[name]; !taken {
				dir.byName[name] = code
			}
		}
	}
	return dir
}

// Canonical returns the commune code for a known code or name, and the folded
// text for anything the directory does not know.
func (d *CommuneDirectory) Canonical(codeOrName string) string {
	folded := textutil.FoldKey(codeOrName)
	if folded == "" {
		return ""
	}
	if d != nil {
		if code, ok := d.byCode[folded]; ok {
			return code
		}
		if code, ok := d.byName[folded]; ok {
			return code
		}
	}
	return folded
}

// ZoneIndex answers commune lookups over one load of a tenant's zones.
type ZoneIndex struct {
	zones []domain.ShippingZone
	keys  map[string][]int
	dir   *CommuneDirectory
}

// BuildZoneIndex keeps active zones ordered by position, with ties kept in
// load order, and maps every member code or name to its canonical key.
func BuildZoneIndex(zones []domain.ShippingZone, dir *CommuneDirectory) *ZoneIndex {
	active := make([]domain.ShippingZone, 0, len(zones))
	for _, z := range zones {
		if z.IsActive {
			active = append(active, z)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Position < active[j].Position })

	idx := &ZoneIndex{zones: active, keys: make(map[string][]int), dir: dir}
	for i, z := range active {
		seen := map[string]struct{}{}
		for _, member := range z.CommuneCodes {
			key := dir.Canonical(member)
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			idx.keys[key] = append(idx.keys[key], i)
		}
	}
	return idx
}

// Len reports the number of active zones.
func (x *ZoneIndex) Len() int {
	if x == nil {
		return 0
	}
	return len(x.zones)
}

// Match returns the first zone containing the commune and the IDs of any
// other zones that also contain it.
func (x *ZoneIndex) Match(codeOrName string) (domain.ShippingZone, []string, bool) {
	if x == nil {
		return domain.ShippingZone{}, nil, false
	}
	hits := x.keys[x.dir.Canonical(codeOrName)]
	if len(hits) == 0 {
		return domain.ShippingZone{}, nil, false
	}
	var conflicts []string
	for _, i := range hits[1:] {
		conflicts = append(conflicts, x.zones[i].ID)
	}
	return x.zones[hits[0]], conflicts, true
}

// ResolveShipping prices delivery of a cart to a commune under the tenant's
// shipping mode.
func ResolveShipping(communeOrCode string, totalWeightKg, subtotalAfterDiscount decimal.Decimal, cfg domain.TenantCheckoutConfig, zones *ZoneIndex) (domain.ShippingQuote, error) {
	if totalWeightKg.IsNegative() || subtotalAfterDiscount.IsNegative() {
		return domain.ShippingQuote{}, ErrShippingInvalidInput
	}

	switch cfg.ShippingMode {
	case domain.ShippingModeProvider:
		return providerQuote(cfg), nil
	case domain.ShippingModeZones, domain.ShippingModeHybrid:
	default:
		return domain.ShippingQuote{}, ErrShippingInvalidInput
	}

	zone, conflicts, ok := zones.Match(communeOrCode)
	if !ok {
		if cfg.ShippingMode == domain.ShippingModeHybrid {
			return providerQuote(cfg), nil
		}
		return domain.ShippingQuote{}, ErrNoZoneForAddress
	}

	cost := zone.BaseCost.Add(zone.CostPerKg.Mul(totalWeightKg))
	if zone.FreeShippingThreshold != nil && subtotalAfterDiscount.GreaterThanOrEqual(*zone.FreeShippingThreshold) {
		cost = decimal.Zero
	}
	cost = domain.RoundMoney(cost, cfg.Precision)

	quote := domain.ShippingQuote{
		Cost:             cost,
		Method:           domain.ShippingMethodZone,
		ZoneID:           zone.ID,
		EstimatedDays:    zone.EstimatedDays,
		ConflictingZones: conflicts,
		Options: []domain.ShippingOption{{
			Method:        domain.ShippingMethodZone,
			ZoneID:        zone.ID,
			Cost:          cost,
			EstimatedDays: zone.EstimatedDays,
		}},
	}
	if zone.AllowsStorePickup {
		quote.Options = append(quote.Options, domain.ShippingOption{
			Method: domain.ShippingMethodPickup,
			ZoneID: zone.ID,
			Cost:   decimal.Zero,
		})
	}
	return quote, nil
}

func providerQuote(cfg domain.TenantCheckoutConfig) domain.ShippingQuote {
	cost := domain.RoundMoney(cfg.DefaultProvider.Cost, cfg.Precision)
	return domain.ShippingQuote{
		Cost:          cost,
		Method:        domain.ShippingMethodProvider,
		Carrier:       cfg.DefaultProvider.Carrier,
		EstimatedDays: cfg.DefaultProvider.EstimatedDays,
		Options: []domain.ShippingOption{{
			Method:        domain.ShippingMethodProvider,
			Carrier:       cfg.DefaultProvider.Carrier,
			Cost:          cost,
			EstimatedDays: cfg.DefaultProvider.EstimatedDays,
		}},
	}
}

// SelectShippingOption picks the option matching method from a quote. An
// empty method keeps the quote's primary option.
func SelectShippingOption(quote domain.ShippingQuote, method domain.ShippingMethod) (domain.ShippingOption, error) {
	if method == "" {
		method = quote.Method
	}
	for _, opt := range quote.Options {
		if opt.Method == method {
			return opt, nil
		}
	}
	return domain.ShippingOption{}, ErrShippingInvalidInput
}
