package services

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
)

func testCommunes() []domain.Commune {
	return []domain.Commune{
		{Code: "13101", Name: "Santiago", Region: "RM"},
		{Code: "13120", Name: "Ñuñoa", Region: "RM"},
		{Code: "13123", Name: "Providencia", Region: "RM"},
		{Code: "05101", Name: "Valparaíso", Region: "V"},
	}
}

func zonesConfig(mode domain.ShippingMode) domain.TenantCheckoutConfig {
	return domain.TenantCheckoutConfig{
		TenantID:     "tenant-1",
		Currency:     "CLP",
		ShippingMode: mode,
		DefaultProvider: domain.ShippingProvider{
			Carrier:       "Starken",
			Cost:          decimal.NewFromInt(5990),
			EstimatedDays: 4,
		},
		TaxRate: decimal.NewFromInt(19),
	}
}

func metroZone(t *testing.T) domain.ShippingZone {
	t.Helper()
	return domain.ShippingZone{
		ID:                    "zone-metro",
		Name:                  "Metropolitana",
		CommuneCodes:          []string{"13120", "Providencia"},
		BaseCost:              dec(t, "3000"),
		CostPerKg:             dec(t, "500"),
		FreeShippingThreshold: decPtr(t, "50000"),
		EstimatedDays:         2,
		IsActive:              true,
		Position:              1,
	}
}

func TestResolveShipping_ZoneCostAndFreeThreshold(t *testing.T) {
	index := BuildZoneIndex([]domain.ShippingZone{metroZone(t)}, NewCommuneDirectory(testCommunes()))
	cfg := zonesConfig(domain.ShippingModeZones)

	quote, err := ResolveShipping("13120", dec(t, "2"), dec(t, "40000"), cfg, index)
	if err != nil {
		t.Fatalf("ResolveShipping: %v", err)
	}
	if !quote.Cost.Equal(dec(t, "4000")) {
		t.Fatalf("expected cost 4000 got %s", quote.Cost)
	}
	if quote.Method != domain.ShippingMethodZone || quote.ZoneID != "zone-metro" {
		t.Fatalf("unexpected quote %+v", quote)
	}

	quote, err = ResolveShipping("13120", dec(t, "2"), dec(t, "60000"), cfg, index)
	if err != nil {
		t.Fatalf("ResolveShipping: %v", err)
	}
	if !quote.Cost.IsZero() {
		t.Fatalf("expected free shipping above threshold got %s", quote.Cost)
	}

	quote, err = ResolveShipping("13120", dec(t, "2"), dec(t, "50000"), cfg, index)
	if err != nil {
		t.Fatalf("ResolveShipping: %v", err)
	}
	if !quote.Cost.IsZero() {
		t.Fatalf("expected free shipping at threshold got %s", quote.Cost)
	}
}

func TestResolveShipping_MatchesByCodeOrAccentInsensitiveName(t *testing.T) {
	index := BuildZoneIndex([]domain.ShippingZone{metroZone(t)}, NewCommuneDirectory(testCommunes()))
	cfg := zonesConfig(domain.ShippingModeZones)

	for _, input := range []string{"13120", "Ñuñoa", "  nunoa ", "NUNOA", "providencia", "13123"} {
		quote, err := ResolveShipping(input, decimal.Zero, decimal.Zero, cfg, index)
		if err != nil {
			t.Fatalf("ResolveShipping(%q): %v", input, err)
		}
		if quote.ZoneID != "zone-metro" {
			t.Fatalf("ResolveShipping(%q) matched %q", input, quote.ZoneID)
		}
	}
}

func TestResolveShipping_ModeFallbacks(t *testing.T) {
	index := BuildZoneIndex([]domain.ShippingZone{metroZone(t)}, NewCommuneDirectory(testCommunes()))

	_, err := ResolveShipping("Valparaíso", dec(t, "1"), dec(t, "1000"), zonesConfig(domain.ShippingModeZones), index)
	if !errors.Is(err, ErrNoZoneForAddress) {
		t.Fatalf("expected ErrNoZoneForAddress got %v", err)
	}

	quote, err := ResolveShipping("Valparaíso", dec(t, "1"), dec(t, "1000"), zonesConfig(domain.ShippingModeHybrid), index)
	if err != nil {
		t.Fatalf("hybrid ResolveShipping: %v", err)
	}
	if quote.Method != domain.ShippingMethodProvider || quote.Carrier != "Starken" || !quote.Cost.Equal(dec(t, "5990")) {
		t.Fatalf("expected provider fallback got %+v", quote)
	}

	quote, err = ResolveShipping("13120", dec(t, "1"), dec(t, "1000"), zonesConfig(domain.ShippingModeProvider), nil)
	if err != nil {
		t.Fatalf("provider ResolveShipping: %v", err)
	}
	if quote.Method != domain.ShippingMethodProvider {
		t.Fatalf("expected provider quote got %+v", quote)
	}
}

func TestResolveShipping_InvalidInput(t *testing.T) {
	index := BuildZoneIndex(nil, nil)
	if _, err := ResolveShipping("13120", dec(t, "-1"), decimal.Zero, zonesConfig(domain.ShippingModeZones), index); !errors.Is(err, ErrShippingInvalidInput) {
		t.Fatalf("expected ErrShippingInvalidInput for negative weight got %v", err)
	}
	if _, err := ResolveShipping("13120", decimal.Zero, decimal.Zero, zonesConfig("teleport"), index); !errors.Is(err, ErrShippingInvalidInput) {
		t.Fatalf("expected ErrShippingInvalidInput for unknown mode got %v", err)
	}
}

func TestBuildZoneIndex_PositionOrderAndConflicts(t *testing.T) {
	first := metroZone(t)
	first.ID = "zone-b"
	first.Position = 2
	second := metroZone(t)
	second.ID = "zone-a"
	second.Position = 1
	second.BaseCost = dec(t, "2500")
	inactive := metroZone(t)
	inactive.ID = "zone-off"
	inactive.Position = 0
	inactive.IsActive = false

	index := BuildZoneIndex([]domain.ShippingZone{first, inactive, second}, NewCommuneDirectory(testCommunes()))
	if index.Len() != 2 {
		t.Fatalf("expected 2 active zones got %d", index.Len())
	}
	zone, conflicts, ok := index.Match("Ñuñoa")
	if !ok {
		t.Fatalf("expected a match")
	}
	if zone.ID != "zone-a" {
		t.Fatalf("expected lowest position zone-a got %s", zone.ID)
	}
	if !reflect.DeepEqual(conflicts, []string{"zone-b"}) {
		t.Fatalf("unexpected conflicts %v", conflicts)
	}

	quote, err := ResolveShipping("nunoa", dec(t, "1"), dec(t, "1000"), zonesConfig(domain.ShippingModeZones), index)
	if err != nil {
		t.Fatalf("ResolveShipping: %v", err)
	}
	if !reflect.DeepEqual(quote.ConflictingZones, []string{"zone-b"}) {
		t.Fatalf("expected conflicts on quote got %v", quote.ConflictingZones)
	}
	if !quote.Cost.Equal(dec(t, "3000")) {
		t.Fatalf("expected cost 3000 got %s", quote.Cost)
	}
}

func TestBuildZoneIndex_UnorderedLoadWithLegacyZone(t *testing.T) {
	positioned := metroZone(t)
	positioned.ID = "zone-metro"
	positioned.CommuneCodes = []string{"13101"}
	positioned.Position = 3
	legacy := metroZone(t)
	legacy.ID = "zone-legacy"
	legacy.CommuneCodes = []string{"Valparaiso"}
	legacy.Position = 0
	legacy.BaseCost = dec(t, "4000")
	legacy.CostPerKg = decimal.Zero

	index := BuildZoneIndex([]domain.ShippingZone{positioned, legacy}, NewCommuneDirectory(testCommunes()))
	if index.Len() != 2 {
		t.Fatalf("expected 2 zones got %d", index.Len())
	}
	quote, err := ResolveShipping("05101", dec(t, "1"), dec(t, "1000"), zonesConfig(domain.ShippingModeZones), index)
	if err != nil {
		t.Fatalf("ResolveShipping: %v", err)
	}
	if quote.ZoneID != "zone-legacy" || !quote.Cost.Equal(dec(t, "4000")) {
		t.Fatalf("expected legacy zone quote got %s cost %s", quote.ZoneID, quote.Cost)
	}
}

func TestResolveShipping_StorePickupOption(t *testing.T) {
	zone := metroZone(t)
	zone.AllowsStorePickup = true
	index := BuildZoneIndex([]domain.ShippingZone{zone}, NewCommuneDirectory(testCommunes()))

	quote, err := ResolveShipping("13120", dec(t, "3"), dec(t, "10000"), zonesConfig(domain.ShippingModeZones), index)
	if err != nil {
		t.Fatalf("ResolveShipping: %v", err)
	}
	if len(quote.Options) != 2 {
		t.Fatalf("expected zone and pickup options got %+v", quote.Options)
	}

	pickup, err := SelectShippingOption(quote, domain.ShippingMethodPickup)
	if err != nil {
		t.Fatalf("SelectShippingOption: %v", err)
	}
	if !pickup.Cost.IsZero() {
		t.Fatalf("expected free pickup got %s", pickup.Cost)
	}

	primary, err := SelectShippingOption(quote, "")
	if err != nil {
		t.Fatalf("SelectShippingOption: %v", err)
	}
	if !primary.Cost.Equal(dec(t, "4500")) {
		t.Fatalf("expected zone cost 4500 got %s", primary.Cost)
	}

	if _, err := SelectShippingOption(quote, domain.ShippingMethodProvider); !errors.Is(err, ErrShippingInvalidInput) {
		t.Fatalf("expected ErrShippingInvalidInput got %v", err)
	}
}

func TestCommuneDirectory_UnknownTextFolds(t *testing.T) {
	dir := NewCommuneDirectory(testCommunes())
	if got := dir.Canonical("  Ñuñoa "); got != "13120" {
		t.Fatalf("expected 13120 got %q", got)
	}
	if got := dir.Canonical("Las Condes"); got != "las condes" {
		t.Fatalf("expected folded name got %q", got)
	}
	var empty *CommuneDirectory
	if got := empty.Canonical("Valparaíso"); got != "valparaiso" {
		t.Fatalf("expected folded name from nil directory got %q", got)
	}
}
