package firestore

import (
	"context"
	"strings"

	"cloud.google.com/go/firestore"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
	pfirestore "github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/firestore"
)

type tenantConfigDocument struct {
	Currency         string            `firestore:"currency"`
	Precision        int32             `firestore:"precision"`
	ShippingMode     string            `firestore:"shippingMode"`
	DefaultProvider  providerDocument  `firestore:"defaultProvider"`
	TaxRate          string            `firestore:"taxRate"`
	PricesIncludeTax bool              `firestore:"pricesIncludeTax"`
	ActiveGateways   []gatewayDocument `firestore:"activeGateways"`
}

type providerDocument struct {
	Carrier       string `firestore:"carrier"`
	Cost          string `firestore:"cost"`
	EstimatedDays int    `firestore:"estimatedDays"`
}

type gatewayDocument struct {
	ID          string `firestore:"id"`
	DisplayName string `firestore:"displayName"`
	Sandbox     bool   `firestore:"sandbox"`
	Provider    string `firestore:"provider"`
}

type zoneDocument struct {
	Name                  string   `firestore:"name"`
	CommuneCodes          []string `firestore:"communeCodes"`
	BaseCost              string   `firestore:"baseCost"`
	CostPerKg             string   `firestore:"costPerKg"`
	FreeShippingThreshold *string  `firestore:"freeShippingThreshold,omitempty"`
	EstimatedDays         int      `firestore:"estimatedDays"`
	AllowsStorePickup     bool     `firestore:"allowsStorePickup"`
	IsActive              bool     `firestore:"isActive"`
	Position              int      `firestore:"position"`
}

type communeDocument struct {
	Name   string `firestore:"name"`
	Region string `firestore:"region"`
}

// TenantConfigRepository reads tenants/{tenantId}.
type TenantConfigRepository struct {
	provider *pfirestore.Provider
}

func (r *TenantConfigRepository) Get(ctx context.Context, tenantID string) (domain.TenantCheckoutConfig, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.TenantCheckoutConfig{}, err
	}
	doc, err := pfirestore.GetDocument(ctx, tenantDoc(client, tenantID), pfirestore.StructDecoder[tenantConfigDocument]())
	if err != nil {
		return domain.TenantCheckoutConfig{}, pfirestore.WrapError("tenantConfigs.get", err)
	}

	taxRate, err := parseDecimal("taxRate", doc.TaxRate)
	if err != nil {
		return domain.TenantCheckoutConfig{}, err
	}
	providerCost, err := parseDecimal("defaultProvider.cost", doc.DefaultProvider.Cost)
	if err != nil {
		return domain.TenantCheckoutConfig{}, err
	}
	cfg := domain.TenantCheckoutConfig{
		TenantID:     strings.TrimSpace(tenantID),
		Currency:     doc.Currency,
		Precision:    doc.Precision,
		ShippingMode: domain.ShippingMode(strings.ToLower(strings.TrimSpace(doc.ShippingMode))),
		DefaultProvider: domain.ShippingProvider{
			Carrier:       doc.DefaultProvider.Carrier,
			Cost:          providerCost,
			EstimatedDays: doc.DefaultProvider.EstimatedDays,
		},
		TaxRate:          taxRate,
		PricesIncludeTax: doc.PricesIncludeTax,
	}
	for _, gw := range doc.ActiveGateways {
		cfg.ActiveGateways = append(cfg.ActiveGateways, domain.GatewayDescriptor{
			ID:          gw.ID,
			DisplayName: gw.DisplayName,
			Sandbox:     gw.Sandbox,
			Provider:    gw.Provider,
		})
	}
	return cfg, nil
}

// ShippingZoneRepository reads tenants/{tenantId}/shippingZones.
type ShippingZoneRepository struct {
	provider *pfirestore.Provider
}

// ListByTenant returns every zone document. The query is unordered because
// Firestore omits documents lacking the ordered field; ZoneIndex orders zones
// by position itself.
func (r *ShippingZoneRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.ShippingZone, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	query := tenantDoc(client, tenantID).Collection(zonesCollection).Query
	return pfirestore.QueryDocuments(ctx, "shippingZones.list", query, decodeZone)
}

func decodeZone(snap *firestore.DocumentSnapshot) (domain.ShippingZone, error) {
	var doc zoneDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.ShippingZone{}, err
	}
	base, err := parseDecimal("baseCost", doc.BaseCost)
	if err != nil {
		return domain.ShippingZone{}, err
	}
	perKg, err := parseDecimal("costPerKg", doc.CostPerKg)
	if err != nil {
		return domain.ShippingZone{}, err
	}
	threshold, err := parseOptionalDecimal("freeShippingThreshold", doc.FreeShippingThreshold)
	if err != nil {
		return domain.ShippingZone{}, err
	}
	return domain.ShippingZone{
		ID:                    snap.Ref.ID,
		Name:                  doc.Name,
		CommuneCodes:          doc.CommuneCodes,
		BaseCost:              base,
		CostPerKg:             perKg,
		FreeShippingThreshold: threshold,
		EstimatedDays:         doc.EstimatedDays,
		AllowsStorePickup:     doc.AllowsStorePickup,
		IsActive:              doc.IsActive,
		Position:              doc.Position,
	}, nil
}

// CommuneRepository reads the communes collection.
type CommuneRepository struct {
	provider *pfirestore.Provider
}

func (r *CommuneRepository) List(ctx context.Context) ([]domain.Commune, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return pfirestore.QueryDocuments(ctx, "communes.list", client.Collection(communesCollection).Query, func(snap *firestore.DocumentSnapshot) (domain.Commune, error) {
		var doc communeDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.Commune{}, err
		}
		return domain.Commune{Code: snap.Ref.ID, Name: doc.Name, Region: doc.Region}, nil
	})
}
