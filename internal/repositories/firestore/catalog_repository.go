package firestore

import (
	"context"
	"strings"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
	pfirestore "github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/firestore"
)

type variantDocument struct {
	ProductID      string  `firestore:"productId"`
	ProductTitle   string  `firestore:"productTitle"`
	Title          string  `firestore:"title"`
	Price          string  `firestore:"price"`
	CompareAtPrice *string `firestore:"compareAtPrice,omitempty"`
	WeightKg       string  `firestore:"weightKg"`
	IsQuoteOnly    bool    `firestore:"isQuoteOnly"`
	IsActive       bool    `firestore:"isActive"`
}

// CatalogRepository reads tenants/{tenantId}/variants.
type CatalogRepository struct {
	provider *pfirestore.Provider
}

func (r *CatalogRepository) FindVariant(ctx context.Context, tenantID, variantRef string) (domain.CatalogProduct, domain.CatalogVariant, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CatalogProduct{}, domain.CatalogVariant{}, err
	}
	ref := tenantDoc(client, tenantID).Collection(variantsCollection).Doc(strings.TrimSpace(variantRef))
	doc, err := pfirestore.GetDocument(ctx, ref, pfirestore.StructDecoder[variantDocument]())
	if err != nil {
		return domain.CatalogProduct{}, domain.CatalogVariant{}, pfirestore.WrapError("catalog.findVariant", err)
	}
	price, err := parseDecimal("price", doc.Price)
	if err != nil {
		return domain.CatalogProduct{}, domain.CatalogVariant{}, err
	}
	compareAt, err := parseOptionalDecimal("compareAtPrice", doc.CompareAtPrice)
	if err != nil {
		return domain.CatalogProduct{}, domain.CatalogVariant{}, err
	}
	weight, err := parseDecimal("weightKg", doc.WeightKg)
	if err != nil {
		return domain.CatalogProduct{}, domain.CatalogVariant{}, err
	}
	product := domain.CatalogProduct{ID: doc.ProductID, Title: doc.ProductTitle}
	return product, domain.CatalogVariant{
		ID:             ref.ID,
		ProductID:      doc.ProductID,
		Title:          doc.Title,
		Price:          price,
		CompareAtPrice: compareAt,
		WeightKg:       weight,
		IsQuoteOnly:    doc.IsQuoteOnly,
		IsActive:       doc.IsActive,
	}, nil
}
