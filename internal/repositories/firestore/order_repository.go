package firestore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
	pfirestore "github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/firestore"
)

type orderLineDocument struct {
	ProductRef     string  `firestore:"productRef"`
	VariantRef     string  `firestore:"variantRef"`
	Title          string  `firestore:"title"`
	UnitPrice      string  `firestore:"unitPrice,omitempty"`
	CompareAtPrice *string `firestore:"compareAtPrice,omitempty"`
	Quantity       int     `firestore:"quantity"`
	IsQuoteOnly    bool    `firestore:"isQuoteOnly"`
	WeightKg       string  `firestore:"weightKg,omitempty"`
}

type orderTotalsDocument struct {
	Subtotal       string `firestore:"subtotal"`
	GrossSubtotal  string `firestore:"grossSubtotal"`
	DiscountAmount string `firestore:"discountAmount"`
	ShippingCost   string `firestore:"shippingCost"`
	TaxAmount      string `firestore:"taxAmount"`
	Total          string `firestore:"total"`
	TaxIncluded    bool   `firestore:"taxIncluded"`
}

type orderDocument struct {
	OrderNumber    string              `firestore:"orderNumber"`
	CustomerID     string              `firestore:"customerId,omitempty"`
	Currency       string              `firestore:"currency"`
	Totals         orderTotalsDocument `firestore:"totals"`
	CouponCode     string              `firestore:"couponCode,omitempty"`
	Commune        string              `firestore:"commune,omitempty"`
	ShippingMethod string              `firestore:"shippingMethod,omitempty"`
	Lines          []orderLineDocument `firestore:"lines"`
	CartGeneration int64               `firestore:"cartGeneration"`
	CreatedAt      time.Time           `firestore:"createdAt"`
}

// OrderRepository writes tenants/{tenantId}/orders for order processing.
type OrderRepository struct {
	provider *pfirestore.Provider
}

func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	ref := tenantDoc(client, order.TenantID).Collection(ordersCollection).Doc(order.ID)
	if _, err := ref.Create(ctx, encodeOrder(order)); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, tenantID, orderID string) (domain.Order, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	ref := tenantDoc(client, tenantID).Collection(ordersCollection).Doc(strings.TrimSpace(orderID))
	snap, err := ref.Get(ctx)
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.findByID", err)
	}
	return decodeOrder(strings.TrimSpace(tenantID), snap)
}

func encodeOrder(order domain.Order) orderDocument {
	doc := orderDocument{
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		Currency:    order.Currency,
		Totals: orderTotalsDocument{
			Subtotal:       order.Totals.Subtotal.String(),
			GrossSubtotal:  order.Totals.GrossSubtotal.String(),
			DiscountAmount: order.Totals.DiscountAmount.String(),
			ShippingCost:   order.Totals.ShippingCost.String(),
			TaxAmount:      order.Totals.TaxAmount.String(),
			Total:          order.Totals.Total.String(),
			TaxIncluded:    order.Totals.TaxIncluded,
		},
		CouponCode:     order.CouponCode,
		Commune:        order.Commune,
		ShippingMethod: string(order.ShippingMethod),
		CartGeneration: int64(order.CartGeneration),
		CreatedAt:      order.CreatedAt.UTC(),
	}
	for _, line := range order.Lines {
		doc.Lines = append(doc.Lines, orderLineDocument{
			ProductRef:     line.ProductRef,
			VariantRef:     line.VariantRef,
			Title:          line.Title,
			UnitPrice:      line.UnitPrice.String(),
			CompareAtPrice: formatOptionalDecimal(line.CompareAtPrice),
			Quantity:       line.Quantity,
			WeightKg:       line.WeightKg.String(),
		})
	}
	for _, line := range order.QuoteLines {
		doc.Lines = append(doc.Lines, orderLineDocument{
			ProductRef:  line.ProductRef,
			VariantRef:  line.VariantRef,
			Title:       line.Title,
			Quantity:    line.Quantity,
			IsQuoteOnly: true,
		})
	}
	return doc
}

func decodeOrder(tenantID string, snap *firestore.DocumentSnapshot) (domain.Order, error) {
	var doc orderDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Order{}, fmt.Errorf("firestore orders decode %s: %w", snap.Ref.ID, err)
	}
	totals := domain.OrderTotals{TaxIncluded: doc.Totals.TaxIncluded}
	for _, field := range []struct {
		name   string
		value  string
		target *decimal.Decimal
	}{
		{"subtotal", doc.Totals.Subtotal, &totals.Subtotal},
		{"grossSubtotal", doc.Totals.GrossSubtotal, &totals.GrossSubtotal},
		{"discountAmount", doc.Totals.DiscountAmount, &totals.DiscountAmount},
		{"shippingCost", doc.Totals.ShippingCost, &totals.ShippingCost},
		{"taxAmount", doc.Totals.TaxAmount, &totals.TaxAmount},
		{"total", doc.Totals.Total, &totals.Total},
	} {
		value, err := parseDecimal(field.name, field.value)
		if err != nil {
			return domain.Order{}, err
		}
		*field.target = value
	}

	order := domain.Order{
		ID:             snap.Ref.ID,
		TenantID:       tenantID,
		OrderNumber:    doc.OrderNumber,
		CustomerID:     doc.CustomerID,
		Currency:       doc.Currency,
		Totals:         totals,
		CouponCode:     doc.CouponCode,
		Commune:        doc.Commune,
		ShippingMethod: domain.ShippingMethod(doc.ShippingMethod),
		CartGeneration: uint64(doc.CartGeneration),
		CreatedAt:      doc.CreatedAt.UTC(),
	}
	for _, line := range doc.Lines {
		if line.IsQuoteOnly {
			order.QuoteLines = append(order.QuoteLines, domain.QuoteLine{
				ProductRef: line.ProductRef,
				VariantRef: line.VariantRef,
				Title:      line.Title,
				Quantity:   line.Quantity,
			})
			continue
		}
		price, err := parseDecimal("lines.unitPrice", line.UnitPrice)
		if err != nil {
			return domain.Order{}, err
		}
		weight, err := parseDecimal("lines.weightKg", line.WeightKg)
		if err != nil {
			return domain.Order{}, err
		}
		compareAt, err := parseOptionalDecimal("lines.compareAtPrice", line.CompareAtPrice)
		if err != nil {
			return domain.Order{}, err
		}
		order.Lines = append(order.Lines, domain.CartLine{
			ProductRef:     line.ProductRef,
			VariantRef:     line.VariantRef,
			Title:          line.Title,
			UnitPrice:      price,
			CompareAtPrice: compareAt,
			Quantity:       line.Quantity,
			WeightKg:       weight,
		})
	}
	return order, nil
}
