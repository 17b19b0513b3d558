package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
	pfirestore "github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/firestore"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/repositories"
)

type couponDocument struct {
	Description           string    `firestore:"description"`
	DiscountType          string    `firestore:"discountType"`
	DiscountValue         string    `firestore:"discountValue"`
	MinimumPurchaseAmount *string   `firestore:"minimumPurchaseAmount,omitempty"`
	MaximumDiscountAmount *string   `firestore:"maximumDiscountAmount,omitempty"`
	MaxUses               *int      `firestore:"maxUses,omitempty"`
	MaxUsesPerCustomer    *int      `firestore:"maxUsesPerCustomer,omitempty"`
	TimesUsed             int       `firestore:"timesUsed"`
	ValidFrom             time.Time `firestore:"validFrom"`
	ValidUntil            time.Time `firestore:"validUntil"`
	IsActive              bool      `firestore:"isActive"`
	CreatedAt             time.Time `firestore:"createdAt"`
	UpdatedAt             time.Time `firestore:"updatedAt"`
}

type couponCustomerDocument struct {
	Uses      int       `firestore:"uses"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

type redemptionDocument struct {
	CustomerID string    `firestore:"customerId"`
	OrderID    string    `firestore:"orderId"`
	RedeemedAt time.Time `firestore:"redeemedAt"`
}

// CouponRepository reads and redeems tenants/{tenantId}/coupons.
type CouponRepository struct {
	provider *pfirestore.Provider
}

func (r *CouponRepository) couponRef(ctx context.Context, tenantID, code string) (*firestore.DocumentRef, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return tenantDoc(client, tenantID).Collection(couponsCollection).Doc(domain.NormalizeCouponCode(code)), nil
}

func (r *CouponRepository) FindByCode(ctx context.Context, tenantID, code string) (domain.Coupon, error) {
	ref, err := r.couponRef(ctx, tenantID, code)
	if err != nil {
		return domain.Coupon{}, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return domain.Coupon{}, pfirestore.WrapError("coupons.findByCode", err)
	}
	return decodeCoupon(snap)
}

func (r *CouponRepository) CustomerUsage(ctx context.Context, tenantID, code, customerID string) (int, error) {
	ref, err := r.couponRef(ctx, tenantID, code)
	if err != nil {
		return 0, err
	}
	snap, err := ref.Collection(customersCollection).Doc(strings.TrimSpace(customerID)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return 0, nil
	}
	if err != nil {
		return 0, pfirestore.WrapError("coupons.customerUsage", err)
	}
	var doc couponCustomerDocument
	if err := snap.DataTo(&doc); err != nil {
		return 0, fmt.Errorf("firestore coupons decode customer usage: %w", err)
	}
	return doc.Uses, nil
}

// Redeem re-reads the coupon, the customer's usage and any prior redemption
// for the order in one transaction, runs check and writes the increments.
// Firestore retries the transaction on contention, so the last remaining use
// is granted to exactly one order.
func (r *CouponRepository) Redeem(ctx context.Context, req repositories.RedeemRequest, check repositories.RedeemCheck) (repositories.RedeemResult, error) {
	ref, err := r.couponRef(ctx, req.TenantID, req.Code)
	if err != nil {
		return repositories.RedeemResult{}, err
	}
	orderID := strings.TrimSpace(req.OrderID)
	customerID := strings.TrimSpace(req.CustomerID)
	if orderID == "" {
		return repositories.RedeemResult{}, errors.New("coupons.redeem: order id is required")
	}
	now := req.Now.UTC()
	if req.Now.IsZero() {
		now = time.Now().UTC()
	}

	var (
		result   repositories.RedeemResult
		rejected error
	)
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		result, rejected = repositories.RedeemResult{}, nil

		couponSnap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		coupon, err := decodeCoupon(couponSnap)
		if err != nil {
			return err
		}

		redemptionRef := ref.Collection(redemptionsCollection).Doc(orderID)
		redemptionSnap, err := tx.Get(redemptionRef)
		switch status.Code(err) {
		case codes.OK:
			var prior redemptionDocument
			if err := redemptionSnap.DataTo(&prior); err != nil {
				return err
			}
			result = repositories.RedeemResult{
				Redemption: domain.CouponRedemption{
					TenantID:   req.TenantID,
					Code:       coupon.Code,
					CustomerID: prior.CustomerID,
					OrderID:    prior.OrderID,
					RedeemedAt: prior.RedeemedAt,
				},
				Coupon:   coupon,
				Replayed: true,
			}
			return nil
		case codes.NotFound:
		default:
			return err
		}

		var customerRef *firestore.DocumentRef
		usage := 0
		if customerID != "" {
			customerRef = ref.Collection(customersCollection).Doc(customerID)
			customerSnap, err := tx.Get(customerRef)
			switch status.Code(err) {
			case codes.OK:
				var doc couponCustomerDocument
				if err := customerSnap.DataTo(&doc); err != nil {
					return err
				}
				usage = doc.Uses
			case codes.NotFound:
			default:
				return err
			}
		}

		if check != nil {
			if err := check(coupon, usage); err != nil {
				rejected = err
				return err
			}
		}

		if err := tx.Update(ref, []firestore.Update{
			{Path: "timesUsed", Value: firestore.Increment(1)},
			{Path: "updatedAt", Value: now},
		}); err != nil {
			return err
		}
		if customerRef != nil {
			if err := tx.Set(customerRef, couponCustomerDocument{Uses: usage + 1, UpdatedAt: now}); err != nil {
				return err
			}
		}
		if err := tx.Create(redemptionRef, redemptionDocument{CustomerID: customerID, OrderID: orderID, RedeemedAt: now}); err != nil {
			return err
		}

		coupon.TimesUsed++
		coupon.UpdatedAt = now
		result = repositories.RedeemResult{
			Redemption: domain.CouponRedemption{
				TenantID:   req.TenantID,
				Code:       coupon.Code,
				CustomerID: customerID,
				OrderID:    orderID,
				RedeemedAt: now,
			},
			Coupon: coupon,
		}
		return nil
	})
	if err != nil {
		if rejected != nil && errors.Is(err, rejected) {
			return repositories.RedeemResult{}, rejected
		}
		return repositories.RedeemResult{}, pfirestore.WrapError("coupons.redeem", err)
	}
	return result, nil
}

func decodeCoupon(snap *firestore.DocumentSnapshot) (domain.Coupon, error) {
	var doc couponDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Coupon{}, fmt.Errorf("firestore coupons decode %s: %w", snap.Ref.ID, err)
	}
	value, err := parseDecimal("discountValue", doc.DiscountValue)
	if err != nil {
		return domain.Coupon{}, err
	}
	minimum, err := parseOptionalDecimal("minimumPurchaseAmount", doc.MinimumPurchaseAmount)
	if err != nil {
		return domain.Coupon{}, err
	}
	maximum, err := parseOptionalDecimal("maximumDiscountAmount", doc.MaximumDiscountAmount)
	if err != nil {
		return domain.Coupon{}, err
	}
	kind, _ := domain.ParseDiscountType(doc.DiscountType)
	coupon := domain.Coupon{
		Code:                  snap.Ref.ID,
		Description:           doc.Description,
		DiscountType:          kind,
		DiscountValue:         value,
		MinimumPurchaseAmount: minimum,
		MaximumDiscountAmount: maximum,
		MaxUses:               doc.MaxUses,
		MaxUsesPerCustomer:    doc.MaxUsesPerCustomer,
		TimesUsed:             doc.TimesUsed,
		ValidFrom:             doc.ValidFrom.UTC(),
		ValidUntil:            doc.ValidUntil.UTC(),
		IsActive:              doc.IsActive,
		CreatedAt:             doc.CreatedAt,
		UpdatedAt:             doc.UpdatedAt,
	}
	if err := coupon.Validate(); err != nil {
		return domain.Coupon{}, fmt.Errorf("firestore coupons decode %s: %w", snap.Ref.ID, err)
	}
	return coupon, nil
}
