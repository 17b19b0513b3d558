package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
	pfirestore "github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/firestore"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/repositories"
)

type attemptDocument struct {
	TenantID    string    `firestore:"tenantId"`
	OrderID     string    `firestore:"orderId"`
	GatewayID   string    `firestore:"gatewayId"`
	Status      string    `firestore:"status"`
	ExternalRef string    `firestore:"externalRef,omitempty"`
	Amount      string    `firestore:"amount"`
	Currency    string    `firestore:"currency"`
	PaymentURL  string    `firestore:"paymentUrl,omitempty"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

// PaymentAttemptRepository stores attempts in the top-level paymentAttempts
// collection so the sweeper can scan every tenant with one query.
type PaymentAttemptRepository struct {
	provider *pfirestore.Provider
}

func (r *PaymentAttemptRepository) collection(ctx context.Context) (*firestore.CollectionRef, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(attemptsCollection), nil
}

func (r *PaymentAttemptRepository) Insert(ctx context.Context, attempt domain.PaymentAttempt) error {
	coll, err := r.collection(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(attempt.ID) == "" {
		return errors.New("paymentAttempts.insert: id is required")
	}
	doc := attemptDocument{
		TenantID:    attempt.TenantID,
		OrderID:     attempt.OrderID,
		GatewayID:   attempt.GatewayID,
		Status:      string(attempt.Status),
		ExternalRef: attempt.ExternalRef,
		Amount:      attempt.Amount.String(),
		Currency:    attempt.Currency,
		PaymentURL:  attempt.PaymentURL,
		CreatedAt:   attempt.CreatedAt.UTC(),
		UpdatedAt:   attempt.UpdatedAt.UTC(),
	}
	if _, err := coll.Doc(attempt.ID).Create(ctx, doc); err != nil {
		return pfirestore.WrapError("paymentAttempts.insert", err)
	}
	return nil
}

func (r *PaymentAttemptRepository) LatestForOrder(ctx context.Context, tenantID, orderID string) (domain.PaymentAttempt, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return domain.PaymentAttempt{}, err
	}
	query := coll.
		Where("tenantId", "==", strings.TrimSpace(tenantID)).
		Where("orderId", "==", strings.TrimSpace(orderID)).
		OrderBy("createdAt", firestore.Desc).
		Limit(1)
	attempts, err := pfirestore.QueryDocuments(ctx, "paymentAttempts.latestForOrder", query, decodeAttempt)
	if err != nil {
		return domain.PaymentAttempt{}, err
	}
	if len(attempts) == 0 {
		return domain.PaymentAttempt{}, repositories.NotFound("paymentAttempts.latestForOrder")
	}
	return attempts[0], nil
}

func (r *PaymentAttemptRepository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]domain.PaymentAttempt, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return nil, err
	}
	query := coll.
		Where("status", "==", string(domain.PaymentStatusPending)).
		Where("createdAt", "<", createdBefore.UTC()).
		OrderBy("createdAt", firestore.Asc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	return pfirestore.QueryDocuments(ctx, "paymentAttempts.listStalePending", query, decodeAttempt)
}

// Transition reads the attempt inside a transaction and only writes when its
// status still equals from.
func (r *PaymentAttemptRepository) Transition(ctx context.Context, attemptID string, from, to domain.PaymentStatus, now time.Time) (bool, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return false, err
	}
	ref := coll.Doc(strings.TrimSpace(attemptID))
	var moved bool
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		moved = false
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		current, err := snap.DataAt("status")
		if err != nil {
			return err
		}
		if s, _ := current.(string); s != string(from) {
			return nil
		}
		if err := tx.Update(ref, []firestore.Update{
			{Path: "status", Value: string(to)},
			{Path: "updatedAt", Value: now.UTC()},
		}); err != nil {
			return err
		}
		moved = true
		return nil
	})
	if err != nil {
		return false, pfirestore.WrapError("paymentAttempts.transition", err)
	}
	return moved, nil
}

func decodeAttempt(snap *firestore.DocumentSnapshot) (domain.PaymentAttempt, error) {
	var doc attemptDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.PaymentAttempt{}, fmt.Errorf("decode payment attempt %s: %w", snap.Ref.ID, err)
	}
	amount, err := parseDecimal("amount", doc.Amount)
	if err != nil {
		return domain.PaymentAttempt{}, err
	}
	return domain.PaymentAttempt{
		ID:          snap.Ref.ID,
		TenantID:    doc.TenantID,
		OrderID:     doc.OrderID,
		GatewayID:   doc.GatewayID,
		Status:      domain.PaymentStatus(doc.Status),
		ExternalRef: doc.ExternalRef,
		Amount:      amount,
		Currency:    doc.Currency,
		PaymentURL:  doc.PaymentURL,
		CreatedAt:   doc.CreatedAt.UTC(),
		UpdatedAt:   doc.UpdatedAt.UTC(),
	}, nil
}
