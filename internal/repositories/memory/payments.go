package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/repositories"
)

type orderRepo struct{ s *Store }

func (r orderRepo) Insert(_ context.Context, order domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := scopedKey(order.TenantID, order.ID)
	if _, exists := r.s.orders[key]; exists {
		return repositories.Conflict("orders.insert", nil)
	}
	r.s.orders[key] = order
	return nil
}

func (r orderRepo) FindByID(_ context.Context, tenantID, orderID string) (domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	order, ok := r.s.orders[scopedKey(tenantID, orderID)]
	if !ok {
		return domain.Order{}, repositories.NotFound("orders.findByID")
	}
	return order, nil
}

type attemptRepo struct{ s *Store }

func (r attemptRepo) Insert(_ context.Context, attempt domain.PaymentAttempt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.attempts[attempt.ID]; exists {
		return repositories.Conflict("paymentAttempts.insert", nil)
	}
	r.s.attempts[attempt.ID] = attempt
	return nil
}

func (r attemptRepo) LatestForOrder(_ context.Context, tenantID, orderID string) (domain.PaymentAttempt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	tenantID = strings.TrimSpace(tenantID)
	orderID = strings.TrimSpace(orderID)

	var (
		latest domain.PaymentAttempt
		found  bool
	)
	for _, attempt := range r.s.attempts {
		if attempt.TenantID != tenantID || attempt.OrderID != orderID {
			continue
		}
		if !found || attempt.CreatedAt.After(latest.CreatedAt) ||
			(attempt.CreatedAt.Equal(latest.CreatedAt) && attempt.ID > latest.ID) {
			latest, found = attempt, true
		}
	}
	if !found {
		return domain.PaymentAttempt{}, repositories.NotFound("paymentAttempts.latestForOrder")
	}
	return latest, nil
}

func (r attemptRepo) ListStalePending(_ context.Context, createdBefore time.Time, limit int) ([]domain.PaymentAttempt, error) {
	r.s.mu.RLock()
	var out []domain.PaymentAttempt
	for _, attempt := range r.s.attempts {
		if attempt.Status == domain.PaymentStatusPending && attempt.CreatedAt.Before(createdBefore) {
			out = append(out, attempt)
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r attemptRepo) Transition(_ context.Context, attemptID string, from, to domain.PaymentStatus, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	attempt, ok := r.s.attempts[attemptID]
	if !ok {
		return false, repositories.NotFound("paymentAttempts.transition")
	}
	if attempt.Status != from {
		return false, nil
	}
	attempt.Status = to
	attempt.UpdatedAt = utc(now)
	r.s.attempts[attemptID] = attempt
	return true, nil
}
