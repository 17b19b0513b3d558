package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/payments"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/repositories"
)

const (
	defaultAttemptTTL     = 2 * time.Hour
	defaultSweepBatchSize = 100
)

// AttemptSweeperDeps wires the abandonment sweeper.
type AttemptSweeperDeps struct {
	Attempts      repositories.PaymentAttemptRepository
	TenantConfigs repositories.TenantConfigRepository
	Gateways      gatewayResolver
	Events        PaymentEventPublisher
	TTL           time.Duration
	BatchSize     int
	Clock         func() time.Time
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type attemptSweeper struct {
	attempts repositories.PaymentAttemptRepository
	configs  repositories.TenantConfigRepository
	gateways gatewayResolver
	events   PaymentEventPublisher
	ttl      time.Duration
	batch    int
	now      func() time.Time
	logger   func(ctx context.Context, event string, fields map[string]any)
}

var _ AttemptSweeper = (*attemptSweeper)(nil)

// NewAttemptSweeper constructs the sweeper. Gateways and TenantConfigs are
// optional; without them stale attempts are cancelled without asking the gateway.
func NewAttemptSweeper(deps AttemptSweeperDeps) (AttemptSweeper, error) {
	if deps.Attempts == nil {
		return nil, errors.New("attempt sweeper: payment attempt repository is required")
	}
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = defaultAttemptTTL
	}
	batch := deps.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatchSize
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &attemptSweeper{
		attempts: deps.Attempts,
		configs:  deps.TenantConfigs,
		gateways: deps.Gateways,
		events:   deps.Events,
		ttl:      ttl,
		batch:    batch,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Sweep processes one batch of attempts that stayed pending past the TTL.
// When the gateway already reports a final status the attempt takes that
// status; otherwise it is cancelled and a payment.abandoned event published.
// A gateway that cannot be reached defers the attempt until it is twice the
// TTL old.
func (s *attemptSweeper) Sweep(ctx context.Context) (SweepResult, error) {
	now := s.now()
	stale, err := s.attempts.ListStalePending(ctx, now.Add(-s.ttl), s.batch)
	if err != nil {
		return SweepResult{}, err
	}

	result := SweepResult{Scanned: len(stale)}
	for _, attempt := range stale {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		target, eventType, deferred := s.decide(ctx, attempt, now)
		if deferred {
			result.Skipped++
			continue
		}

		moved, err := s.attempts.Transition(ctx, attempt.ID, domain.PaymentStatusPending, target, now)
		if err != nil {
			s.logger(ctx, "sweeper.transition_failed", map[string]any{
				"attemptId": attempt.ID,
				"error":     err.Error(),
			})
			result.Skipped++
			continue
		}
		if !moved {
			result.Skipped++
			continue
		}

		if target == domain.PaymentStatusCancelled {
			result.Abandoned++
		} else {
			result.Settled++
		}
		s.publish(ctx, domain.PaymentEvent{
			Type:       eventType,
			TenantID:   attempt.TenantID,
			OrderID:    attempt.OrderID,
			AttemptID:  attempt.ID,
			GatewayID:  attempt.GatewayID,
			Status:     target,
			Amount:     attempt.Amount.String(),
			Currency:   attempt.Currency,
			OccurredAt: now,
		})
	}

	if result.Scanned > 0 {
		s.logger(ctx, "sweeper.completed", map[string]any{
			"scanned":   result.Scanned,
			"abandoned": result.Abandoned,
			"settled":   result.Settled,
			"skipped":   result.Skipped,
		})
	}
	return result, nil
}

func (s *attemptSweeper) decide(ctx context.Context, attempt domain.PaymentAttempt, now time.Time) (domain.PaymentStatus, string, bool) {
	gateway := s.gatewayFor(ctx, attempt)
	if gateway == nil || strings.TrimSpace(attempt.ExternalRef) == "" {
		return domain.PaymentStatusCancelled, domain.PaymentEventAbandoned, false
	}

	status, err := gateway.LookupStatus(ctx, attempt.ExternalRef)
	switch {
	case err == nil && status.IsFinal():
		return status, domain.PaymentEventSettled, false
	case err == nil, errors.Is(err, payments.ErrAttemptUnknown):
		return domain.PaymentStatusCancelled, domain.PaymentEventAbandoned, false
	}

	s.logger(ctx, "sweeper.gateway_lookup_failed", map[string]any{
		"attemptId": attempt.ID,
		"gatewayId": attempt.GatewayID,
		"error":     err.Error(),
	})
	if now.Sub(attempt.CreatedAt) < 2*s.ttl {
		return "", "", true
	}
	return domain.PaymentStatusCancelled, domain.PaymentEventAbandoned, false
}

func (s *attemptSweeper) gatewayFor(ctx context.Context, attempt domain.PaymentAttempt) payments.Gateway {
	if s.gateways == nil {
		return nil
	}
	descriptor := domain.GatewayDescriptor{ID: attempt.GatewayID}
	if s.configs != nil {
		if cfg, err := s.configs.Get(ctx, attempt.TenantID); err == nil {
			for _, gw := range cfg.ActiveGateways {
				if strings.EqualFold(gw.ID, attempt.GatewayID) {
					descriptor = gw
					break
				}
			}
		}
	}
	_, gateway, err := s.gateways.Resolve(descriptor)
	if err != nil {
		return nil
	}
	return gateway
}

func (s *attemptSweeper) publish(ctx context.Context, event domain.PaymentEvent) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishPaymentEvent(ctx, event); err != nil {
		s.logger(ctx, "sweeper.event_publish_failed", map[string]any{
			"attemptId": event.AttemptID,
			"type":      event.Type,
			"error":     err.Error(),
		})
	}
}
