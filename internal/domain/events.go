package domain

import "time"

const (
	// PaymentEventInitiated is emitted when a customer is redirected to a gateway.
	PaymentEventInitiated = "payment.initiated"
	// PaymentEventAbandoned is emitted when a stale pending attempt is cancelled.
	PaymentEventAbandoned = "payment.abandoned"
	// PaymentEventSettled is emitted when the sweeper records a final status
	// the gateway reported for a stale attempt.
	PaymentEventSettled = "payment.settled"
)

// PaymentEvent is the message published for payment attempt transitions.
type PaymentEvent struct {
	Type       string        `json:"type"`
	TenantID   string        `json:"tenantId"`
	OrderID    string        `json:"orderId"`
	AttemptID  string        `json:"attemptId"`
	GatewayID  string        `json:"gatewayId"`
	Status     PaymentStatus `json:"status"`
	Amount     string        `json:"amount"`
	Currency   string        `json:"currency"`
	OccurredAt time.Time     `json:"occurredAt"`
}
