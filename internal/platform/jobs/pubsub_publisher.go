package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
)

// PubSubPaymentEventPublisher publishes payment attempt events to a topic.
// Messages for one order share an ordering key.
type PubSubPaymentEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubPaymentEventPublisher wraps topic.
func NewPubSubPaymentEventPublisher(topic *pubsub.Topic) (*PubSubPaymentEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("payment event publisher: topic is required")
	}
	return &PubSubPaymentEventPublisher{topic: topic, marshal: json.Marshal}, nil
}

// PublishPaymentEvent sends event and waits for the server ack.
func (p *PubSubPaymentEventPublisher) PublishPaymentEvent(ctx context.Context, event domain.PaymentEvent) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("payment event publisher: not initialised")
	}
	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal payment event: %w", err)
	}

	attrs := map[string]string{}
	setAttr(attrs, "type", event.Type)
	setAttr(attrs, "tenantId", event.TenantID)
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "gatewayId", event.GatewayID)
	setAttr(attrs, "status", string(event.Status))

	msg := &pubsub.Message{Data: data, Attributes: attrs}
	if p.topic.EnableMessageOrdering {
		msg.OrderingKey = event.TenantID + "/" + event.OrderID
	}
	id, err := p.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		if msg.OrderingKey != "" {
			p.topic.ResumePublish(msg.OrderingKey)
		}
		return "", fmt.Errorf("publish payment event: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
