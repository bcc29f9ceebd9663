package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/maison-panier/api/internal/services"
)

// PubSubEventPublisher publishes store events to a Pub/Sub topic for
// downstream consumers (analytics export, CRM sync).
type PubSubEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubEventPublisher constructs a Pub/Sub backed event publisher.
func NewPubSubEventPublisher(topic *pubsub.Topic) (*PubSubEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub event publisher: topic is required")
	}
	return &PubSubEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// Publish enqueues the event on the configured topic and returns the broker
// message ID.
func (p *PubSubEventPublisher) Publish(ctx context.Context, event services.StoreEvent) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub event publisher: not initialised")
	}

	kind := strings.TrimSpace(event.Kind)
	if kind == "" {
		return "", errors.New("pubsub event publisher: event kind is required")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal store event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "kind", kind)
	setAttr(attrs, "subject", event.Subject)
	attrs["occurredAt"] = event.OccurredAt.UTC().Format(time.RFC3339)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish store event: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}

var _ services.EventPublisher = (*PubSubEventPublisher)(nil)
