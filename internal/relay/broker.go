package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/carehub-backend/pkg/db/models"
	"github.com/angelmondragon/carehub-backend/pkg/outbox/registry"
)

// Broker delivers one message to a topic and returns the server message id.
type Broker interface {
	Ping(context.Context) error
	Send(ctx context.Context, topic string, msg *gcppubsub.Message) (string, error)
}

type publisherSource interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

// PubSubBroker sends through Pub/Sub publishers, one per topic, created lazily.
type PubSubBroker struct {
	client publisherSource

	mu         sync.Mutex
	publishers map[string]*gcppubsub.Publisher
}

func NewPubSubBroker(client publisherSource) *PubSubBroker {
	return &PubSubBroker{client: client, publishers: map[string]*gcppubsub.Publisher{}}
}

func (b *PubSubBroker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx)
}

func (b *PubSubBroker) Send(ctx context.Context, topic string, msg *gcppubsub.Message) (string, error) {
	pub := b.publisher(topic)
	if pub == nil {
		return "", registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}
	return pub.Publish(ctx, msg).Get(ctx)
}

// Stop flushes and stops every publisher created so far.
func (b *PubSubBroker) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, pub := range b.publishers {
		pub.Stop()
		delete(b.publishers, topic)
	}
}

func (b *PubSubBroker) publisher(topic string) *gcppubsub.Publisher {
	b.mu.Lock()
	defer b.mu.Unlock()
	if pub, ok := b.publishers[topic]; ok {
		return pub
	}
	pub := b.client.Publisher(topic)
	if pub != nil {
		b.publishers[topic] = pub
	}
	return pub
}

// messageFor carries the stored envelope as-is; attributes let subscribers
// filter and route without decoding the body.
func messageFor(row models.OutboxEvent, eventID string) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       eventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"created_at":     row.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
}
