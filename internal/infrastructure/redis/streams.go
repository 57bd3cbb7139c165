package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	TransactionStream = "transactions:events"

	// approximate cap on stream length, applied with MAXLEN ~
	defaultMaxLen = 100000
)

// StreamProducer appends transaction events to a Redis stream.
type StreamProducer struct {
	client redis.Cmdable
	stream string
}

func NewStreamProducer(client redis.Cmdable, stream string) *StreamProducer {
	if stream == "" {
		stream = TransactionStream
	}
	return &StreamProducer{client: client, stream: stream}
}

// PublishTransactionEvent writes one event and returns the stream entry id.
func (p *StreamProducer) PublishTransactionEvent(ctx context.Context, eventID, aggregateID, eventType string, data map[string]any) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event data: %w", err)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: defaultMaxLen,
		Approx: true,
		Values: map[string]any{
			"event_id":       eventID,
			"transaction_id": aggregateID,
			"event_type":     eventType,
			"payload":        string(payload),
			"timestamp":      time.Now().Unix(),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish transaction event: %w", err)
	}
	return id, nil
}

func (p *StreamProducer) Stream() string { return p.stream }
