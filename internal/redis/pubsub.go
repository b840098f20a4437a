package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Gwagwa94/Votooveto/internal/domain"
	"github.com/Gwagwa94/Votooveto/internal/metrics"
)

// changeChannel carries every change notification. All clients watch the
// same list, so a single channel is enough.
const changeChannel = "restaurants:events"

// PubSub provides cross-instance broadcast of change events via Redis Pub/Sub.
type PubSub struct {
	rdb *goredis.Client
}

func NewPubSub(rdb *goredis.Client) *PubSub {
	return &PubSub{rdb: rdb}
}

var _ domain.EventPublisher = (*PubSub)(nil)

// PublishChanged publishes a change event. Fire-and-forget: subscribers that
// miss it recover on their next fetch.
func (ps *PubSub) PublishChanged(ctx context.Context, event domain.ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}
	if err := ps.rdb.Publish(ctx, changeChannel, data).Err(); err != nil {
		metrics.ChangeEventsPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to publish change event: %w", err)
	}
	metrics.ChangeEventsPublished.WithLabelValues("success").Inc()
	return nil
}

// Subscription represents an active Pub/Sub subscription to change events.
type Subscription struct {
	sub    *goredis.PubSub
	Ch     <-chan domain.ChangeEvent
	cancel context.CancelFunc
}

// Close unsubscribes and closes the subscription.
func (s *Subscription) Close() {
	s.cancel()
	_ = s.sub.Close()
}

// Subscribe subscribes to change events. Returns a Subscription with a
// channel that receives events; call Close when done.
func (ps *PubSub) Subscribe(ctx context.Context) *Subscription {
	sub := ps.rdb.Subscribe(ctx, changeChannel)

	subCtx, cancel := context.WithCancel(ctx)
	ch := make(chan domain.ChangeEvent, 16)

	go func() {
		defer close(ch)
		msgCh := sub.Channel()
		for {
			select {
			case msg, ok := <-msgCh:
				if !ok {
					return
				}
				var event domain.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					slog.Warn("Failed to unmarshal change event", "error", err)
					continue
				}
				select {
				case ch <- event:
				default:
					// Drop if receiver is slow
				}
			case <-subCtx.Done():
				return
			}
		}
	}()

	return &Subscription{
		sub:    sub,
		Ch:     ch,
		cancel: cancel,
	}
}
