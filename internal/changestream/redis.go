package changestream

import (
	"context"
	"encoding/json"
	"fmt"

	"recruitment_backend/internal/leads/realtime"
	"recruitment_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

// unclaimedChannel carries changes to leads that match no approved site.
const unclaimedChannel = "unclaimed"

// Redis publishes change notifications on one channel per site,
// "<prefix>:<siteID>", and relays every site channel to a local sink.
type Redis struct {
	client *redis.Client
	prefix string
	log    *logger.Logger
}

func NewRedis(client *redis.Client, prefix string, log *logger.Logger) *Redis {
	if log == nil {
		log = logger.Discard()
	}
	return &Redis{client: client, prefix: prefix, log: log}
}

// Channel returns the channel a site's changes are published on.
func (r *Redis) Channel(siteID string) string {
	if siteID == "" {
		siteID = unclaimedChannel
	}
	return r.prefix + ":" + siteID
}

func (r *Redis) Publish(ctx context.Context, ev realtime.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	return r.client.Publish(ctx, r.Channel(ev.SiteID), payload).Err()
}

// Run relays messages from every site channel to sink until ctx is done.
// ready, when not nil, is closed once the subscription is confirmed.
func (r *Redis) Run(ctx context.Context, sink Sink, ready chan<- struct{}) error {
	pubsub := r.client.PSubscribe(ctx, r.prefix+":*")
	defer func() {
		_ = pubsub.Close()
	}()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe change stream: %w", err)
	}
	if ready != nil {
		close(ready)
	}
	r.log.Info("change stream subscribed", "pattern", r.prefix+":*")

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var ev realtime.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.log.RealtimeDropped(msg.Channel, "unknown", "undecodable payload")
				continue
			}
			sink.Deliver(ctx, ev)
		}
	}
}
