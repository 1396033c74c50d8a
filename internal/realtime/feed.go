// Package realtime fans out row changes over redis pub/sub, one channel per
// entity, and bridges them to websocket clients.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"geodrop/internal/metrics"
	"geodrop/internal/models"
)

var ErrUnknownEntity = errors.New("unknown entity")

const DefaultChannelPrefix = "geodrop:changes"

type Feed struct {
	rdb    *redis.Client
	prefix string
	log    zerolog.Logger
}

func NewFeed(rdb *redis.Client, prefix string, log zerolog.Logger) *Feed {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &Feed{
		rdb:    rdb,
		prefix: strings.TrimSuffix(prefix, ":"),
		log:    log.With().Str("component", "realtime").Logger(),
	}
}

func (f *Feed) Channel(entity models.EntityType) string {
	return f.prefix + ":" + string(entity)
}

// Publish is a no-op without a redis client.
func (f *Feed) Publish(ctx context.Context, event models.ChangeEvent) error {
	if f.rdb == nil {
		return nil
	}
	if !knownEntity(event.Entity) {
		return fmt.Errorf("%w: %q", ErrUnknownEntity, event.Entity)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return f.rdb.Publish(ctx, f.Channel(event.Entity), payload).Err()
}

// Subscription delivers events to one callback until Unsubscribe is called or
// the subscribing context ends.
type Subscription struct {
	pubsub *redis.PubSub
	done   chan struct{}
	once   sync.Once
}

// Subscribe listens to the given entities (all of them when empty). The
// callback runs on a single goroutine, so events of one entity arrive in
// publish order.
func (f *Feed) Subscribe(ctx context.Context, entities []models.EntityType, callback func(models.ChangeEvent)) (*Subscription, error) {
	if f.rdb == nil {
		return nil, errors.New("realtime feed has no redis client")
	}
	if len(entities) == 0 {
		entities = []models.EntityType{models.EntityPhotos, models.EntityComments}
	}
	channels := make([]string, 0, len(entities))
	for _, entity := range entities {
		if !knownEntity(entity) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, entity)
		}
		channels = append(channels, f.Channel(entity))
	}

	pubsub := f.rdb.Subscribe(ctx, channels...)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	sub := &Subscription{pubsub: pubsub, done: make(chan struct{})}
	metrics.RealtimeSubscribers.Inc()

	messages := pubsub.Channel()
	go func() {
		defer close(sub.done)
		defer metrics.RealtimeSubscribers.Dec()
		for {
			select {
			case <-ctx.Done():
				_ = pubsub.Close()
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event models.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					f.log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed change event")
					continue
				}
				callback(event)
			}
		}
	}()

	return sub, nil
}

// Unsubscribe closes the redis subscription and waits until the callback
// will not be called again. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		_ = s.pubsub.Close()
	})
	<-s.done
}

// ParseEntities reads a comma separated entity list such as "photos,comments".
func ParseEntities(raw string) ([]models.EntityType, error) {
	var entities []models.EntityType
	seen := map[models.EntityType]bool{}
	for _, part := range strings.Split(raw, ",") {
		entity := models.EntityType(strings.TrimSpace(strings.ToLower(part)))
		if entity == "" || seen[entity] {
			continue
		}
		if !knownEntity(entity) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, entity)
		}
		seen[entity] = true
		entities = append(entities, entity)
	}
	return entities, nil
}

func knownEntity(entity models.EntityType) bool {
	return entity == models.EntityPhotos || entity == models.EntityComments
}
