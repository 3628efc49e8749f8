package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultRelayChannel = "noticeboard:broadcast"

type relayMessage struct {
	Type   string `json:"type"`
	Origin string `json:"origin"`
}

// RedisRelay fans events out to every server instance sharing a Redis
// channel. Each instance forwards what it receives to its local Hub, so a
// viewer connected anywhere hears about a change made anywhere.
type RedisRelay struct {
	rdb     *redis.Client
	channel string
	origin  string
	hub     *Hub
	logger  *slog.Logger

	// OnRemote runs before an event from another instance reaches local
	// viewers, so the local playlist is fresh when they re-fetch.
	OnRemote func(ctx context.Context)

	ready chan struct{}
}

func NewRedisRelay(rdb *redis.Client, channel string, hub *Hub, logger *slog.Logger) *RedisRelay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	return &RedisRelay{
		rdb:     rdb,
		channel: channel,
		origin:  uuid.NewString(),
		hub:     hub,
		logger:  logger,
		ready:   make(chan struct{}),
	}
}

func (r *RedisRelay) Origin() string {
	return r.origin
}

// Ready is closed once the subscription is active.
func (r *RedisRelay) Ready() <-chan struct{} {
	return r.ready
}

// Publish sends ev through Redis. If Redis is unreachable the event still
// goes to local viewers and the error is returned.
func (r *RedisRelay) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(relayMessage{Type: ev.Type, Origin: r.origin})
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		if localErr := r.hub.Publish(ctx, ev); localErr != nil {
			r.logger.Warn("local publish failed", slog.String("error", localErr.Error()))
		}
		return fmt.Errorf("redis publish to %s: %w", r.channel, err)
	}
	return nil
}

// Run subscribes and forwards messages until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe to %s: %w", r.channel, err)
	}
	close(r.ready)
	r.logger.Info("redis relay subscribed", slog.String("channel", r.channel), slog.String("origin", r.origin))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(ctx, msg.Payload)
		}
	}
}

func (r *RedisRelay) handle(ctx context.Context, payload string) {
	var m relayMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil || m.Type == "" {
		r.logger.Warn("ignoring malformed relay message", slog.String("payload", payload))
		return
	}

	if m.Origin != r.origin && r.OnRemote != nil {
		r.OnRemote(ctx)
	}
	if err := r.hub.Publish(ctx, Event{Type: m.Type}); err != nil {
		r.logger.Warn("relay could not reach hub", slog.String("error", err.Error()))
	}
}
