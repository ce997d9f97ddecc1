package notify

import (
	"context"
	"encoding/json"
	"errors"

	"imperio/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// RedisPublisher publishes on a pub/sub channel; every API replica's SSE
// endpoint subscribes to it.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

func NewRedisPublisher(rdb *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, payload).Err()
}

// RedisSubscriber is the SSE side of RedisPublisher.
type RedisSubscriber struct {
	rdb     *redis.Client
	channel string
}

func NewRedisSubscriber(rdb *redis.Client, channel string) *RedisSubscriber {
	return &RedisSubscriber{rdb: rdb, channel: channel}
}

func (s *RedisSubscriber) Subscribe(ctx context.Context) (<-chan Event, error) {
	ps := s.rdb.Subscribe(ctx, s.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.Warn().Err(err).Msg("notify: malformed event on channel")
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher writes events keyed by entity so one entity's events stay
// on one partition.
type KafkaPublisher struct{ w messageWriter }

func NewKafkaPublisher(w *kafka.Writer) *KafkaPublisher { return &KafkaPublisher{w: w} }

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(string(ev.Entity) + ":" + ev.ID),
		Value: payload,
		Time:  ev.At,
	})
}

// guarded wraps a sink with bounded retries and a circuit breaker.
type guarded struct {
	name    string
	sink    Publisher
	cb      *infra.CircuitBreaker
	metrics *infra.Metrics
}

// Guard returns sink behind retries (transient errors only) and a breaker.
func Guard(name string, sink Publisher, metrics *infra.Metrics) Publisher {
	cb := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{
		Name: name,
		OnStateChange: func(name string, from, to infra.CBState) {
			log.Warn().Str("sink", name).Str("from", from.String()).Str("to", to.String()).
				Msg("notify: circuit breaker state change")
		},
	})
	return &guarded{name: name, sink: sink, cb: cb, metrics: metrics}
}

func (g *guarded) Publish(ctx context.Context, ev Event) error {
	err := g.cb.Execute(func() error {
		return infra.WithRetry(ctx, infra.MaxStoreAttempts, func(int) error {
			return g.sink.Publish(ctx, ev)
		})
	})
	result := "ok"
	switch {
	case errors.Is(err, infra.ErrCircuitOpen):
		result = "skipped"
	case err != nil:
		result = "error"
	}
	g.metrics.EventPublished(g.name, result)
	return err
}
