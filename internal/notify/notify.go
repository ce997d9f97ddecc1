// Package notify publishes change events after committed writes so dashboards
// and downstream consumers can re-fetch. Delivery is best effort: an event is
// a hint that something changed, never the data itself.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

type Entity string

const (
	EntityOrder        Entity = "order"
	EntityCashMovement Entity = "cash_movement"
	EntityTillSession  Entity = "till_session"
	EntityTable        Entity = "table"
	EntityProduct      Entity = "product"
)

const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindOpened  = "opened"
	KindClosed  = "closed"
)

// Event is the wire payload on every sink.
type Event struct {
	Entity Entity    `json:"entity"`
	ID     string    `json:"id"`
	Kind   string    `json:"kind"`
	At     time.Time `json:"at"`
}

// Publisher delivers one event to one or more sinks.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Subscriber streams events until ctx is done; the channel is closed then.
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan Event, error)
}

// Noop discards events.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// Fanout publishes to every sink and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

const emitTimeout = 3 * time.Second

// Emit publishes after a commit. The write has already succeeded, so a
// failure here is logged and dropped.
func Emit(ctx context.Context, pub Publisher, entity Entity, id, kind string) {
	if pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emitTimeout)
	defer cancel()

	ev := Event{Entity: entity, ID: id, Kind: kind, At: time.Now().UTC()}
	if err := pub.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).
			Str("entity", string(entity)).
			Str("id", id).
			Str("kind", kind).
			Msg("notify: event dropped")
	}
}
