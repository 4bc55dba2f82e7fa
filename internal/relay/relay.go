package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler func(ctx context.Context, e Event) error

// Publisher is the side of the relay the stores depend on.
type Publisher interface {
	Publish(ctx context.Context, typ EventType, payload any) (Event, error)
}

type subscription struct {
	handler Handler
	types   map[EventType]bool
}

func (s subscription) wants(t EventType) bool {
	return len(s.types) == 0 || s.types[t]
}

// Relay delivers events to subscribers synchronously, in subscription order.
// A failing or panicking handler is logged and skipped.
type Relay struct {
	source  string
	log     *zap.Logger
	version atomic.Uint64

	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]subscription
	order  []uint64
}

// New creates a relay. source identifies this process on events it creates.
func New(source string, log *zap.Logger) *Relay {
	return &Relay{
		source: source,
		log:    log,
		subs:   make(map[uint64]subscription),
	}
}

func (r *Relay) Source() string { return r.source }

// Version is the version of the latest event published, zero before any.
func (r *Relay) Version() uint64 { return r.version.Load() }

// Subscribe registers h for the given types, or every type when none are
// given. The returned func removes the subscription.
func (r *Relay) Subscribe(h Handler, types ...EventType) (unsubscribe func()) {
	sub := subscription{handler: h}
	if len(types) > 0 {
		sub.types = make(map[EventType]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}

	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.subs[id] = sub
	r.order = append(r.order, id)
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.subs, id)
			for i, v := range r.order {
				if v == id {
					r.order = append(r.order[:i], r.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish wraps payload in a new event and delivers it.
func (r *Relay) Publish(ctx context.Context, typ EventType, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", typ, err)
	}

	e := Event{
		ID:         uuid.NewString(),
		Type:       typ,
		Source:     r.source,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}
	return r.deliver(ctx, e), nil
}

// Republish delivers an event created elsewhere. It keeps the event's id,
// source and payload but assigns a local version.
func (r *Relay) Republish(ctx context.Context, e Event) Event {
	return r.deliver(ctx, e)
}

func (r *Relay) deliver(ctx context.Context, e Event) Event {
	e.Version = r.version.Add(1)

	r.mu.RLock()
	handlers := make([]Handler, 0, len(r.order))
	for _, id := range r.order {
		if sub := r.subs[id]; sub.wants(e.Type) {
			handlers = append(handlers, sub.handler)
		}
	}
	r.mu.RUnlock()

	for _, h := range handlers {
		if err := r.dispatch(ctx, h, e); err != nil {
			r.log.Error("handler failed to process event",
				zap.String("event_type", string(e.Type)),
				zap.String("event_id", e.ID),
				zap.Error(err))
		}
	}
	return e
}

func (r *Relay) dispatch(ctx context.Context, h Handler, e Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("handler panicked",
				zap.String("event_type", string(e.Type)),
				zap.Any("panic", p))
		}
	}()
	return h(ctx, e)
}
