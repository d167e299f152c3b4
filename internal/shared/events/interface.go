package events

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/paramean/targeting/internal/shared/config"
)

// Publisher publishes domain events
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Health(ctx context.Context) error
	Close()
}

// Open returns a KurrentDB-backed publisher when enabled, otherwise a no-op.
func Open(cfg config.KurrentDBConfig) (Publisher, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}
	bus, err := NewBus(cfg)
	if err != nil {
		return nil, err
	}
	return bus, nil
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Health(context.Context) error         { return nil }
func (Nop) Close()                               {}

// Emit publishes event and logs a failure instead of returning it. Audit
// events never fail the request that produced them.
func Emit(ctx context.Context, p Publisher, log *zap.Logger, event Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, event); err != nil {
		log.Warn("event publish failed",
			zap.String("type", event.Type),
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
	}
}

// Recorder keeps published events in memory, for tests.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Events = append(r.Events, event)
	return nil
}

func (r *Recorder) Health(context.Context) error { return r.Err }
func (r *Recorder) Close()                       {}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, len(r.Events))
	for i, e := range r.Events {
		types[i] = e.Type
	}
	return types
}
