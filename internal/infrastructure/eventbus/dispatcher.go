// Package eventbus decouples event publication from delivery. Services publish
// into a bounded buffer; one worker drains it and hands each event to every
// sink.
package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/event"
)

// Sink delivers an event to one transport.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, e event.Event) error
}

// Dispatcher implements event.Publisher.
type Dispatcher struct {
	ch      chan event.Event
	sinks   []Sink
	logger  zerolog.Logger
	timeout time.Duration

	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Int64
}

// NewDispatcher creates a dispatcher with the given buffer size.
func NewDispatcher(buffer int, logger zerolog.Logger, sinks ...Sink) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Dispatcher{
		ch:      make(chan event.Event, buffer),
		sinks:   sinks,
		logger:  logger.With().Str("component", "eventbus").Logger(),
		timeout: 5 * time.Second,
	}
}

// Publish enqueues e. It never blocks; a full buffer drops the event.
func (d *Dispatcher) Publish(e event.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.ch <- e:
	default:
		d.dropped.Add(1)
		d.logger.Warn().Str("type", string(e.Type)).Str("eventId", e.EventID.String()).Msg("event buffer full, dropping event")
	}
}

// Dropped returns how many events were discarded so far.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Start runs the delivery worker until Close drains the buffer.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for e := range d.ch {
			d.deliver(ctx, e)
		}
	}()
}

func (d *Dispatcher) deliver(ctx context.Context, e event.Event) {
	for _, s := range d.sinks {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		if err := s.Deliver(sctx, e); err != nil {
			d.logger.Error().Err(err).Str("sink", s.Name()).Str("type", string(e.Type)).Msg("event delivery failed")
		}
		cancel()
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.ch)
	d.mu.Unlock()
	d.wg.Wait()
}
