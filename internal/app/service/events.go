package service

import (
	"sync"
	"time"

	"token_ledger/internal/domain/entity"
	"token_ledger/internal/pkg/metrics"
)

// EventSink carries absorbed refresh failures to an optional consumer. Emitting never blocks:
// when the buffer is full the event is dropped and counted.
type EventSink struct {
	mu     sync.Mutex
	ch     chan entity.RefreshEvent
	closed bool
}

// NewEventSink creates a sink with the given buffer size.
func NewEventSink(buffer int) *EventSink {
	if buffer < 1 {
		buffer = 1
	}
	return &EventSink{ch: make(chan entity.RefreshEvent, buffer)}
}

// Events is the receive side. It is closed by Close.
func (s *EventSink) Events() <-chan entity.RefreshEvent {
	if s == nil {
		return nil
	}
	return s.ch
}

// Emit publishes an event. A nil sink discards it.
func (s *EventSink) Emit(kind entity.RefreshEventKind, contract string, err error) {
	if s == nil {
		return
	}
	ev := entity.RefreshEvent{Kind: kind, Contract: contract, Err: err, At: time.Now()}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- ev:
	default:
		metrics.RefreshEventsDropped.Inc()
	}
}

// Close closes the channel. Later emits are ignored.
func (s *EventSink) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
