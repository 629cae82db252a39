package bus

import (
	"context"
	"sync"
	"time"
)

type EventType string

const (
	EventBatchStarted   EventType = "batch_started"
	EventItemFinished   EventType = "item_finished"
	EventBatchCompleted EventType = "batch_completed"
	EventBatchCanceled  EventType = "batch_canceled"
	EventIngestFailed   EventType = "ingest_failed"
)

// Event is one batch lifecycle notification.
type Event struct {
	Type       EventType         `json:"type"`
	At         time.Time         `json:"at"`
	Channel    string            `json:"channel,omitempty"`
	ChatID     string            `json:"chat_id,omitempty"`
	SessionKey string            `json:"session_key,omitempty"`
	BatchID    string            `json:"batch_id,omitempty"`
	Payload    map[string]string `json:"payload,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// PublishEvent delivers event to every subscriber with buffer room.
//
// Slow subscribers lose events; the publisher never waits. Returns false once
// the bus is closed or ctx is done.
func (mb *MessageBus) PublishEvent(ctx context.Context, event Event) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil || mb.closed() {
		return false
	}

	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	mb.mu.RLock()
	defer mb.mu.RUnlock()

	for _, ch := range mb.eventSubscribers {
		select {
		case ch <- event:
		default:
		}
	}

	return true
}

// SubscribeEvents registers a buffered subscriber. The channel closes when
// ctx ends, the returned func is called, or the bus closes.
func (mb *MessageBus) SubscribeEvents(ctx context.Context, buffer int) (<-chan Event, func()) {
	if ctx == nil {
		ctx = context.Background()
	}
	if buffer <= 0 {
		buffer = defaultBufferSize
	}

	ch := make(chan Event, buffer)

	mb.mu.Lock()
	if mb.closed() {
		mb.mu.Unlock()
		close(ch)
		return ch, func() {}
	}

	id := mb.nextEventSubscriberID
	mb.nextEventSubscriberID++
	mb.eventSubscribers[id] = ch
	mb.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			mb.mu.Lock()
			defer mb.mu.Unlock()
			if eventCh, ok := mb.eventSubscribers[id]; ok {
				delete(mb.eventSubscribers, id)
				close(eventCh)
			}
		})
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-mb.done:
		}
		unsubscribe()
	}()

	return ch, unsubscribe
}

func (mb *MessageBus) closed() bool {
	select {
	case <-mb.done:
		return true
	default:
		return false
	}
}
