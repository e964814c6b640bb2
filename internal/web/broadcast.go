package web

import (
	"sync"

	"github.com/kozaktomas/face-organizer/internal/pipeline"
)

// eventChannelBuffer bounds per-listener queues; slow consumers drop events
// rather than stall the pipeline.
const eventChannelBuffer = 100

// Broadcaster fans pipeline events out to SSE listeners.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners []chan pipeline.Event
	last      pipeline.Counts
}

// AddListener registers a new event listener.
func (b *Broadcaster) AddListener() chan pipeline.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan pipeline.Event, eventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener unregisters and closes a listener channel.
func (b *Broadcaster) RemoveListener(ch chan pipeline.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// Send delivers an event to all listeners without blocking.
func (b *Broadcaster) Send(event pipeline.Event) {
	b.mu.Lock()
	b.last = event.Counts
	listeners := make([]chan pipeline.Event, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()

	for _, ch := range listeners {
		select {
		case ch <- event:
		default:
		}
	}
}

// Counts returns the counters from the most recent event.
func (b *Broadcaster) Counts() pipeline.Counts {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.last
}
