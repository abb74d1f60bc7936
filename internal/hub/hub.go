package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"arpledger/internal/domain"
)

// KeepAlive is how often idle streams receive a comment line
var KeepAlive = 30 * time.Second

type subscriber struct {
	id     string
	frames chan []byte
}

// Hub fans reconciliation events out to Server-Sent Events subscribers.
// Slow subscribers miss frames rather than block the reconciler.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	join        chan *subscriber
	leave       chan *subscriber
	events      chan domain.ReconciliationEvent
}

// New creates a Hub. Call Run before serving.
func New() *Hub {
	return &Hub{
		subscribers: make(map[*subscriber]struct{}),
		join:        make(chan *subscriber),
		leave:       make(chan *subscriber),
		events:      make(chan domain.ReconciliationEvent, 256),
	}
}

// Run owns subscriber membership until ctx is done
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for s := range h.subscribers {
				delete(h.subscribers, s)
				close(s.frames)
			}
			h.mu.Unlock()
			return

		case s := <-h.join:
			h.mu.Lock()
			h.subscribers[s] = struct{}{}
			n := len(h.subscribers)
			h.mu.Unlock()
			logrus.Debugf("Hub: subscriber %s joined (total: %d)", s.id, n)

		case s := <-h.leave:
			h.mu.Lock()
			if _, ok := h.subscribers[s]; ok {
				delete(h.subscribers, s)
				close(s.frames)
			}
			n := len(h.subscribers)
			h.mu.Unlock()
			logrus.Debugf("Hub: subscriber %s left (total: %d)", s.id, n)

		case ev := <-h.events:
			frame, err := encodeFrame(ev)
			if err != nil {
				logrus.Warnf("Hub: failed to encode event %s: %v", ev.ID, err)
				continue
			}

			h.mu.RLock()
			for s := range h.subscribers {
				select {
				case s.frames <- frame:
				default:
					logrus.Debugf("Hub: subscriber %s is slow, dropping %s", s.id, ev.ID)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish queues an event for all subscribers. It never blocks.
func (h *Hub) Publish(ev domain.ReconciliationEvent) bool {
	select {
	case h.events <- ev:
		return true
	default:
		logrus.Warnf("Hub: queue full, dropping event %s", ev.ID)
		return false
	}
}

// Subscribers returns the number of connected streams
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// encodeFrame renders one SSE frame named after the event type
func encodeFrame(ev domain.ReconciliationEvent) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.EventType, data)), nil
}

// ServeHTTP streams events to one client until it disconnects
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	s := &subscriber{
		id:     uuid.NewString(),
		frames: make(chan []byte, 64),
	}

	select {
	case h.join <- s:
	case <-r.Context().Done():
		return
	}
	defer func() {
		select {
		case h.leave <- s:
		case <-time.After(time.Second):
			// hub already stopped
		}
	}()

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-s.frames:
			if !ok {
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
