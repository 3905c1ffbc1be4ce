package streamkit

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// EventKind tags broadcast events.
type EventKind string

const (
	// EventSnapshot carries a fresh stats snapshot for one widget.
	EventSnapshot EventKind = "snapshot"
	// EventReload asks every open widget of a type to reload.
	EventReload EventKind = "reload"
)

// Event is pushed to live widget pages.
type Event struct {
	ID         string     `json:"id"`
	Kind       EventKind  `json:"kind"`
	WidgetKey  string     `json:"widget_key,omitempty"`
	WidgetType WidgetType `json:"widget_type,omitempty"`
	Snapshot   *Snapshot  `json:"snapshot,omitempty"`
	Version    int        `json:"version,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// EventFilter selects the events a subscriber receives.
type EventFilter func(Event) bool

// ForWidget matches snapshots for key and reloads for widget type t.
func ForWidget(key string, t WidgetType) EventFilter {
	return func(e Event) bool {
		switch e.Kind {
		case EventSnapshot:
			return key == "" || e.WidgetKey == key
		case EventReload:
			return t == "" || e.WidgetType == t
		default:
			return false
		}
	}
}

type subscriber struct {
	ch     chan Event
	filter EventFilter
}

// BroadcastHook fans out widget events to in-process subscribers.
type BroadcastHook struct {
	mu   sync.RWMutex
	subs map[string]subscriber
}

// NewBroadcastHook creates a broadcast hook.
func NewBroadcastHook() *BroadcastHook {
	return &BroadcastHook{subs: make(map[string]subscriber)}
}

// Publish delivers event to every matching subscriber. Slow subscribers drop events.
func (h *BroadcastHook) Publish(ctx context.Context, event Event) {
	if h == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if sub.filter != nil && !sub.filter(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
}

// Subscribe returns a channel of events matching filter and a cancel func.
// A nil filter receives everything.
func (h *BroadcastHook) Subscribe(filter EventFilter) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := uuid.NewString()
	ch := make(chan Event, 8)
	h.subs[id] = subscriber{ch: ch, filter: filter}
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub.ch)
			}
		})
	}
	return ch, cancel
}

// Subscribers reports the number of live subscriptions.
func (h *BroadcastHook) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Stream forwards matching events to send until ctx ends or send fails.
func (h *BroadcastHook) Stream(ctx context.Context, filter EventFilter, send func(Event) error) error {
	events, cancel := h.Subscribe(filter)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := send(event); err != nil {
				return err
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the request and streams events as JSON.
// The key and type query parameters narrow the subscription.
func (h *BroadcastHook) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	_ = h.Stream(ctx, requestFilter(r), func(event Event) error {
		return conn.WriteJSON(event)
	})
}

// ServeSSE provides a Server-Sent Events endpoint for widget events.
func (h *BroadcastHook) ServeSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	encoder := json.NewEncoder(w)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	_ = h.Stream(r.Context(), requestFilter(r), func(event Event) error {
		if _, err := w.Write([]byte("data: ")); err != nil {
			return err
		}
		if err := encoder.Encode(event); err != nil {
			return err
		}
		if _, err := w.Write([]byte("\n")); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
}

func requestFilter(r *http.Request) EventFilter {
	q := r.URL.Query()
	return ForWidget(q.Get("key"), WidgetType(q.Get("type")))
}
