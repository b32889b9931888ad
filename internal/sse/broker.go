// Package sse streams sync and page events to connected clients.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event types.
const (
	TypeSyncCompleted = "sync.completed"
	TypeSyncFailed    = "sync.failed"
	TypeGenerated     = "wiki.generated"
	TypeWikiUpdated   = "wiki.updated"
	TypePageEdited    = "page.edited"
	TypePageDeleted   = "page.deleted"
)

// Stream defaults.
const (
	DefaultHistory   = 128
	DefaultKeepAlive = 25 * time.Second

	clientBuffer = 64
)

// Event is one message on the stream. Publishing fills an empty ID with a
// ULID.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data any    `json:"data"`
}

// frame is an event encoded for the wire.
type frame struct {
	id  string
	raw []byte
}

func encode(e Event) (frame, error) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return frame{}, fmt.Errorf("sse: encode %s: %w", e.Type, err)
	}
	if e.ID == "" {
		e.ID = ulid.Make().String()
	}
	return frame{
		id:  e.ID,
		raw: fmt.Appendf(nil, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Type, payload),
	}, nil
}

// replay returns the frames published after id. An id that has fallen out
// of history replays all of it; an empty id replays nothing.
func replay(history []frame, after string) []frame {
	if after == "" {
		return nil
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].id == after {
			return history[i+1:]
		}
	}
	return history
}

type join struct {
	ch    chan []byte
	after string
}

type pageChange struct {
	kind string
	path string
}

// Broker fans events out to stream clients. One loop goroutine owns the
// client set, the replay history and the wiki.updated throttle; the public
// methods reach it over channels.
type Broker struct {
	throttle  time.Duration
	keepAlive time.Duration
	history   int

	joins   chan join
	leaves  chan chan []byte
	events  chan Event
	changes chan pageChange
	counts  chan chan int

	stop    chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// Option configures a Broker.
type Option func(*Broker)

// WithHistory keeps the last n events for clients resuming with
// Last-Event-ID. Zero disables replay.
func WithHistory(n int) Option {
	return func(b *Broker) {
		if n >= 0 {
			b.history = n
		}
	}
}

// WithKeepAlive sets how often idle streams get a comment line.
func WithKeepAlive(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.keepAlive = d
		}
	}
}

// NewBroker starts a broker. At most one wiki.updated event is sent per
// updateThrottle, however many page changes arrive.
func NewBroker(updateThrottle time.Duration, opts ...Option) *Broker {
	if updateThrottle <= 0 {
		updateThrottle = 2 * time.Second
	}
	b := &Broker{
		throttle:  updateThrottle,
		keepAlive: DefaultKeepAlive,
		history:   DefaultHistory,
		joins:     make(chan join),
		leaves:    make(chan chan []byte),
		events:    make(chan Event, 256),
		changes:   make(chan pageChange, 256),
		counts:    make(chan chan int),
		stop:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	for _, o := range opts {
		o(b)
	}
	go b.loop()
	return b
}

func (b *Broker) loop() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	history := make([]frame, 0, b.history)
	var lastUpdate time.Time

	send := func(ch chan []byte, raw []byte) {
		select {
		case ch <- raw:
		default:
			// Slow client; drop rather than stall every other stream.
		}
	}
	broadcast := func(e Event) {
		f, err := encode(e)
		if err != nil {
			return
		}
		if b.history > 0 {
			if len(history) == b.history {
				history = append(history[:0], history[1:]...)
			}
			history = append(history, f)
		}
		for ch := range clients {
			send(ch, f.raw)
		}
	}

	for {
		select {
		case <-b.stop:
			for ch := range clients {
				close(ch)
			}
			return

		case j := <-b.joins:
			clients[j.ch] = struct{}{}
			for _, f := range replay(history, j.after) {
				send(j.ch, f.raw)
			}

		case ch := <-b.leaves:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case e := <-b.events:
			broadcast(e)

		case c := <-b.changes:
			data := map[string]string{"path": c.path}
			switch c.kind {
			case "edited":
				broadcast(Event{Type: TypePageEdited, Data: data})
			case "deleted":
				broadcast(Event{Type: TypePageDeleted, Data: data})
			default:
				continue
			}
			if now := time.Now(); now.Sub(lastUpdate) >= b.throttle {
				lastUpdate = now
				broadcast(Event{Type: TypeWikiUpdated, Data: map[string]string{}})
			}

		case resp := <-b.counts:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stop)
	}
	<-b.stopped
}

// Subscribe adds a client. A non-empty lastEventID first replays the
// buffered events published after it.
func (b *Broker) Subscribe(lastEventID string) chan []byte {
	ch := make(chan []byte, max(clientBuffer, b.history))
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.joins <- join{ch: ch, after: lastEventID}:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.leaves <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.counts <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to every client.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.events <- event:
	case <-b.stopped:
	}
}

// PublishPageEvent publishes a page change ("edited" or "deleted") and a
// throttled wiki.updated event.
func (b *Broker) PublishPageEvent(kind, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changes <- pageChange{kind: kind, path: path}:
	case <-b.stopped:
	}
}

// ServeHTTP streams events to one client. Reconnecting clients resume from
// the Last-Event-ID header, or the last_event_id query parameter for
// clients that cannot set headers.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	lastID := r.Header.Get("Last-Event-ID")
	if lastID == "" {
		lastID = r.URL.Query().Get("last_event_id")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(lastID)
	defer b.Unsubscribe(ch)

	ticker := time.NewTicker(b.keepAlive)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Write([]byte(": keep-alive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
