// Package sse streams chain validation and rebase events to HTTP clients.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// Event is one message on the stream. Path scopes the event to a chain file;
// an empty Path reaches every client.
type Event struct {
	Type string `json:"type"`
	Path string `json:"-"`
	Data any    `json:"data"`
}

// Chain event kinds accepted by PublishChainEvent.
const (
	KindCreated   = "created"
	KindUpdated   = "updated"
	KindDeleted   = "deleted"
	KindValidated = "validated"
	KindRebased   = "rebased"
)

// TypeChainsUpdated is sent at most once per throttle interval after chain events.
const TypeChainsUpdated = "chains.updated"

const defaultKeepAlive = 15 * time.Second

func knownKind(kind string) bool {
	switch kind {
	case KindCreated, KindUpdated, KindDeleted, KindValidated, KindRebased:
		return true
	}
	return false
}

// Option configures a Broker.
type Option func(*Broker)

// WithKeepAlive sets how often ServeHTTP writes a comment line to idle
// streams. Zero or negative disables keep-alives.
func WithKeepAlive(d time.Duration) Option {
	return func(b *Broker) { b.keepAlive = d }
}

type subscription struct {
	ch     chan []byte
	prefix string
}

// Broker fans chain events out to subscribed clients.
//
// One goroutine owns the client set, the event sequence and the list
// throttle timestamp; every public method talks to it over channels.
type Broker struct {
	listMin   time.Duration
	keepAlive time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker that emits chains.updated at most once per
// listThrottle.
func NewBroker(listThrottle time.Duration, opts ...Option) *Broker {
	if listThrottle <= 0 {
		listThrottle = 2 * time.Second
	}
	b := &Broker{
		listMin:       listThrottle,
		keepAlive:     defaultKeepAlive,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.loop()
	return b
}

// matches reports whether an event scoped to path reaches a client
// subscribed with prefix.
func matches(prefix, path string) bool {
	if prefix == "" || path == "" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/")
}

func (b *Broker) loop() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	var (
		seq      uint64
		lastList time.Time
	)

	send := func(ev Event) {
		payload, err := json.Marshal(ev.Data)
		if err != nil {
			return
		}
		seq++
		frame := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, ev.Type, payload))
		for ch, prefix := range clients {
			if !matches(prefix, ev.Path) {
				continue
			}
			select {
			case ch <- frame:
			default:
				// slow client: drop rather than stall the loop
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub.prefix

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case ev := <-b.publishCh:
			send(ev)
			if !strings.HasPrefix(ev.Type, "chain.") {
				continue
			}
			if now := time.Now(); now.Sub(lastList) >= b.listMin {
				lastList = now
				send(Event{Type: TypeChainsUpdated, Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every client channel. Safe to call twice.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client. A non-empty prefix limits chain events to
// that file or directory; list updates are always delivered.
func (b *Broker) Subscribe(prefix string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.subscribeCh <- subscription{ch: ch, prefix: prefix}:
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
	case b.unsubscribeCh <- ch:
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
	case b.countReqCh <- resp:
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

// Publish queues an event for broadcast. Events whose type starts with
// "chain." also trigger the throttled chains.updated event.
func (b *Broker) Publish(ev Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- ev:
	case <-b.stopped:
	}
}

// PublishChainEvent publishes chain.<kind> for path. A nil data payload
// sends {"path": path}. Unknown kinds are ignored.
func (b *Broker) PublishChainEvent(kind, path string, data any) {
	if !knownKind(kind) {
		return
	}
	if data == nil {
		data = map[string]string{"path": path}
	}
	b.Publish(Event{Type: "chain." + kind, Path: path, Data: data})
}

// ServeHTTP streams events to one client (GET /api/events). The optional
// path query parameter scopes chain events to a file or directory.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(strings.Trim(r.URL.Query().Get("path"), "/"))
	defer b.Unsubscribe(ch)

	var tick <-chan time.Time
	if b.keepAlive > 0 {
		t := time.NewTicker(b.keepAlive)
		defer t.Stop()
		tick = t.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			_, _ = w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
