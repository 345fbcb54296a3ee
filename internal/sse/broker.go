// Package sse implements a Server-Sent Events broker for real-time updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type materialEventReq struct {
	kind string
	path string
}

type workspaceEventReq struct {
	kind       string
	category   string
	progressID string
	path       string
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable
// state (clients + index throttle timestamp). Public methods communicate with
// this loop through channels, so no mutexes are required.
type Broker struct {
	indexMin time.Duration

	subscribeCh      chan chan []byte
	unsubscribeCh    chan chan []byte
	publishCh        chan Event
	materialEventCh  chan materialEventReq
	workspaceEventCh chan workspaceEventReq
	countReqCh       chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker with the given index throttle interval.
func NewBroker(indexThrottle time.Duration) *Broker {
	if indexThrottle <= 0 {
		indexThrottle = 2 * time.Second
	}

	b := &Broker{
		indexMin:         indexThrottle,
		subscribeCh:      make(chan chan []byte),
		unsubscribeCh:    make(chan chan []byte),
		publishCh:        make(chan Event, 256),
		materialEventCh:  make(chan materialEventReq, 256),
		workspaceEventCh: make(chan workspaceEventReq, 256),
		countReqCh:       make(chan chan int),
		stopCh:           make(chan struct{}),
		stopped:          make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastIndex time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		msg := fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload)
		raw := []byte(msg)

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
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

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.materialEventCh:
			data := map[string]string{"path": req.path}
			switch req.kind {
			case "created":
				broadcast(Event{Type: "material.created", Data: data})
			case "updated":
				broadcast(Event{Type: "material.updated", Data: data})
			case "deleted":
				broadcast(Event{Type: "material.deleted", Data: data})
			}

			now := time.Now()
			if now.Sub(lastIndex) >= b.indexMin {
				lastIndex = now
				broadcast(Event{Type: "index.updated", Data: map[string]string{}})
			}

		case req := <-b.workspaceEventCh:
			broadcast(Event{
				Type: "workspace.file." + req.kind,
				Data: map[string]string{
					"category":    req.category,
					"progress_id": req.progressID,
					"path":        req.path,
				},
			})

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
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

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishMaterialEvent publishes a material change and a throttled
// index.updated event.
func (b *Broker) PublishMaterialEvent(kind, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.materialEventCh <- materialEventReq{kind: kind, path: path}:
	case <-b.stopped:
	}
}

// PublishWorkspaceEvent publishes a workspace file change. kind is one of
// "created", "updated", "deleted", "rolled_back".
func (b *Broker) PublishWorkspaceEvent(kind, category, progressID, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.workspaceEventCh <- workspaceEventReq{kind: kind, category: category, progressID: progressID, path: path}:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
