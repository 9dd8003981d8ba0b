// Package sse implements a Server-Sent Events broker that tells clients when
// extracted dream entries change.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/starford/dreamvault/internal/scrape"
)

// Event types.
const (
	TypeDocumentUpdated = "document.updated"
	TypeDocumentDeleted = "document.deleted"
	TypeMetricsUpdated  = "metrics.updated"
	TypeScrapeCompleted = "scrape.completed"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// MetricsChange is the payload of metrics.updated: the documents whose
// entries changed since the previous notification, and the scrape run that
// produced them when the change came from a full scrape.
type MetricsChange struct {
	RunID string   `json:"run_id,omitempty"`
	Paths []string `json:"paths"`
}

// ScrapeCompleted is the payload of scrape.completed.
type ScrapeCompleted struct {
	RunID string       `json:"run_id"`
	Tally scrape.Tally `json:"tally"`
}

// documentEventReq is a document change, or a completed scrape when scrape
// is set. Both share one channel so a scrape is seen after its documents.
type documentEventReq struct {
	kind   string
	path   string
	scrape *ScrapeCompleted
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable
// state (clients, the pending metrics window). Public methods communicate with
// this loop through channels, so no mutexes are required.
//
// Document changes are coalesced into metrics.updated: the first change after
// a quiet period is announced at once, later ones are collected and flushed
// when the throttle window ends, so no changed path is lost. A completed
// scrape flushes immediately and stamps the notification with its run id.
type Broker struct {
	metricsMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	documentCh    chan documentEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. metrics.updated is sent at most once
// per metricsThrottle, except right after a completed scrape.
func NewBroker(metricsThrottle time.Duration) *Broker {
	if metricsThrottle <= 0 {
		metricsThrottle = 2 * time.Second
	}

	b := &Broker{
		metricsMin:    metricsThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		documentCh:    make(chan documentEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	pending := make(map[string]struct{})
	var (
		lastMetrics time.Time
		timer       *time.Timer
		flushC      <-chan time.Time
	)

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer, flushC = nil, nil
		}
	}

	flushMetrics := func(runID string) {
		stopTimer()
		paths := make([]string, 0, len(pending))
		for p := range pending {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		clear(pending)
		lastMetrics = time.Now()
		broadcast(Event{Type: TypeMetricsUpdated, Data: MetricsChange{RunID: runID, Paths: paths}})
	}

	for {
		select {
		case <-b.stopCh:
			stopTimer()
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

		case req := <-b.documentCh:
			if req.scrape != nil {
				broadcast(Event{Type: TypeScrapeCompleted, Data: *req.scrape})
				flushMetrics(req.scrape.RunID)
				continue
			}
			data := map[string]string{"path": req.path}
			switch req.kind {
			case "created", "updated":
				broadcast(Event{Type: TypeDocumentUpdated, Data: data})
			case "deleted":
				broadcast(Event{Type: TypeDocumentDeleted, Data: data})
			default:
				continue
			}

			pending[req.path] = struct{}{}
			elapsed := time.Since(lastMetrics)
			switch {
			case elapsed >= b.metricsMin:
				flushMetrics("")
			case timer == nil:
				timer = time.NewTimer(b.metricsMin - elapsed)
				flushC = timer.C
			}

		case <-flushC:
			timer, flushC = nil, nil
			flushMetrics("")

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

// PublishDocumentEvent publishes a document change and queues its path for
// the next metrics.updated event. Its signature matches index.EventCallback.
func (b *Broker) PublishDocumentEvent(kind, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.documentCh <- documentEventReq{kind: kind, path: path}:
	case <-b.stopped:
	}
}

// PublishScrapeCompleted announces a finished scrape run and flushes the
// pending metrics window under its run id.
func (b *Broker) PublishScrapeCompleted(runID string, tally scrape.Tally) {
	if b.closed.Load() {
		return
	}
	select {
	case b.documentCh <- documentEventReq{scrape: &ScrapeCompleted{RunID: runID, Tally: tally}}:
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
