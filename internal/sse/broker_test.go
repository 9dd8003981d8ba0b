package sse

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/dreamvault/internal/scrape"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: TypeDocumentUpdated, Data: map[string]string{"path": "Journals/a.md"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: document.updated") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"path":"Journals/a.md"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

// metricsPayloads decodes the data lines of every metrics.updated message.
func metricsPayloads(t *testing.T, msgs []string) []MetricsChange {
	t.Helper()
	var out []MetricsChange
	for _, m := range msgs {
		if !strings.HasPrefix(m, "event: "+TypeMetricsUpdated+"\n") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(strings.SplitN(m, "\n", 2)[1], "data: "))
		var mc MetricsChange
		if err := json.Unmarshal([]byte(data), &mc); err != nil {
			t.Fatalf("decode %q: %v", data, err)
		}
		out = append(out, mc)
	}
	return out
}

func TestMetricsWindowFlushesPendingPaths(t *testing.T) {
	b := NewBroker(150 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishDocumentEvent("updated", "a.md")
	b.PublishDocumentEvent("updated", "c.md")
	b.PublishDocumentEvent("deleted", "b.md")
	b.PublishDocumentEvent("updated", "c.md")

	time.Sleep(50 * time.Millisecond)
	got := metricsPayloads(t, drain(ch))
	want := []MetricsChange{{Paths: []string{"a.md"}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("leading metrics (-want +got):\n%s", diff)
	}

	time.Sleep(250 * time.Millisecond)
	got = metricsPayloads(t, drain(ch))
	want = []MetricsChange{{Paths: []string{"b.md", "c.md"}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("trailing metrics (-want +got):\n%s", diff)
	}
}

func TestPublishScrapeCompleted(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishDocumentEvent("updated", "a.md")
	b.PublishDocumentEvent("updated", "b.md")
	b.PublishScrapeCompleted("run-1", scrape.Tally{Selected: 2, Processed: 2, Entries: 3})

	time.Sleep(50 * time.Millisecond)
	msgs := drain(ch)
	var sawScrape bool
	for _, m := range msgs {
		if strings.HasPrefix(m, "event: "+TypeScrapeCompleted) {
			sawScrape = true
			if !strings.Contains(m, `"run_id":"run-1"`) || !strings.Contains(m, `"entries":3`) {
				t.Errorf("scrape payload = %q", m)
			}
		}
	}
	if !sawScrape {
		t.Fatalf("no scrape.completed in %q", msgs)
	}

	got := metricsPayloads(t, msgs)
	want := []MetricsChange{
		{Paths: []string{"a.md"}},
		{RunID: "run-1", Paths: []string{"b.md"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("metrics (-want +got):\n%s", diff)
	}
}

func drain(ch chan []byte) []string {
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestPublishDocumentEvent_MetricsThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishDocumentEvent("created", "a.md")
	b.PublishDocumentEvent("deleted", "b.md")
	b.PublishDocumentEvent("renamed", "c.md")

	time.Sleep(50 * time.Millisecond)
	metricsCount, updated, deleted := 0, 0, 0
	for _, s := range drain(ch) {
		switch {
		case strings.Contains(s, "event: "+TypeMetricsUpdated):
			metricsCount++
		case strings.Contains(s, "event: "+TypeDocumentUpdated):
			updated++
		case strings.Contains(s, "event: "+TypeDocumentDeleted):
			deleted++
		}
	}

	if updated != 1 || deleted != 1 {
		t.Errorf("updated = %d, deleted = %d, want 1 and 1", updated, deleted)
	}
	if metricsCount != 1 {
		t.Errorf("metrics events = %d, want 1 (throttled)", metricsCount)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishDocumentEvent("updated", "x.md")
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: document.updated") {
		t.Errorf("handler output missing event: %q", body)
	}
	if got := w.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("content type = %q", got)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Buffer holds 64; the rest must be dropped without blocking.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	b.Publish(Event{Type: TypeDocumentUpdated, Data: map[string]string{"path": "x.md"}})
	b.PublishDocumentEvent("updated", "x.md")
}
