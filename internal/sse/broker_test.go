package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/quicknote/internal/session"
)

// syncRecorder is an httptest.ResponseRecorder safe to read while the
// handler is still writing.
type syncRecorder struct {
	mu sync.Mutex
	*httptest.ResponseRecorder
}

func (r *syncRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Write(p)
}

func (r *syncRecorder) body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Body.String()
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

func TestNotifyDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Notify(session.Event{Kind: session.EventSaved, Path: "a.json"})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: note.saved") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"path":"a.json"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestNotify_ListThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Notify(session.Event{Kind: session.EventCreated, Path: "a.json"})
	b.Notify(session.Event{Kind: session.EventDeleted, Path: "b.json"})
	b.Notify(session.Event{Kind: session.EventSaved, Path: "a.json"})

	time.Sleep(50 * time.Millisecond)
	listCount, noteCount := 0, 0
	for _, s := range drain(ch) {
		if strings.Contains(s, "list.changed") {
			listCount++
		} else {
			noteCount++
		}
	}
	if noteCount != 3 {
		t.Errorf("note events = %d, want 3", noteCount)
	}
	if listCount != 1 {
		t.Errorf("list events = %d, want 1 (throttled)", listCount)
	}
}

func TestNotify_ListTrailingEmit(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Notify(session.Event{Kind: session.EventCreated, Path: "a.json"})
	b.Notify(session.Event{Kind: session.EventDeleted, Path: "b.json"})
	b.Notify(session.Event{Kind: session.EventCreated, Path: "c.json"})

	time.Sleep(300 * time.Millisecond)
	listCount := 0
	for _, s := range drain(ch) {
		if strings.Contains(s, "list.changed") {
			listCount++
		}
	}
	if listCount != 2 {
		t.Errorf("list events = %d, want 2 (leading and trailing)", listCount)
	}
}

func TestNotifyCountsDrops(t *testing.T) {
	// No loop drains the queue, so the second event has nowhere to go.
	b := &Broker{sessionCh: make(chan session.Event, 1)}
	b.Notify(session.Event{Kind: session.EventSaved})
	b.Notify(session.Event{Kind: session.EventSaved})
	if got := b.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
}

func TestNotify_SelectionDoesNotTouchList(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Notify(session.Event{Kind: session.EventSelection, Path: "a.json", Mode: "editing"})
	time.Sleep(50 * time.Millisecond)
	msgs := drain(ch)
	if len(msgs) != 1 || !strings.Contains(msgs[0], `"mode":"editing"`) {
		t.Errorf("messages = %q", msgs)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := &syncRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Notify(session.Event{Kind: session.EventSaved, Path: "x.json"})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	if body := w.body(); !strings.Contains(body, "event: note.saved") {
		t.Errorf("handler output missing event: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestSlowClientDoesNotStallBroker(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	slow := b.Subscribe()
	defer b.Unsubscribe(slow)

	// Overflow the slow client's buffer without reading from it.
	for i := 0; i < 100; i++ {
		b.Notify(session.Event{Kind: session.EventSaved, Path: "x.json"})
	}

	done := make(chan int, 1)
	go func() { done <- b.ClientCount() }()
	select {
	case n := <-done:
		if n != 1 {
			t.Errorf("clients = %d", n)
		}
	case <-time.After(time.Second):
		t.Fatal("broker loop stalled on a slow client")
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

	b.Notify(session.Event{Kind: session.EventSaved, Path: "x.json"})
}
