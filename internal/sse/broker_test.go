package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func next(t *testing.T, ch chan []byte) string {
	t.Helper()
	select {
	case msg := <-ch:
		return string(msg)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
		return ""
	}
}

// drain collects what is buffered once the loop has had time to deliver.
func drain(ch chan []byte) []string {
	time.Sleep(50 * time.Millisecond)
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

func idOf(msg string) string {
	id, _, _ := strings.Cut(strings.TrimPrefix(msg, "id: "), "\n")
	return id
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ch := b.Subscribe("")
	if n := b.ClientCount(); n != 1 {
		t.Fatalf("clients = %d, want 1", n)
	}
	b.Unsubscribe(ch)
	if n := b.ClientCount(); n != 0 {
		t.Fatalf("clients = %d after unsubscribe", n)
	}
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}
}

func TestPublish_Frame(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: TypeSyncCompleted, Data: map[string]int{"ingested": 2}})
	msg := next(t, ch)
	if len(idOf(msg)) != 26 {
		t.Errorf("expected a ULID id in %q", msg)
	}
	if !strings.Contains(msg, "\nevent: sync.completed\ndata: {\"ingested\":2}\n\n") {
		t.Errorf("frame = %q", msg)
	}

	b.Publish(Event{ID: "run-1", Type: TypeGenerated, Data: map[string]int{}})
	if msg := next(t, ch); !strings.HasPrefix(msg, "id: run-1\n") {
		t.Errorf("explicit id not kept: %q", msg)
	}
}

func TestPublishPageEvent_Throttle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.PublishPageEvent("edited", "manuscript/scenes/a.md")
	b.PublishPageEvent("deleted", "manuscript/scenes/b.md")
	b.PublishPageEvent("renamed", "manuscript/scenes/c.md")

	var edited, deleted, updates int
	ids := make(map[string]bool)
	for _, msg := range drain(ch) {
		ids[idOf(msg)] = true
		switch {
		case strings.Contains(msg, "event: page.edited"):
			edited++
		case strings.Contains(msg, "event: page.deleted"):
			deleted++
		case strings.Contains(msg, "event: wiki.updated"):
			updates++
		}
	}
	if edited != 1 || deleted != 1 {
		t.Errorf("edited = %d, deleted = %d; unknown kinds must be ignored", edited, deleted)
	}
	if updates != 1 {
		t.Errorf("wiki.updated = %d, want 1 (throttled)", updates)
	}
	if len(ids) != 3 {
		t.Errorf("distinct ids = %d, want 3", len(ids))
	}
}

func TestReplay(t *testing.T) {
	history := []frame{{id: "a"}, {id: "b"}, {id: "c"}}
	tests := []struct {
		after string
		want  []string
	}{
		{"", nil},
		{"a", []string{"b", "c"}},
		{"c", []string{}},
		{"gone", []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		got := replay(history, tt.after)
		ids := make([]string, len(got))
		for i, f := range got {
			ids[i] = f.id
		}
		if len(ids) != len(tt.want) || strings.Join(ids, ",") != strings.Join(tt.want, ",") {
			t.Errorf("replay(%q) = %v, want %v", tt.after, ids, tt.want)
		}
	}
}

func TestSubscribe_ResumesAfterLastEventID(t *testing.T) {
	b := NewBroker(time.Second, WithHistory(2))
	defer b.Close()

	for _, id := range []string{"run-1", "run-2", "run-3"} {
		b.Publish(Event{ID: id, Type: TypeSyncCompleted, Data: map[string]string{}})
	}
	// Let the loop record all three before joining.
	time.Sleep(50 * time.Millisecond)

	ch := b.Subscribe("run-2")
	defer b.Unsubscribe(ch)
	got := drain(ch)
	if len(got) != 1 || idOf(got[0]) != "run-3" {
		t.Fatalf("replay after run-2 = %q", got)
	}

	// run-1 fell out of a two-event history: everything still held replays.
	old := b.Subscribe("run-1")
	defer b.Unsubscribe(old)
	got = drain(old)
	if len(got) != 2 || idOf(got[0]) != "run-2" || idOf(got[1]) != "run-3" {
		t.Fatalf("replay after evicted id = %q", got)
	}
}

func TestServeHTTP(t *testing.T) {
	b := NewBroker(100*time.Millisecond, WithKeepAlive(20*time.Millisecond))
	defer b.Close()

	b.Publish(Event{ID: "run-1", Type: TypeSyncCompleted, Data: map[string]string{}})
	b.Publish(Event{ID: "run-2", Type: TypeGenerated, Data: map[string]string{}})
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/events?last_event_id=run-1", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if n := b.ClientCount(); n != 1 {
		t.Fatalf("clients = %d, want 1", n)
	}
	b.Publish(Event{Type: TypeSyncFailed, Data: map[string]string{"error": "disk full"}})
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	body := w.Body.String()
	if strings.Contains(body, "id: run-1\n") {
		t.Error("event before last_event_id was replayed")
	}
	for _, want := range []string{"id: run-2\n", "event: sync.failed", ": keep-alive\n\n"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q: %q", want, body)
		}
	}

	time.Sleep(50 * time.Millisecond)
	if n := b.ClientCount(); n != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublish_SlowClientDoesNotBlock(t *testing.T) {
	b := NewBroker(time.Second, WithHistory(0))
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	for i := 0; i < clientBuffer+10; i++ {
		b.Publish(Event{Type: TypeGenerated, Data: map[string]int{"i": i}})
	}
	if got := len(drain(ch)); got != clientBuffer {
		t.Errorf("buffered = %d, want %d", got, clientBuffer)
	}
}

func TestClose(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe("")
	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("subscriber channel should be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
	if b.ClientCount() != 0 {
		t.Fatal("expected 0 clients after close")
	}

	// No-ops after close.
	b.Publish(Event{Type: TypePageEdited, Data: map[string]string{"path": "x.md"}})
	b.PublishPageEvent("edited", "x.md")
	if _, ok := <-b.Subscribe(""); ok {
		t.Fatal("subscribe after close should return a closed channel")
	}
	b.Close()
}
