package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type memInbox struct {
	seen map[string]bool
	err  error
}

func (m *memInbox) Record(_ context.Context, eventID, _ string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.seen[eventID] {
		return false, nil
	}
	m.seen[eventID] = true
	return true, nil
}

type recordingCache struct {
	mu  sync.Mutex
	ids []string
}

func (c *recordingCache) Invalidate(staffID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, staffID)
}

// sliceReader serves msgs then blocks until ctx is done.
type sliceReader struct {
	msgs   []kafka.Message
	closed bool
}

func (r *sliceReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *sliceReader) Close() error {
	r.closed = true
	return nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func staffMsg(eventID, body string) kafka.Message {
	return kafka.Message{
		Topic:   TopicStaffAvailabilityUpdated,
		Key:     []byte("staff-key"),
		Value:   []byte(body),
		Headers: []kafka.Header{{Key: "event_id", Value: []byte(eventID)}},
	}
}

func TestConsumerInvalidatesOncePerEvent(t *testing.T) {
	cache := &recordingCache{}
	reader := &sliceReader{msgs: []kafka.Message{
		staffMsg("evt-1", `{"staff_id":"staff-1"}`),
		staffMsg("evt-1", `{"staff_id":"staff-1"}`),
		staffMsg("evt-2", ``),
	}}
	c := NewWithReader(discard(), &memInbox{seen: map[string]bool{}}, reader, StaffAvailabilityHandler(cache, discard()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for {
		cache.mu.Lock()
		n := len(cache.ids)
		cache.mu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("timed out waiting for invalidations, got %d", n)
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	if cache.ids[0] != "staff-1" || cache.ids[1] != "staff-key" {
		t.Fatalf("unexpected invalidations: %v", cache.ids)
	}
	if !reader.closed {
		t.Fatalf("expected reader to be closed on shutdown")
	}
}

func TestConsumeSkipsHandlerOnInboxError(t *testing.T) {
	called := false
	c := NewWithReader(discard(), &memInbox{err: errors.New("db down")}, &sliceReader{}, func(context.Context, kafka.Message) error {
		called = true
		return nil
	})
	c.Consume(context.Background(), staffMsg("evt-1", `{}`))
	if called {
		t.Fatalf("handler must not run when the inbox fails")
	}
}

func TestStaffHandlerRejectsBadPayload(t *testing.T) {
	h := StaffAvailabilityHandler(&recordingCache{}, nil)
	if err := h(context.Background(), kafka.Message{Value: []byte("{")}); err == nil {
		t.Fatalf("expected decode error")
	}
	if err := h(context.Background(), kafka.Message{Value: []byte(`{}`)}); err == nil {
		t.Fatalf("expected error without staff id")
	}
}
