package hub

import (
	"errors"
	"testing"
)

type testWriter struct {
	writes int
	fail   bool
}

func (w *testWriter) Write(message []byte) error {
	w.writes++
	if w.fail {
		return errors.New("write failed")
	}
	return nil
}

func (w *testWriter) Close() error { return nil }

func TestHub_RegisterBroadcastUnregister(t *testing.T) {
	h := New()
	w1 := &testWriter{}
	w2 := &testWriter{}
	c1 := &Connection{Writer: w1}
	c2 := &Connection{Writer: w2}

	h.Register(c1)
	h.Register(c2)
	if h.Count() != 2 {
		t.Fatalf("expected 2 connections, got %d", h.Count())
	}

	h.Broadcast([]byte("x"))
	if w1.writes != 1 || w2.writes != 1 {
		t.Fatalf("expected both clients written, got %d and %d", w1.writes, w2.writes)
	}

	h.Unregister(c1)
	h.Broadcast([]byte("x"))
	if w1.writes != 1 {
		t.Fatalf("expected no more writes to removed client, got %d", w1.writes)
	}
	if w2.writes != 2 {
		t.Fatalf("expected second write to remaining client, got %d", w2.writes)
	}
}

func TestHub_RemovesFailedConnections(t *testing.T) {
	h := New()
	w1 := &testWriter{fail: true}
	c1 := &Connection{Writer: w1}
	h.Register(c1)

	h.Broadcast([]byte("x"))
	h.Broadcast([]byte("x"))
	if w1.writes != 1 {
		t.Fatalf("expected only 1 write before removal, got %d", w1.writes)
	}
	if h.Count() != 0 {
		t.Fatalf("expected failed client dropped, got %d", h.Count())
	}
}
