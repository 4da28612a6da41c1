package lichess

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const gameFullLine = `{"type":"gameFull","id":"g1","initialFen":"startpos","white":{"id":"me","name":"me"},"black":{"aiLevel":3},"state":{"type":"gameState","moves":"e2e4","status":"started"}}`

func TestParseEvent(t *testing.T) {
	ev, err := ParseEvent([]byte(gameFullLine))
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if ev.Type != EventGameFull || ev.Full == nil || ev.State == nil {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if !ev.Full.Black.IsAI() || ev.Full.White.IsAI() {
		t.Fatalf("ai seat not detected")
	}
	if got := ev.State.MoveList(); len(got) != 1 || got[0] != "e2e4" {
		t.Fatalf("moves = %v", got)
	}

	ev, err = ParseEvent([]byte(`{"type":"gameState","moves":"e2e4 e7e5","status":"mate","winner":"white"}`))
	if err != nil || ev.State == nil || ev.State.Status != "mate" || ev.State.Winner != "white" {
		t.Fatalf("gameState: %+v err=%v", ev, err)
	}

	ev, err = ParseEvent([]byte(`{"type":"opponentGone","gone":true}`))
	if err != nil || ev.Type != EventOpponentGone || ev.State != nil {
		t.Fatalf("opponentGone: %+v err=%v", ev, err)
	}

	if _, err := ParseEvent([]byte(`{not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestStreamGameDeliversEventsAndSkipsKeepAlive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/bot/game/stream/g1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprintln(w, gameFullLine)
		fmt.Fprintln(w)
		fmt.Fprintln(w, `garbage`)
		fmt.Fprintln(w, `{"type":"gameState","moves":"e2e4 e7e5","status":"started"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "lip_x")
	var got []string
	err := c.StreamGame(context.Background(), "g1", func(ev Event) error {
		got = append(got, ev.Type)
		return nil
	})
	if !errors.Is(err, ErrStreamDisconnected) {
		t.Fatalf("err = %v", err)
	}
	if len(got) != 2 || got[0] != EventGameFull || got[1] != EventGameState {
		t.Fatalf("events = %v", got)
	}
}

func TestFollowGameReconnectsThenGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m := &recordingMetrics{}
	c := NewClient(srv.URL, "lip_x", WithStreamRetries(2), WithMetrics(m))
	err := c.FollowGame(context.Background(), "g1", func(Event) error { return nil })
	if !errors.Is(err, ErrStreamDisconnected) {
		t.Fatalf("err = %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
	if m.reconnects.Load() != 2 {
		t.Fatalf("reconnects = %d, want 2", m.reconnects.Load())
	}
}

func TestFollowGameStopsOnHandlerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, gameFullLine)
	}))
	defer srv.Close()

	stop := errors.New("stop")
	c := NewClient(srv.URL, "lip_x")
	if err := c.FollowGame(context.Background(), "g1", func(Event) error { return stop }); !errors.Is(err, stop) {
		t.Fatalf("err = %v", err)
	}
}

func TestFollowGameCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, gameFullLine)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(srv.URL, "lip_x")
	done := make(chan error, 1)
	go func() {
		done <- c.FollowGame(ctx, "g1", func(Event) error {
			cancel()
			return nil
		})
	}()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("FollowGame did not return after cancel")
	}
}

func TestFollowGameReconnectsAfterIdleStream(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			fmt.Fprintln(w, gameFullLine)
		}
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	m := &recordingMetrics{}
	c := NewClient(srv.URL, "lip_x",
		WithStreamIdleTimeout(100*time.Millisecond),
		WithStreamRetries(1),
		WithMetrics(m),
	)
	var events atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- c.StreamGame(context.Background(), "g1", func(Event) error {
			events.Add(1)
			return nil
		})
	}()
	select {
	case err := <-done:
		if !errors.Is(err, ErrStreamDisconnected) {
			t.Fatalf("StreamGame err = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("silent stream was never dropped")
	}
	if events.Load() != 1 {
		t.Fatalf("events = %d, want 1", events.Load())
	}

	calls.Store(0)
	go func() {
		done <- c.FollowGame(context.Background(), "g1", func(Event) error { return nil })
	}()
	select {
	case err := <-done:
		if !errors.Is(err, ErrStreamDisconnected) {
			t.Fatalf("FollowGame err = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("FollowGame did not give up")
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
	if m.reconnects.Load() != 1 {
		t.Fatalf("reconnects = %d, want 1", m.reconnects.Load())
	}
}

func TestStreamKeepAliveResetsIdleTimer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, gameFullLine)
		w.(http.Flusher).Flush()
		for i := 0; i < 8; i++ {
			time.Sleep(40 * time.Millisecond)
			fmt.Fprintln(w)
			w.(http.Flusher).Flush()
		}
		fmt.Fprintln(w, `{"type":"gameState","moves":"e2e4 e7e5","status":"started"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "lip_x", WithStreamIdleTimeout(150*time.Millisecond))
	var got []string
	err := c.StreamGame(context.Background(), "g1", func(ev Event) error {
		got = append(got, ev.Type)
		return nil
	})
	if !errors.Is(err, ErrStreamDisconnected) {
		t.Fatalf("err = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("events = %v; keepalives should hold the connection open", got)
	}
}
