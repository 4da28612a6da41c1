package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/Cheese-Lichess-board/internal/board"
	"github.com/park285/Cheese-Lichess-board/internal/session"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w"

func runningSnapshot() session.Snapshot {
	return session.Snapshot{
		State:     session.InProgress,
		GameID:    "g1",
		Level:     2,
		Board:     board.Start(),
		Turn:      board.White,
		LocalSide: board.White,
	}
}

type captureSink struct{ frames []Frame }

func (c *captureSink) Publish(f Frame) { c.frames = append(c.frames, f) }

func TestHubSubscribeGetsLatestFirst(t *testing.T) {
	var counts []int
	sink := &captureSink{}
	h := NewHub(WithSink(sink), WithSubscriberGauge(func(n int) { counts = append(counts, n) }))
	h.Render(runningSnapshot())

	ch, unsubscribe := h.Subscribe(4)
	first := <-ch
	if first.Kind != KindBoard || first.FEN != startFEN || first.LocalSide != "white" {
		t.Fatalf("unexpected first frame: %+v", first)
	}

	h.Notify(session.Notice{Key: "stream.lost", Text: "lost", GameID: "g1"})
	if f := <-ch; f.Kind != KindNotice || f.NoticeKey != "stream.lost" {
		t.Fatalf("unexpected notice frame: %+v", f)
	}
	unsubscribe()
	unsubscribe()
	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed")
	}
	if len(counts) != 2 || counts[0] != 1 || counts[1] != 0 {
		t.Fatalf("gauge reports = %v", counts)
	}
	if len(sink.frames) != 2 {
		t.Fatalf("sink frames = %d", len(sink.frames))
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h := NewHub()
	ch, unsubscribe := h.Subscribe(1)
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			h.Render(runningSnapshot())
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("broadcast blocked on a full subscriber")
	}
	if len(ch) != 1 {
		t.Fatalf("buffered = %d, want 1", len(ch))
	}
}

func TestServerFENAndPNG(t *testing.T) {
	h := NewHub()
	srv := httptest.NewServer(NewServer(h, nil, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/board.fen")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status before first render = %d", resp.StatusCode)
	}

	h.Render(runningSnapshot())
	resp, err = http.Get(srv.URL + "/board.fen")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != startFEN {
		t.Fatalf("fen = %q", body)
	}

	resp, err = http.Get(srv.URL + "/board.png")
	if err != nil {
		t.Fatalf("get png: %v", err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("content type = %q", resp.Header.Get("Content-Type"))
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Fatalf("decode png: %v", err)
	}

	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz = %d", resp.StatusCode)
	}
}

func TestServerMetricsRoute(t *testing.T) {
	called := false
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		_, _ = w.Write([]byte("# ok\n"))
	})
	srv := httptest.NewServer(NewServer(NewHub(), nil, metrics).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if !called {
		t.Fatalf("metrics handler not mounted")
	}
}

func TestServerWebSocketStreamsFrames(t *testing.T) {
	h := NewHub()
	h.Render(runningSnapshot())
	srv := httptest.NewServer(NewServer(h, nil, nil).Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	var f Frame
	if err := wsjson.Read(ctx, conn, &f); err != nil {
		t.Fatalf("read latest: %v", err)
	}
	if f.Kind != KindBoard || f.GameID != "g1" {
		t.Fatalf("latest frame = %+v", f)
	}

	h.Notify(session.Notice{Key: "game.end.mate", Text: "Checkmate.", GameID: "g1"})
	if err := wsjson.Read(ctx, conn, &f); err != nil {
		t.Fatalf("read notice: %v", err)
	}
	if f.Kind != KindNotice || f.Text != "Checkmate." {
		t.Fatalf("notice frame = %+v", f)
	}
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisPublisherPublishesPerGame(t *testing.T) {
	rdb := newTestRedis(t)
	pub := NewRedisPublisher(rdb, "lichess:feed:", 8)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sub := rdb.Subscribe(ctx, pub.Channel("g1"))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	pub.Publish(Frame{Kind: KindNotice, Text: "no game id"})
	pub.Publish(BoardFrame(runningSnapshot()))
	pub.Close()

	msg, err := sub.ReceiveMessage(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if msg.Channel != "lichess:feed:g1" {
		t.Fatalf("channel = %q", msg.Channel)
	}
	var f Frame
	if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if f.Kind != KindBoard || f.FEN != startFEN {
		t.Fatalf("frame = %+v", f)
	}
}

func TestParseRedisURL(t *testing.T) {
	opts, err := ParseRedisURL("redis://:secret@localhost:6380/2")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opts.Addr != "localhost:6380" || opts.Password != "secret" || opts.DB != 2 {
		t.Fatalf("options = %+v", opts)
	}
	if opts, err := ParseRedisURL("rediss://cache:6379"); err != nil || opts.TLSConfig == nil {
		t.Fatalf("rediss: %+v %v", opts, err)
	}
	for _, bad := range []string{"http://localhost:6379", "redis://", "redis://localhost:6379/x"} {
		if _, err := ParseRedisURL(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
