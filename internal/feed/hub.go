package feed

import (
	"sync"

	"github.com/park285/Cheese-Lichess-board/internal/session"
)

// Sink receives every frame after local subscribers. Publish must not block.
type Sink interface {
	Publish(Frame)
}

// Hub is a session.Observer that fans frames out to spectators.
// 느린 구독자는 프레임을 잃는다(세션을 막지 않음).
type Hub struct {
	mu        sync.RWMutex
	subs      map[int]chan Frame
	nextID    int
	latest    session.Snapshot
	hasLatest bool
	lastBoard Frame

	sinks   []Sink
	onCount func(int)
}

type HubOption func(*Hub)

func WithSink(s Sink) HubOption {
	return func(h *Hub) {
		if s != nil {
			h.sinks = append(h.sinks, s)
		}
	}
}

// WithSubscriberGauge reports the subscriber count after every change.
func WithSubscriberGauge(fn func(int)) HubOption {
	return func(h *Hub) { h.onCount = fn }
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{subs: make(map[int]chan Frame)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) Render(s session.Snapshot) {
	f := BoardFrame(s)
	h.mu.Lock()
	h.latest = s
	h.hasLatest = true
	h.lastBoard = f
	h.mu.Unlock()
	h.broadcast(f)
}

func (h *Hub) Notify(n session.Notice) {
	h.broadcast(NoticeFrame(n))
}

// Latest returns the most recent snapshot, if any was rendered.
func (h *Hub) Latest() (session.Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest, h.hasLatest
}

// Subscribe registers a spectator. The current board frame, when known, is
// queued first. The returned func unsubscribes and closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan Frame, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Frame, buffer)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	if h.hasLatest {
		ch <- h.lastBoard
	}
	n := len(h.subs)
	h.mu.Unlock()
	h.report(n)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			close(ch)
			n := len(h.subs)
			h.mu.Unlock()
			h.report(n)
		})
	}
}

func (h *Hub) broadcast(f Frame) {
	h.mu.RLock()
	for _, ch := range h.subs {
		select {
		case ch <- f:
		default:
		}
	}
	h.mu.RUnlock()
	for _, s := range h.sinks {
		s.Publish(f)
	}
}

func (h *Hub) report(n int) {
	if h.onCount != nil {
		h.onCount(n)
	}
}
