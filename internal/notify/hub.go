package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
)

// subscriberBuffer is how many undelivered messages a slow subscriber may
// hold before newer ones are dropped for it.
const subscriberBuffer = 8

// Hub delivers refresh messages to in-process subscribers, one set per
// board. The display websocket feed subscribes here.
type Hub struct {
	mu     sync.Mutex
	subs   map[model.Board]map[chan Message]struct{}
	now    func() time.Time
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: map[model.Board]map[chan Message]struct{}{}, now: time.Now}
}

// Subscribe returns a channel of messages for board and a function that
// unsubscribes and closes it.
func (h *Hub) Subscribe(board model.Board) (<-chan Message, func()) {
	ch := make(chan Message, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	if h.subs[board] == nil {
		h.subs[board] = map[chan Message]struct{}{}
	}
	h.subs[board][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[board][ch]; ok {
				delete(h.subs[board], ch)
				close(ch)
			}
		})
	}
}

// Subscribers reports how many subscribers board has.
func (h *Hub) Subscribers(board model.Board) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[board])
}

func (h *Hub) BoardChanged(_ context.Context, board model.Board, reason string) {
	msg := Message{Type: "refresh", Board: board, Reason: reason, Timestamp: h.now().UTC()}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[board] {
		select {
		case ch <- msg:
		default:
			log.Warn().Str("board", string(board)).Msg("display subscriber is behind, dropping refresh message")
		}
	}
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, set := range h.subs {
		for ch := range set {
			close(ch)
		}
	}
	h.subs = map[model.Board]map[chan Message]struct{}{}
}
