package http

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/intelogroup/usmle-trivia-sub009/internal/app"
	"github.com/intelogroup/usmle-trivia-sub009/internal/domain"
)

const feedRankLimit = 25

// LeaderboardFeed is the best-effort analytics surface: it consumes
// session-completed events, recomputes the leaderboard, and pushes it to
// websocket subscribers. Every path is non-blocking so a slow or absent
// consumer can never fail a completion.
type LeaderboardFeed struct {
	board    *app.LeaderboardAggregator
	upgrader websocket.Upgrader

	mu          sync.Mutex
	subscribers map[chan []domain.LeaderboardEntry]struct{}
}

func NewLeaderboardFeed(board *app.LeaderboardAggregator) *LeaderboardFeed {
	return &LeaderboardFeed{
		board: board,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		subscribers: make(map[chan []domain.LeaderboardEntry]struct{}),
	}
}

// SessionCompleted implements app.EventSink. The refresh runs on its own
// goroutine with a bounded deadline; errors are logged and dropped.
func (f *LeaderboardFeed) SessionCompleted(event domain.SessionCompletedEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		entries, err := f.board.Rank(ctx, feedRankLimit)
		if err != nil {
			log.Printf("leaderboard refresh after session %s: %v", event.SessionID, err)
			return
		}
		f.broadcast(entries)
	}()
}

func (f *LeaderboardFeed) broadcast(entries []domain.LeaderboardEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- entries:
		default:
			// Drop the stale update so a slow client never blocks broadcast.
			select {
			case <-ch:
			default:
			}
			ch <- entries
		}
	}
}

func (f *LeaderboardFeed) subscribe() (<-chan []domain.LeaderboardEntry, func()) {
	ch := make(chan []domain.LeaderboardEntry, 8)
	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

type feedMessage struct {
	Type    string                    `json:"type"`
	Payload []domain.LeaderboardEntry `json:"payload"`
}

// ServeWS upgrades the request and streams leaderboard updates until the
// client disconnects. The first frame is the current standings.
func (f *LeaderboardFeed) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	entries, err := f.board.Rank(r.Context(), feedRankLimit)
	if err != nil {
		log.Printf("initial leaderboard: %v", err)
		return
	}
	if err := conn.WriteJSON(feedMessage{Type: "leaderboard", Payload: entries}); err != nil {
		return
	}

	updates, cancel := f.subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Reads only serve to detect disconnects; clients send nothing.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(feedMessage{Type: "leaderboard", Payload: update}); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
