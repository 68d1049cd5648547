package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sociowire/internal/app/realtime"
)

// stubRefetcher counts resync round-trips and returns fixed counts.
type stubRefetcher struct {
	mu        sync.Mutex
	chatCalls int
	noteCalls int
}

func (s *stubRefetcher) UnreadChats(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chatCalls++
	return 3, nil
}

func (s *stubRefetcher) UnreadNotifications(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.noteCalls++
	return 5, nil
}

func (s *stubRefetcher) calls() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.chatCalls, s.noteCalls
}

func TestRunReannouncesAndResyncsAfterReconnect(t *testing.T) {
	announces := make(chan string, 4)
	var connSeq int32

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		seq := atomic.AddInt32(&connSeq, 1)

		for {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var env realtime.Envelope
			if json.Unmarshal(frame, &env) != nil || env.Event != realtime.EventAddUser {
				continue
			}

			var userID string
			if json.Unmarshal(env.Payload, &userID) != nil {
				continue
			}
			announces <- userID

			// Drop the first connection right after its announce to force
			// the reconnect path.
			if seq == 1 {
				return
			}
		}
	}))
	defer srv.Close()

	ref := &stubRefetcher{}
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := New(wsURL, "alice", ref, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	awaitAnnounce := func() {
		select {
		case userID := <-announces:
			assert.Equal(t, "alice", userID)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for addUser announce")
		}
	}

	// First connection announces, then the server drops it; the client must
	// come back with a fresh announce.
	awaitAnnounce()
	awaitAnnounce()

	// Every connect resyncs both counts; the gap may have swallowed events.
	require.Eventually(t, func() bool {
		chats, notes := ref.calls()
		return chats >= 2 && notes >= 2
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, 3, c.State().UnreadChats())
	assert.Equal(t, 5, c.State().UnreadNotifications())
}
