package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// dialPair spins an upgrade-only server and returns the client side of a
// connection plus the hub-registered server side.
func dialPair(t *testing.T, h *Hub) (*websocket.Conn, *Client) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	registered := make(chan *Client, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		registered <- h.Register(conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	select {
	case c := <-registered:
		return conn, c
	case <-time.After(2 * time.Second):
		t.Fatal("registration timed out")
		return nil, nil
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func assertSilent(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	var msg Message
	if err := conn.ReadJSON(&msg); err == nil {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestBroadcastAllInclusive(t *testing.T) {
	h := NewHub(zerolog.Nop())

	sender, senderClient := dialPair(t, h)
	peer, peerClient := dialPair(t, h)
	h.Subscribe(senderClient, "s1")
	h.Subscribe(peerClient, "s1")

	h.Broadcast("s1", Message{Event: EventTimerSync})

	if got := readEvent(t, sender); got.Event != EventTimerSync {
		t.Errorf("sender got %s", got.Event)
	}
	if got := readEvent(t, peer); got.Event != EventTimerSync {
		t.Errorf("peer got %s", got.Event)
	}
}

func TestBroadcastExceptExcludesSender(t *testing.T) {
	h := NewHub(zerolog.Nop())

	sender, senderClient := dialPair(t, h)
	peerA, peerAClient := dialPair(t, h)
	peerB, peerBClient := dialPair(t, h)
	h.Subscribe(senderClient, "s1")
	h.Subscribe(peerAClient, "s1")
	h.Subscribe(peerBClient, "s1")

	h.BroadcastExcept("s1", senderClient, Message{Event: EventCodeUpdate})

	if got := readEvent(t, peerA); got.Event != EventCodeUpdate {
		t.Errorf("peer A got %s", got.Event)
	}
	if got := readEvent(t, peerB); got.Event != EventCodeUpdate {
		t.Errorf("peer B got %s", got.Event)
	}
	assertSilent(t, sender)
}

func TestBroadcastScopedToRoom(t *testing.T) {
	h := NewHub(zerolog.Nop())

	inRoom, inClient := dialPair(t, h)
	outRoom, outClient := dialPair(t, h)
	h.Subscribe(inClient, "s1")
	h.Subscribe(outClient, "s2")

	h.Broadcast("s1", Message{Event: EventPasteAlert})

	if got := readEvent(t, inRoom); got.Event != EventPasteAlert {
		t.Errorf("room member got %s", got.Event)
	}
	assertSilent(t, outRoom)
}

func TestBroadcastLobbyReachesUnjoined(t *testing.T) {
	h := NewHub(zerolog.Nop())

	lobby, _ := dialPair(t, h)
	joined, joinedClient := dialPair(t, h)
	h.Subscribe(joinedClient, "s1")

	h.BroadcastLobby(Message{Event: EventSessionCreated})

	if got := readEvent(t, lobby); got.Event != EventSessionCreated {
		t.Errorf("lobby client got %s", got.Event)
	}
	if got := readEvent(t, joined); got.Event != EventSessionCreated {
		t.Errorf("joined client got %s", got.Event)
	}
}

func TestUnregisterLeavesRoom(t *testing.T) {
	h := NewHub(zerolog.Nop())

	_, a := dialPair(t, h)
	peer, b := dialPair(t, h)
	h.Subscribe(a, "s1")
	h.Subscribe(b, "s1")

	h.Unregister(a)

	if n := h.ClientCount(); n != 1 {
		t.Errorf("client count = %d, want 1", n)
	}
	h.Broadcast("s1", Message{Event: EventTimerSync})
	if got := readEvent(t, peer); got.Event != EventTimerSync {
		t.Errorf("remaining member got %s", got.Event)
	}
}
