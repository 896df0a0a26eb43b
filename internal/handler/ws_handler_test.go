package handler

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/kodelive/kodelive-backend/internal/challenge"
	"github.com/kodelive/kodelive-backend/internal/grading"
	"github.com/kodelive/kodelive-backend/internal/store"
	"github.com/kodelive/kodelive-backend/internal/ws"
)

type testServer struct {
	url      string
	sessions *store.SessionStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	catalog := challenge.Default()
	sessions := store.NewSessionStore(catalog, 300, 1800, zerolog.Nop())
	engine := grading.NewEngine(catalog)
	hub := ws.NewHub(zerolog.Nop())
	h := NewWSHandler(sessions, engine, hub, zerolog.Nop(), nil)

	r := gin.New()
	r.GET("/ws/v1/sessions/stream", h.SessionStream)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testServer{
		url:      "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/sessions/stream",
		sessions: sessions,
	}
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(ts.url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, payload interface{}) {
	t.Helper()
	if err := conn.WriteJSON(payload); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func recvEvent(t *testing.T, conn *websocket.Conn) ws.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg ws.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func expectEvent(t *testing.T, conn *websocket.Conn, event ws.Event) ws.Message {
	t.Helper()
	msg := recvEvent(t, conn)
	if msg.Event != event {
		t.Fatalf("event = %s, want %s (data: %v)", msg.Event, event, msg.Data)
	}
	return msg
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	var msg ws.Message
	if err := conn.ReadJSON(&msg); err == nil {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func dataField(t *testing.T, msg ws.Message, key string) interface{} {
	t.Helper()
	obj, ok := msg.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data is %T, want object", msg.Data)
	}
	return obj[key]
}

// createAndJoin runs the create-session / join-session handshake for one
// connection and returns the session id.
func createAndJoin(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	send(t, conn, ws.CreateSessionRequest{Action: ws.ActionCreateSession, SubjectName: "Ada", ChallengeID: "shopping-cart"})
	created := expectEvent(t, conn, ws.EventSessionCreated)
	id, _ := dataField(t, created, "id").(string)
	if id == "" {
		t.Fatal("missing session id in session-created")
	}

	send(t, conn, ws.JoinSessionRequest{Action: ws.ActionJoinSession, SessionID: id})
	expectEvent(t, conn, ws.EventSessionJoined)
	expectEvent(t, conn, ws.EventSessionsList)
	return id
}

// joinExisting attaches a second connection to an already-created session.
func joinExisting(t *testing.T, conn *websocket.Conn, id string) {
	t.Helper()
	send(t, conn, ws.JoinSessionRequest{Action: ws.ActionJoinSession, SessionID: id})
	expectEvent(t, conn, ws.EventSessionJoined)
	expectEvent(t, conn, ws.EventSessionsList)
}

func TestCreateAndJoinFlow(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)

	id := createAndJoin(t, conn)

	sess, ok := ts.sessions.Get(id)
	if !ok {
		t.Fatal("session missing from store")
	}
	if sess.SubjectName != "Ada" || sess.ChallengeID != "shopping-cart" {
		t.Errorf("stored session = %+v", sess)
	}
}

func TestJoinMissingAndExpired(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)

	send(t, conn, ws.JoinSessionRequest{Action: ws.ActionJoinSession, SessionID: "nope"})
	expectEvent(t, conn, ws.EventSessionNotFound)

	sess := ts.sessions.Create("Ada", "shopping-cart")
	ts.sessions.Complete(sess.ID, nil)

	send(t, conn, ws.JoinSessionRequest{Action: ws.ActionJoinSession, SessionID: sess.ID})
	expectEvent(t, conn, ws.EventSessionExpired)
}

func TestCodeChangeNotEchoedToSender(t *testing.T) {
	ts := newTestServer(t)
	editor := ts.dial(t)
	id := createAndJoin(t, editor)

	observer := ts.dial(t)
	joinExisting(t, observer, id)
	// The observer's join triggers a lobby-wide list refresh.
	expectEvent(t, editor, ws.EventSessionsList)

	send(t, editor, ws.CodeChangeRequest{Action: ws.ActionCodeChange, SessionID: id, Code: "edit-1"})

	update := expectEvent(t, observer, ws.EventCodeUpdate)
	if got := dataField(t, update, "code"); got != "edit-1" {
		t.Errorf("code = %v", got)
	}
	expectSilence(t, editor)

	sess, _ := ts.sessions.Get(id)
	if sess.Code != "edit-1" {
		t.Errorf("stored code = %q", sess.Code)
	}
}

func TestTimerUpdateBroadcastAllInclusive(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)
	id := createAndJoin(t, conn)

	send(t, conn, ws.TimerUpdateRequest{
		Action:                      ws.ActionTimerUpdate,
		SessionID:                   id,
		IsInstructionPhase:          false,
		CodingSecondsRemaining:      900,
		InstructionSecondsRemaining: 0,
	})

	sync := expectEvent(t, conn, ws.EventTimerSync)
	if got := dataField(t, sync, "coding_seconds_remaining"); got != float64(900) {
		t.Errorf("coding remaining = %v", got)
	}
}

func TestExecuteCodeResult(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)
	id := createAndJoin(t, conn)

	variant := challenge.VariantID("shopping-cart", "javascript")
	rs, _ := challenge.Default().Variant(variant)

	send(t, conn, ws.ExecuteCodeRequest{Action: ws.ActionExecuteCode, SessionID: id, Code: rs.StarterCode, VariantID: variant})

	result := expectEvent(t, conn, ws.EventExecutionResult)
	if got := dataField(t, result, "success"); got != true {
		t.Errorf("success = %v", got)
	}
	raw, _ := json.Marshal(dataField(t, result, "outcomes"))
	var outcomes []map[string]interface{}
	json.Unmarshal(raw, &outcomes)
	if len(outcomes) != len(rs.Rules) {
		t.Fatalf("got %d outcomes, want %d", len(outcomes), len(rs.Rules))
	}
	for _, o := range outcomes {
		if o["passed"] == true {
			t.Errorf("starter code passed bug %v", o["ordinal"])
		}
	}
	if got := dataField(t, result, "score"); got != float64(0) {
		t.Errorf("score = %v, want 0", got)
	}
}

func TestSubmitThenCodeChangeIsInert(t *testing.T) {
	ts := newTestServer(t)
	subject := ts.dial(t)
	id := createAndJoin(t, subject)

	observer := ts.dial(t)
	joinExisting(t, observer, id)
	expectEvent(t, subject, ws.EventSessionsList)

	send(t, subject, ws.TestSubmittedRequest{
		Action:      ws.ActionTestSubmitted,
		SessionID:   id,
		Score:       5,
		Percentage:  50,
		BugsPassed:  2,
		TotalBugs:   4,
		SecondsUsed: 240,
	})

	expectEvent(t, subject, ws.EventSubmissionResult)
	expectEvent(t, observer, ws.EventSubmissionResult)
	expectEvent(t, subject, ws.EventSessionsList)
	expectEvent(t, observer, ws.EventSessionsList)

	sess, _ := ts.sessions.Get(id)
	codeBefore := sess.Code

	// Accepted at the transport, but must not mutate or re-broadcast.
	send(t, subject, ws.CodeChangeRequest{Action: ws.ActionCodeChange, SessionID: id, Code: "too late"})
	expectSilence(t, observer)

	sess, _ = ts.sessions.Get(id)
	if sess.Code != codeBefore {
		t.Errorf("code mutated after completion: %q", sess.Code)
	}
}

func TestPasteAttemptAlert(t *testing.T) {
	ts := newTestServer(t)
	subject := ts.dial(t)
	id := createAndJoin(t, subject)

	observer := ts.dial(t)
	joinExisting(t, observer, id)
	expectEvent(t, subject, ws.EventSessionsList)

	send(t, subject, ws.PasteAttemptRequest{Action: ws.ActionPasteAttempt, SessionID: id})

	// All-inclusive: both parties see the alert.
	alert := expectEvent(t, observer, ws.EventPasteAlert)
	if got := dataField(t, alert, "subject_name"); got != "Ada" {
		t.Errorf("subject = %v", got)
	}
	if got := dataField(t, alert, "paste_attempts"); got != float64(1) {
		t.Errorf("count = %v", got)
	}
	expectEvent(t, subject, ws.EventPasteAlert)
}

func TestUnknownActionGetsError(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)

	send(t, conn, map[string]string{"action": "bogus"})
	expectEvent(t, conn, ws.EventError)
}
