package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type denyRoom struct{ room string }

func (d denyRoom) AuthorizeJoin(_ context.Context, _ uint, room string) error {
	if room == d.room {
		return errors.New("you are not a member of this project")
	}
	return nil
}

func TestHandleFrame(t *testing.T) {
	r := NewRouter()
	s := NewChanSession(1, 8)
	ctx := context.Background()

	r.HandleFrame(ctx, s, ClientFrame{Action: ActionJoinRoom, Room: " 10 "}, nil)
	if r.RoomSize("10") != 1 {
		t.Fatal("join-room should add the session to the room")
	}
	if msg := <-s.Messages(); msg.Event != EventJoined || msg.Room != "10" {
		t.Errorf("ack = %+v", msg)
	}

	r.HandleFrame(ctx, s, ClientFrame{Action: ActionLeaveRoom, Room: "10"}, nil)
	if r.RoomSize("10") != 0 {
		t.Error("leave-room should remove the session")
	}
	<-s.Messages()

	r.HandleFrame(ctx, s, ClientFrame{Action: "dance", Room: "10"}, nil)
	if msg := <-s.Messages(); msg.Event != EventError {
		t.Errorf("unknown action reply = %+v", msg)
	}

	r.HandleFrame(ctx, s, ClientFrame{Action: ActionJoinRoom}, nil)
	if msg := <-s.Messages(); msg.Event != EventError {
		t.Errorf("missing room reply = %+v", msg)
	}
}

func TestHandleFrame_Authorizer(t *testing.T) {
	r := NewRouter()
	s := NewChanSession(1, 8)

	r.HandleFrame(context.Background(), s, ClientFrame{Action: ActionJoinRoom, Room: "secret"}, denyRoom{room: "secret"})
	if r.RoomSize("secret") != 0 {
		t.Error("refused join must not add the session")
	}
	msg := <-s.Messages()
	if msg.Event != EventError || !strings.Contains(string(msg.Payload), "not a member") {
		t.Errorf("reply = %+v", msg)
	}

	r.HandleFrame(context.Background(), s, ClientFrame{Action: ActionJoinRoom, Room: "open"}, denyRoom{room: "secret"})
	if r.RoomSize("open") != 1 {
		t.Error("authorized join should succeed")
	}
}

func TestServeConn_EndToEnd(t *testing.T) {
	r := NewRouter()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		r.ServeConn(req.Context(), conn, NewChanSession(1, 8), ConnOptions{PingInterval: time.Second})
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	dial := func() *websocket.Conn {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		return conn
	}
	readMsg := func(conn *websocket.Conn) Message {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		return msg
	}

	a, b := dial(), dial()
	defer a.Close()
	defer b.Close()

	for _, c := range []*websocket.Conn{a, b} {
		if err := c.WriteJSON(ClientFrame{Action: ActionJoinRoom, Room: "P"}); err != nil {
			t.Fatal(err)
		}
		if msg := readMsg(c); msg.Event != EventJoined {
			t.Fatalf("expected joined ack, got %+v", msg)
		}
	}

	if err := r.Broadcast(context.Background(), "P", EventTaskCompleted, map[string]interface{}{"id": 7, "completed": true}); err != nil {
		t.Fatal(err)
	}

	for _, c := range []*websocket.Conn{a, b} {
		msg := readMsg(c)
		if msg.Event != EventTaskCompleted {
			t.Fatalf("event = %q, expected %q", msg.Event, EventTaskCompleted)
		}
		var payload struct {
			ID        int  `json:"id"`
			Completed bool `json:"completed"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.ID != 7 || !payload.Completed {
			t.Errorf("payload = %s", msg.Payload)
		}
	}

	if err := a.WriteMessage(websocket.TextMessage, []byte("{broken")); err != nil {
		t.Fatal(err)
	}
	if msg := readMsg(a); msg.Event != EventError {
		t.Errorf("malformed frame reply = %+v", msg)
	}

	a.Close()
	deadline := time.Now().Add(3 * time.Second)
	for r.RoomSize("P") != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if r.RoomSize("P") != 1 {
		t.Errorf("closed connection should leave the room, size = %d", r.RoomSize("P"))
	}
}

func TestServeConn_CountsUnjoinedConnection(t *testing.T) {
	r := NewRouter()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		r.ServeConn(req.Context(), conn, NewChanSession(1, 8), ConnOptions{PingInterval: time.Second})
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	waitFor := func(want int) bool {
		deadline := time.Now().Add(3 * time.Second)
		for r.SessionCount() != want && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		return r.SessionCount() == want
	}

	if !waitFor(1) {
		t.Fatalf("SessionCount = %d, expected the open connection to be counted", r.SessionCount())
	}
	if r.RoomCount() != 0 {
		t.Errorf("RoomCount = %d, expected 0", r.RoomCount())
	}

	conn.Close()
	if !waitFor(0) {
		t.Errorf("SessionCount after close = %d, expected 0", r.SessionCount())
	}
}
