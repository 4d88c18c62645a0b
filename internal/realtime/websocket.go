package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	ActionJoinRoom  = "join-room"
	ActionLeaveRoom = "leave-room"

	writeWait    = 10 * time.Second
	maxFrameSize = 4096
)

// JoinAuthorizer decides whether a user may join a room. A nil authorizer
// lets any authenticated session join any room.
type JoinAuthorizer interface {
	AuthorizeJoin(ctx context.Context, userID uint, room string) error
}

type ConnOptions struct {
	PingInterval time.Duration
	Authorizer   JoinAuthorizer
}

// ClientFrame is the only message a client sends.
type ClientFrame struct {
	Action string `json:"action"`
	Room   string `json:"room"`
}

type errorPayload struct {
	Msg string `json:"msg"`
}

// ServeConn reads client frames until the connection closes, then drops
// the session from every room.
func (r *Router) ServeConn(ctx context.Context, conn *websocket.Conn, session *ChanSession, opts ConnOptions) {
	ping := opts.PingInterval
	if ping <= 0 {
		ping = 30 * time.Second
	}
	pongWait := ping * 2

	r.Attach(session)
	defer func() {
		r.Drop(session)
		session.Close()
		conn.Close()
	}()

	go r.writePump(conn, session, ping)

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				r.log.Warn().Err(err).Str("session", session.ID()).Msg("websocket closed unexpectedly")
			}
			return
		}

		var frame ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			r.reply(session, EventError, "", "malformed frame")
			continue
		}
		r.HandleFrame(ctx, session, frame, opts.Authorizer)
	}
}

// HandleFrame applies one client frame to the router.
func (r *Router) HandleFrame(ctx context.Context, session *ChanSession, frame ClientFrame, auth JoinAuthorizer) {
	room := strings.TrimSpace(frame.Room)
	if room == "" {
		r.reply(session, EventError, "", "room is required")
		return
	}

	switch frame.Action {
	case ActionJoinRoom:
		if auth != nil {
			if err := auth.AuthorizeJoin(ctx, session.UserID(), room); err != nil {
				r.log.Info().Uint("user_id", session.UserID()).Str("room", room).Err(err).Msg("join refused")
				r.reply(session, EventError, room, err.Error())
				return
			}
		}
		r.Join(session, room)
		r.log.Debug().Str("session", session.ID()).Str("room", room).Int("size", r.RoomSize(room)).Msg("joined room")
		r.reply(session, EventJoined, room, "")
	case ActionLeaveRoom:
		r.Leave(session, room)
		r.reply(session, EventLeft, room, "")
	default:
		r.reply(session, EventError, room, "unknown action")
	}
}

func (r *Router) reply(session *ChanSession, event, room, errMsg string) {
	msg := Message{Event: event, Room: room}
	if errMsg != "" {
		msg.Payload, _ = json.Marshal(errorPayload{Msg: errMsg})
	}
	session.Send(msg)
}

func (r *Router) writePump(conn *websocket.Conn, session *ChanSession, ping time.Duration) {
	ticker := time.NewTicker(ping)
	defer func() {
		ticker.Stop()
		session.Close()
		conn.Close()
	}()

	for {
		select {
		case msg := <-session.Messages():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-session.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
