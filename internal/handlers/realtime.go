package handlers

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/huangang/uptask/internal/config"
	"github.com/huangang/uptask/internal/middleware"
	"github.com/huangang/uptask/internal/realtime"
	"github.com/huangang/uptask/pkg/logger"
	"github.com/huangang/uptask/pkg/response"
)

// RealtimeHandler exposes the broadcast router over WebSocket and SSE.
type RealtimeHandler struct {
	router     *realtime.Router
	upgrader   websocket.Upgrader
	opts       realtime.ConnOptions
	sendBuffer int
}

// NewRealtimeHandler builds the transport handlers. authorizer is consulted
// on every join only when cfg.AuthorizeJoin is set.
func NewRealtimeHandler(router *realtime.Router, authorizer realtime.JoinAuthorizer, cfg *config.RealtimeConfig, frontendURL string) *RealtimeHandler {
	opts := realtime.ConnOptions{PingInterval: time.Duration(cfg.PingSeconds) * time.Second}
	if cfg.AuthorizeJoin {
		opts.Authorizer = authorizer
	}
	origins := allowedOrigins(frontendURL)
	return &RealtimeHandler{
		router: router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(origins, r.Header.Get("Origin"))
			},
		},
		opts:       opts,
		sendBuffer: cfg.SendBuffer,
	}
}

// allowedOrigins returns nil when any origin is accepted.
func allowedOrigins(frontendURL string) []string {
	var origins []string
	for _, o := range strings.Split(frontendURL, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			return nil
		}
		if o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func originAllowed(origins []string, origin string) bool {
	if origin == "" || origins == nil {
		return true
	}
	for _, o := range origins {
		if strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// ServeWebSocket upgrades the request and serves join-room/leave-room frames
// until the client disconnects.
// GET /api/realtime?token=
func (h *RealtimeHandler) ServeWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	session := realtime.NewChanSession(middleware.GetUserID(c), h.sendBuffer)
	logger.Info().Str("session", session.ID()).Uint("user_id", session.UserID()).Msg("realtime client connected")

	h.router.ServeConn(c.Request.Context(), conn, session, h.opts)

	logger.Info().Str("session", session.ID()).Msg("realtime client disconnected")
}

// StreamProject is a one-room subscription for clients that only need to
// listen. Each router message is written as an SSE event named after it.
// GET /api/events/projects/:id?token=
func (h *RealtimeHandler) StreamProject(c *gin.Context) {
	projectID, ok := parseID(c, "id", "project")
	if !ok {
		return
	}
	room := realtime.RoomFor(projectID)
	userID := middleware.GetUserID(c)

	if h.opts.Authorizer != nil {
		if err := h.opts.Authorizer.AuthorizeJoin(c.Request.Context(), userID, room); err != nil {
			response.Error(c, err)
			return
		}
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	session := realtime.NewChanSession(userID, h.sendBuffer)
	h.router.Join(session, room)
	defer func() {
		h.router.Drop(session)
		session.Close()
	}()

	logger.Info().Str("session", session.ID()).Str("room", room).Msg("SSE client connected")

	ping := h.opts.PingInterval
	if ping <= 0 {
		ping = 30 * time.Second
	}
	ticker := time.NewTicker(ping)
	defer ticker.Stop()

	c.SSEvent(realtime.EventJoined, realtime.Message{Event: realtime.EventJoined, Room: room})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case msg := <-session.Messages():
			c.SSEvent(msg.Event, msg)
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		case <-session.Done():
			return false
		case <-c.Request.Context().Done():
			logger.Info().Str("session", session.ID()).Msg("SSE client disconnected")
			return false
		}
	})
}
