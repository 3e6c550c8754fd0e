package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/phinguyen111/studytime/internal/domain"
	"github.com/phinguyen111/studytime/internal/infrastructure/auth"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	HandshakeTimeout: 3 * time.Second,
}

var (
	writeWait    = 10 * time.Second
	pongWait     = 30 * time.Second
	pingInterval = pongWait * 9 / 10
)

// PresenceHandler websocket transport for heartbeats. Each frame received on
// the connection is credited through the same accumulator as the HTTP
// endpoint.
type PresenceHandler struct {
	progressUseCase domain.ProgressUseCase
	jwtUtil         *auth.JWTUtil
	logger          *zap.Logger
}

func NewPresenceHandler(ProgressUseCase domain.ProgressUseCase, JWTUtil *auth.JWTUtil, logger *zap.Logger) *PresenceHandler {
	return &PresenceHandler{ProgressUseCase, JWTUtil, logger}
}

// HandlePresence upgrade and pump heartbeat frames
func (ph *PresenceHandler) HandlePresence(c echo.Context) error {
	user := ph.jwtUtil.ContextUser(c)
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	go pingRoutine(conn)
	go func() {
		defer conn.Close()
		for {
			post := new(HeartbeatPost)
			if err := conn.ReadJSON(post); err != nil {
				return
			}
			if post.CourseID == "" {
				post.CourseID = post.LangID
			}
			if post.CourseID == "" || post.LessonID == "" {
				continue
			}
			result, err := ph.progressUseCase.TrackHeartbeat(ctx, user, post.CourseID, post.LessonID)
			if err != nil {
				ph.logger.Warn("Failed to credit presence heartbeat", zap.Error(err), zap.String("user.id", user.ID))
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(result); err != nil {
				return
			}
		}
	}()
	return nil
}

func pingRoutine(conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for range ticker.C {
		if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
			return
		}
	}
}
