package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Mikey786/Mediasoup/internal/bus"
	"github.com/Mikey786/Mediasoup/internal/config"
	"github.com/Mikey786/Mediasoup/internal/directory"
	"github.com/Mikey786/Mediasoup/internal/events"
	"github.com/Mikey786/Mediasoup/internal/session"
	"github.com/Mikey786/Mediasoup/internal/sfu"
	"github.com/Mikey786/Mediasoup/pkg/log"
	"github.com/Mikey786/Mediasoup/pkg/response"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// Handler handles the WebSocket endpoint and the read-only HTTP API.
type Handler struct {
	dir    directory.Directory
	sfu    *sfu.Client
	bus    bus.Bus
	events events.Producer
	wsCfg  config.WebSocketConfig
}

// NewHandler creates a new handler.
func NewHandler(dir directory.Directory, sfuClient *sfu.Client, b bus.Bus, producer events.Producer, wsCfg config.WebSocketConfig) *Handler {
	return &Handler{
		dir:    dir,
		sfu:    sfuClient,
		bus:    b,
		events: producer,
		wsCfg:  wsCfg,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws/interview/:room_name/:client_id/", h.HandleWebSocket)
	r.GET("/ws/interview/:room_name/:client_id", h.HandleWebSocket)

	api := r.Group("/api/v1")
	{
		api.GET("/rooms/:room_name/participants", h.ListParticipants)
	}
}

// HandleWebSocket upgrades the connection and runs the signaling session on
// the caller's goroutine until the client disconnects.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	l := log.Ctx(c.Request.Context())

	roomName := pathParam(c, "room_name")
	clientID := pathParam(c, "client_id")
	if roomName == "" || clientID == "" {
		response.BadRequest(c, "room_name and client_id are required")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	wsConn := session.NewWSConn(conn, h.wsCfg)
	go wsConn.WritePump()

	sess := session.New(wsConn, h.dir, h.sfu, h.bus, h.events, roomName, clientID)
	sess.Run(c.Request.Context(), wsConn)
}

// ListParticipants returns the current roster of a room.
func (h *Handler) ListParticipants(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	roomName := pathParam(c, "room_name")

	room, err := h.dir.RoomByName(ctx, roomName)
	if err != nil {
		if errors.Is(err, directory.ErrRoomNotFound) {
			response.NotFound(c, "room not found")
			return
		}
		l.Error().Err(err).Str(log.FieldRoom, roomName).Msg("failed to look up room")
		response.InternalError(c, "failed to look up room")
		return
	}

	participants, err := h.dir.ListParticipants(ctx, room.ID)
	if err != nil {
		l.Error().Err(err).Str(log.FieldRoom, roomName).Msg("failed to list participants")
		response.InternalError(c, "failed to list participants")
		return
	}

	response.Success(c, gin.H{
		"room":         room.Name,
		"hostClientId": room.HostClientID,
		"participants": participants,
	})
}

// pathParam returns an unescaped path parameter. Gin hands back the raw
// segment, so percent-encoded room names and client ids need decoding.
func pathParam(c *gin.Context, name string) string {
	raw := c.Param(name)
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}
