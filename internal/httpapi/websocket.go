package httpapi

import (
	"net/http"

	internalws "github.com/dafibh/fortuna/fortuna-backend/internal/websocket"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler upgrades clients onto the engine's change feed (spec §2
// ambient stack: ledger/allocation mutations broadcast over the existing
// gorilla/websocket hub). There is no per-connection auth, per spec §1 —
// only the CORS origin check the teacher's handler already performed.
type WebSocketHandler struct {
	hub            *internalws.Hub
	allowedOrigins map[string]bool
	upgrader       websocket.Upgrader
}

// NewWebSocketHandler constructs a WebSocketHandler.
func NewWebSocketHandler(hub *internalws.Hub, allowedOrigins []string) *WebSocketHandler {
	originMap := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		originMap[origin] = true
	}

	h := &WebSocketHandler{hub: hub, allowedOrigins: originMap}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if h.allowedOrigins[origin] {
		return true
	}
	log.Warn().Str("origin", origin).Msg("websocket connection rejected: origin not allowed")
	return false
}

// HandleWS handles GET /ws, upgrading the connection and subscribing it to
// every broadcast change event.
func (h *WebSocketHandler) HandleWS(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return err
	}

	client := internalws.NewClient(conn, h.hub)
	h.hub.Register(client)
	log.Info().Str("client_id", client.ID()).Msg("websocket client connected")

	go client.WritePump()
	go client.ReadPump()
	return nil
}
