package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/pelada-app/pelada-system/realtime"
	"github.com/pelada-app/pelada-system/snapshot"
)

// Events are joinable by anyone with the link, so the socket accepts any
// origin; CORS on the HTTP surface is governed separately.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	hub   *realtime.Hub
	cache *snapshot.Cache
}

func NewWebSocketHandler(hub *realtime.Hub, cache *snapshot.Cache) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, cache: cache}
}

// ServeWs godoc
// @Summary Subscribe to live updates for one event
// @Description Upgrades to a websocket and pushes the event every time the snapshot refreshes.
// @Tags realtime
// @Param eventID path int true "Event ID"
// @Success 101 "Switching protocols"
// @Failure 404 {object} map[string]string "Unknown event"
// @Router /ws/events/{eventID} [get]
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	eventID, err := getIDFromURL(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	event, ok := h.cache.GetEvent(eventID)
	if !ok {
		notFoundResponse(w, r)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed",
			slog.Int("event_id", eventID), slog.Any("error", err))
		return
	}

	room := realtime.EventRoom(eventID)
	client := &realtime.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: room,
	}
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()

	// Send the current state immediately so the subscriber does not wait
	// for the next refresh.
	h.hub.BroadcastToRoom(room, realtime.Message{
		Type:    realtime.MessageEventUpdated,
		Payload: event,
		RoomID:  room,
	})
}
