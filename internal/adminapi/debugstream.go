package adminapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Operators connect from dashboards on other origins; the surface is
	// expected to sit behind the deployment's own access control.
	CheckOrigin: func(*http.Request) bool { return true },
}

// streamRoom upgrades to a websocket and pushes the room's snapshot once
// a second until the client hangs up or the room is destroyed.
func (s *Server) streamRoom(w http.ResponseWriter, r *http.Request) {
	code, ok := s.roomCode(w, r)
	if !ok {
		return
	}
	if _, found := s.ctrl.Room(code); !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such room"})
		return
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("debug stream upgrade: %v", err)
		return
	}
	defer ws.Close()

	// Drain control frames so pings and close are processed.
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		snap, found := s.ctrl.Room(code)
		if !found {
			ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "room destroyed"),
				time.Now().Add(time.Second))
			return
		}
		ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := ws.WriteJSON(snap); err != nil {
			return
		}
	}
}
