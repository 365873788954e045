// Package adminapi is the operator control plane: JSON routes for room
// lifecycle and inspection, plus a websocket diagnostics stream.
package adminapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"gamecore/internal/codec"
	"gamecore/internal/log"
	"gamecore/internal/room"
)

// Controller is the slice of worker behavior the admin surface drives.
type Controller interface {
	Rooms() []room.Snapshot
	Room(code int32) (room.Snapshot, bool)
	CreateRoom(settings codec.GameSettings) (int32, error)
	DestroyRoom(code int32, reason string) error
}

// Server routes admin HTTP traffic.
type Server struct {
	ctrl   Controller
	logger log.Logger
	router *mux.Router
}

// New wires the route table.
func New(ctrl Controller, logger log.Logger) *Server {
	s := &Server{ctrl: ctrl, logger: logger, router: mux.NewRouter()}
	s.router.HandleFunc("/rooms", s.listRooms).Methods(http.MethodGet)
	s.router.HandleFunc("/rooms", s.createRoom).Methods(http.MethodPost)
	s.router.HandleFunc("/rooms/{code}", s.getRoom).Methods(http.MethodGet)
	s.router.HandleFunc("/rooms/{code}", s.destroyRoom).Methods(http.MethodDelete)
	s.router.HandleFunc("/debug/rooms/{code}/stream", s.streamRoom).Methods(http.MethodGet)
	return s
}

// Handler exposes the router for http.Serve.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) listRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Rooms())
}

func (s *Server) getRoom(w http.ResponseWriter, r *http.Request) {
	code, ok := s.roomCode(w, r)
	if !ok {
		return
	}
	snap, found := s.ctrl.Room(code)
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such room"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type createRoomRequest struct {
	MaxPlayers    uint8 `json:"max_players"`
	MapID         uint8 `json:"map_id"`
	ImpostorCount uint8 `json:"impostor_count"`
}

func (s *Server) createRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	settings := codec.GameSettings{
		MaxPlayers:    req.MaxPlayers,
		MapID:         req.MapID,
		ImpostorCount: req.ImpostorCount,
	}
	if settings.MaxPlayers == 0 {
		settings.MaxPlayers = 10
	}
	code, err := s.ctrl.CreateRoom(settings)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	display, _ := codec.Int2Code(code)
	writeJSON(w, http.StatusCreated, map[string]interface{}{"code": code, "code_string": display})
}

func (s *Server) destroyRoom(w http.ResponseWriter, r *http.Request) {
	code, ok := s.roomCode(w, r)
	if !ok {
		return
	}
	if err := s.ctrl.DestroyRoom(code, "admin destroy"); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// roomCode accepts either the display string ("ABCDEF") or the packed
// integer form.
func (s *Server) roomCode(w http.ResponseWriter, r *http.Request) (int32, bool) {
	raw := mux.Vars(r)["code"]
	code, err := codec.Code2Int(raw)
	if err != nil {
		n, perr := strconv.ParseInt(raw, 10, 32)
		if perr != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad room code"})
			return 0, false
		}
		code = int32(n)
	}
	return code, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
