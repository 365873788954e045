// Package worker is the process-wide owner of the transport, the default
// decoder tables, and the room registry. It routes every inbound
// datagram to the owning connection and room, creates and destroys
// rooms, and hosts the global plugin/event hub. The registry is a
// code-keyed map behind one mutex; each room runs its own dispatch
// goroutine.
package worker

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/xerrors"

	"gamecore/internal/auth"
	"gamecore/internal/codec"
	"gamecore/internal/config"
	"gamecore/internal/log"
	"gamecore/internal/metricsapi"
	"gamecore/internal/object"
	"gamecore/internal/room"
	"gamecore/internal/session"
	"gamecore/internal/transport"
)

// Worker ties the transport, session table and room registry together.
type Worker struct {
	cfg     *config.WorkerConfig
	logger  log.Logger
	hub     *room.Hub
	authAPI auth.API
	metrics metricsapi.Sink

	sessions  *session.Registry
	transport *transport.Transport
	prefabs   *codec.Registry[uint32, object.Prefab]

	mu    sync.Mutex
	rooms map[int32]*room.Room
	conns map[string]*session.Connection

	rnd *rand.Rand
}

// New builds a worker. authAPI and metrics may be nil; rooms then run
// without authenticated identities and discard infraction batches.
func New(cfg *config.WorkerConfig, logger log.Logger, authAPI auth.API, metrics metricsapi.Sink) *Worker {
	return &Worker{
		cfg:      cfg,
		logger:   logger,
		hub:      room.NewHub(),
		authAPI:  authAPI,
		metrics:  metrics,
		sessions: session.NewRegistry(),
		prefabs:  object.DefaultPrefabs(),
		rooms:    make(map[int32]*room.Room),
		conns:    make(map[string]*session.Connection),
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Hub exposes the global event hub so plugins can register listeners
// before Serve.
func (w *Worker) Hub() *room.Hub { return w.hub }

// Listen binds the UDP socket. Split from Serve so the caller can learn
// the bound address (tests use :0).
func (w *Worker) Listen() error {
	t, err := transport.Listen(w.cfg.ListenAddr, w.cfg.Transport, w.logger, w)
	if err != nil {
		return err
	}
	w.transport = t
	w.logger.Infof("listening on %v", t.LocalAddr())
	return nil
}

// Serve runs the transport read loop and the per-tick outbound flusher
// until ctx is cancelled.
func (w *Worker) Serve(ctx context.Context) error {
	if w.transport == nil {
		return xerrors.New("worker: Serve before Listen")
	}
	go w.flushLoop(ctx)
	return w.transport.Serve(ctx)
}

// Close tears down the transport and every room.
func (w *Worker) Close() {
	w.mu.Lock()
	rooms := make([]*room.Room, 0, len(w.rooms))
	for _, rm := range w.rooms {
		rooms = append(rooms, rm)
	}
	w.mu.Unlock()
	for _, rm := range rooms {
		rm.SendMessage(&room.MsgDestroy{Reason: "worker shutdown"})
		<-rm.Done()
	}
	if w.transport != nil {
		w.transport.Close()
	}
}

// flushLoop coalesces each connection's pending root messages into one
// reliable packet per tick.
func (w *Worker) flushLoop(ctx context.Context) {
	tick := time.Second / time.Duration(w.cfg.TickRate)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sessions.Each(func(c *session.Connection) {
				c.FlushRoot()
			})
		}
	}
}

// GetRoom resolves a room code.
func (w *Worker) GetRoom(code int32) (*room.Room, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	rm, ok := w.rooms[code]
	return rm, ok
}

// createRoom allocates a code and spins up a room.
func (w *Worker) createRoom(settings codec.GameSettings) *room.Room {
	w.mu.Lock()
	defer w.mu.Unlock()
	code := w.allocCodeLocked()
	var gameID int64
	if w.metrics != nil {
		if id, ok := w.metrics.CurrentGameID(code); ok {
			gameID = id
		}
	}
	rm := room.New(room.Options{
		Code:      code,
		Config:    w.cfg.Room,
		Settings:  settings,
		Prefabs:   w.prefabs,
		Hub:       w.hub,
		Sink:      w.metrics,
		GameID:    gameID,
		TickRate:  w.cfg.TickRate,
		Logger:    w.logger,
		OnDestroy: w.removeRoom,
	})
	w.rooms[code] = rm
	w.logger.Infof("room created: %d", code)
	return rm
}

// allocCodeLocked draws random 6-character codes until one is free.
func (w *Worker) allocCodeLocked() int32 {
	for {
		buf := make([]byte, 6)
		for i := range buf {
			buf[i] = byte('A' + w.rnd.Intn(26))
		}
		code, err := codec.Code2Int(string(buf))
		if err != nil {
			continue
		}
		if _, taken := w.rooms[code]; !taken {
			return code
		}
	}
}

// removeRoom is the room's OnDestroy callback; safe from the room's own
// goroutine.
func (w *Worker) removeRoom(rm *room.Room) {
	w.mu.Lock()
	delete(w.rooms, rm.Code())
	w.mu.Unlock()
	w.logger.Infof("room removed from registry: %d", rm.Code())
}

// Admin surface (internal/adminapi.Controller).

// Rooms snapshots every live room.
func (w *Worker) Rooms() []room.Snapshot {
	w.mu.Lock()
	rooms := make([]*room.Room, 0, len(w.rooms))
	for _, rm := range w.rooms {
		rooms = append(rooms, rm)
	}
	w.mu.Unlock()
	out := make([]room.Snapshot, 0, len(rooms))
	for _, rm := range rooms {
		out = append(out, rm.Snapshot())
	}
	return out
}

// Room snapshots one room by code.
func (w *Worker) Room(code int32) (room.Snapshot, bool) {
	rm, ok := w.GetRoom(code)
	if !ok {
		return room.Snapshot{}, false
	}
	return rm.Snapshot(), true
}

// CreateRoom is the admin-API create path, the counterpart of the
// HostGame root message.
func (w *Worker) CreateRoom(settings codec.GameSettings) (int32, error) {
	rm := w.createRoom(settings)
	return rm.Code(), nil
}

// DestroyRoom is the admin-API destroy path.
func (w *Worker) DestroyRoom(code int32, reason string) error {
	rm, ok := w.GetRoom(code)
	if !ok {
		return xerrors.Errorf("no room with code %d", code)
	}
	rm.SendMessage(&room.MsgDestroy{Reason: reason})
	return nil
}
