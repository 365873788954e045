// Package room implements the game-session nucleus: the per-room state
// machine, player registry, host policy, broadcast fan-out, fixed-tick
// update and RPC dispatch. Each room is an actor: a buffered message
// channel drained by one MsgLoop goroutine with a single dispatch
// switch, so everything a room owns is only ever touched on that
// goroutine.
package room

import (
	"net"
	"strconv"
	"time"

	"gamecore/internal/anticheat"
	"gamecore/internal/codec"
	"gamecore/internal/config"
	"gamecore/internal/log"
	"gamecore/internal/object"
	"gamecore/internal/session"
)

const (
	// RoomMsgChSize bounds the dispatch channel; senders block (briefly)
	// rather than drop when a room falls behind.
	RoomMsgChSize = 32

	// ServerHostID is the hostId sentinel for server-as-host mode. Client
	// ids start at 1, so 0 is never a real client.
	ServerHostID uint32 = 0

	// hostViewTempID is the throwaway client id used by the paired
	// JoinGame+RemovePlayer host-view update, chosen far outside the
	// allocator's range so clients never confuse it with a real peer.
	hostViewTempID uint32 = 0xFFFFFFF0

	// startReadyWindow is how long a started room waits for every player
	// to report Ready before force-removing stragglers.
	startReadyWindow = 3 * time.Second
)

// State is the room lifecycle state machine.
type State uint8

const (
	NotStarted State = iota
	Started
	Ended
	Destroyed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Started:
		return "started"
	case Ended:
		return "ended"
	case Destroyed:
		return "destroyed"
	default:
		return "state(?)"
	}
}

// Privacy is the room's visibility in the public listing.
type Privacy uint8

const (
	Private Privacy = iota
	Public
)

// Conn is the slice of connection behavior the room needs. Implemented
// by session.Connection; tests substitute a recording fake.
type Conn interface {
	ID() uint32
	Name() string
	Addr() string
	RTT() time.Duration
	SetRoom(h session.RoomHandle)
	EnqueueRoot(tag codec.RootMsgTag, payload []byte)
	SendRootNow(tag codec.RootMsgTag, payload []byte)
	SendUnreliableRoot(tag codec.RootMsgTag, payload []byte)
}

// EndGameIntent is a queued request to end the game, drained on the next
// tick; the first intent no listener cancels wins.
type EndGameIntent struct {
	Name   string
	Reason uint8
}

// Room owns everything inside one game session. All fields below are
// confined to the MsgLoop goroutine.
type Room struct {
	code   int32
	cfg    config.RoomConfig
	logger log.Logger
	hub    *Hub
	cheat  *anticheat.Monitor

	state    State
	settings codec.GameSettings
	privacy  Privacy

	hostID         uint32
	serverAsHost   bool
	actingHostIDs  map[uint32]bool
	waitingForHost map[uint32]bool

	// actingHostWaitingFor orders the clients whose initial settings
	// exchange with the server is still pending; the head's CheckName
	// triggers the one-shot acting-host transaction.
	actingHostWaitingFor      []uint32
	actingHostTransactionSent bool

	connections  map[uint32]Conn
	users        map[uint32]*UserInfo
	players      map[uint32]*Player
	joinOrder    []uint32
	lastHostView map[uint32]uint32

	graph    *object.Graph
	outbound []codec.GameDataMsg

	endGameIntents []EndGameIntent

	createdAt       time.Time
	lastFixedUpdate time.Time
	readyDeadline   time.Time

	banned map[string]bool
	voted  map[uint8]bool

	nextPlayerID uint8
	gameID       int64

	movement movementState

	msgCh     chan Msg
	done      chan struct{}
	onDestroy func(*Room)

	// now is injectable so boundary-timing behavior is testable without
	// wall-clock sleeps.
	now  func() time.Time
	tick time.Duration
}

// Options bundles the collaborators a room needs at birth.
type Options struct {
	Code      int32
	Config    config.RoomConfig
	Settings  codec.GameSettings
	Prefabs   *codec.Registry[uint32, object.Prefab]
	Hub       *Hub
	Sink      anticheat.Sink
	GameID    int64
	TickRate  int
	Logger    log.Logger
	OnDestroy func(*Room)
}

// New builds a room and starts its dispatch loop.
func New(opts Options) *Room {
	r := newRoom(opts)
	go r.MsgLoop()
	return r
}

// newRoom wires a room without starting the loop; tests drive dispatch
// and runTick directly with an injected clock.
func newRoom(opts Options) *Room {
	if opts.Hub == nil {
		opts.Hub = NewHub()
	}
	tickRate := opts.TickRate
	if tickRate <= 0 {
		tickRate = 20
	}
	logger := opts.Logger.With("room", opts.Code)
	unknown := object.UnknownPolicy{
		Mode: opts.Config.UnknownObjects.Mode,
		List: make(map[uint32]bool, len(opts.Config.UnknownObjects.List)),
	}
	for _, id := range opts.Config.UnknownObjects.List {
		unknown.List[id] = true
	}
	prefabs := opts.Prefabs
	if prefabs == nil {
		prefabs = object.DefaultPrefabs()
	}
	r := &Room{
		code:           opts.Code,
		cfg:            opts.Config,
		logger:         logger,
		hub:            opts.Hub,
		cheat:          anticheat.NewMonitor(opts.Sink, logger),
		state:          NotStarted,
		settings:       opts.Settings,
		privacy:        Private,
		hostID:         ServerHostID,
		serverAsHost:   opts.Config.ServerAsHost,
		actingHostIDs:  make(map[uint32]bool),
		waitingForHost: make(map[uint32]bool),
		connections:    make(map[uint32]Conn),
		users:          make(map[uint32]*UserInfo),
		players:        make(map[uint32]*Player),
		lastHostView:   make(map[uint32]uint32),
		graph:          object.NewGraph(prefabs.Clone(), unknown),
		banned:         make(map[string]bool),
		voted:          make(map[uint8]bool),
		nextPlayerID:   0,
		gameID:         opts.GameID,
		msgCh:          make(chan Msg, RoomMsgChSize),
		done:           make(chan struct{}),
		onDestroy:      opts.OnDestroy,
		now:            time.Now,
		tick:           time.Second / time.Duration(tickRate),
	}
	r.createdAt = r.now()
	r.lastFixedUpdate = r.createdAt
	r.applyEnforcedSettings()
	return r
}

// Code returns the room's packed game code.
func (r *Room) Code() int32 { return r.code }

// Done returns a channel closed when the room is destroyed.
func (r *Room) Done() <-chan struct{} { return r.done }

// SendMessage delivers a Msg onto the dispatch loop, dropping it if the
// room is already gone.
func (r *Room) SendMessage(msg Msg) {
	select {
	case <-r.done:
	case r.msgCh <- msg:
	}
}

// HandleClientLeave satisfies session.RoomHandle: a transport-level
// disconnect funnels into the normal leave flow.
func (r *Room) HandleClientLeave(clientID uint32, reason codec.DisconnectReason) {
	r.SendMessage(&MsgLeave{ClientID: clientID, Reason: reason})
}

// MsgLoop is the room's single execution context: it drains the message
// channel and drives the fixed-tick update until destruction.
func (r *Room) MsgLoop() {
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			r.drainMsg()
			return
		case msg := <-r.msgCh:
			r.dispatch(msg)
		case <-ticker.C:
			r.runTick(r.now())
		}
	}
}

// drainMsg empties the channel after destruction so senders blocked on a
// full channel are released.
func (r *Room) drainMsg() {
	for {
		select {
		case msg := <-r.msgCh:
			r.logger.Debugf("discard msg after destroy: %T", msg)
		default:
			return
		}
	}
}

func (r *Room) dispatch(msg Msg) {
	if r.state == Destroyed {
		return
	}
	switch m := msg.(type) {
	case *MsgJoin:
		r.msgJoin(m)
	case *MsgLeave:
		r.msgLeave(m)
	case *MsgGameData:
		r.msgGameData(m)
	case *MsgStart:
		r.msgStart(m)
	case *MsgEnd:
		r.msgEnd(m)
	case *MsgAlterGame:
		r.msgAlterGame(m)
	case *MsgKick:
		r.msgKick(m)
	case *MsgSetServerAsHost:
		r.msgSetServerAsHost(m)
	case *msgQueueIntent:
		r.endGameIntents = append(r.endGameIntents, m.intent)
	case *MsgSnapshot:
		m.Res <- r.snapshotLocked()
	case *MsgDestroy:
		r.destroy(m.Reason)
	default:
		r.logger.Errorf("unknown msg type (%T)", m)
	}
}

func (r *Room) msgAlterGame(m *MsgAlterGame) {
	if !r.isHostAuthority(m.Sender) {
		r.logger.Warnf("AlterGame from non-host %d", m.Sender)
		return
	}
	if m.Payload.Tag != codec.AlterGamePrivacy {
		return
	}
	if m.Payload.Value == 0 {
		r.privacy = Private
	} else {
		r.privacy = Public
	}
	payload := codec.EncodeAlterGame(codec.AlterGamePayload{
		Code: r.code, Tag: codec.AlterGamePrivacy, Value: m.Payload.Value,
	})
	r.broadcastMessages(nil, []codec.RootMsg{{Tag: codec.RootMsgAlterGame, Payload: payload}},
		BroadcastOpts{Exclude: map[uint32]bool{m.Sender: true}, Reliable: true})
}

func (r *Room) msgKick(m *MsgKick) {
	if !r.isHostAuthority(m.Sender) {
		r.logger.Warnf("kick from non-host %d", m.Sender)
		return
	}
	target, ok := r.connections[m.Target]
	if !ok {
		r.logger.Infof("kick target %d is absent", m.Target)
		return
	}
	if m.Ban {
		r.BanAddress(target.Addr(), "kicked with ban")
	}
	payload := codec.EncodeKickPlayer(codec.KickPlayerPayload{Code: r.code, ClientID: m.Target, Ban: m.Ban})
	r.broadcastMessages(nil, []codec.RootMsg{{Tag: codec.RootMsgKickPlayer, Payload: payload}},
		BroadcastOpts{Reliable: true})
	reason := codec.DisconnectKicked
	if m.Ban {
		reason = codec.DisconnectBanned
	}
	r.removeClient(m.Target, reason)
}

func (r *Room) msgSetServerAsHost(m *MsgSetServerAsHost) {
	if m.Enabled {
		r.enableServerAsHost()
	} else {
		r.disableServerAsHost()
	}
	if m.Res != nil {
		m.Res <- nil
	}
}

// BanAddress records addr's ip in the room-local ban set, checked on
// every join. The message, when supplied, is carried into the log line.
func (r *Room) BanAddress(addr, message string) {
	ip := addr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		ip = host
	}
	r.banned[ip] = true
	if message != "" {
		r.logger.Infof("banned %s: %s", ip, message)
	} else {
		r.logger.Infof("banned %s", ip)
	}
}

// isHostAuthority reports whether clientID may exercise host powers:
// the classic host, or any acting host under SaaH.
func (r *Room) isHostAuthority(clientID uint32) bool {
	if r.serverAsHost {
		return r.actingHostIDs[clientID]
	}
	return r.hostID == clientID
}

// destroy tears the room down: events, infraction flush, peer notices,
// then registry removal.
func (r *Room) destroy(reason string) {
	if r.state == Destroyed {
		return
	}
	before := &BeforeDestroyEvent{RoomCode: r.code, Reason: reason}
	r.hub.EmitSerial(before)
	if before.Cancelled() && len(r.connections) > 0 {
		r.logger.Infof("destroy (%s) vetoed by listener", reason)
		return
	}
	r.state = Destroyed
	r.logger.Infof("room destroyed: %s", reason)

	payload := codec.EncodeRemoveGame(codec.RemoveGamePayload{Reason: codec.DisconnectDestroy})
	for _, c := range r.connections {
		c.SendRootNow(codec.RootMsgRemoveGame, payload)
		c.SetRoom(nil)
	}
	r.connections = make(map[uint32]Conn)
	r.players = make(map[uint32]*Player)

	r.cheat.Flush()
	close(r.done)
	if r.onDestroy != nil {
		r.onDestroy(r)
	}
	r.hub.Emit(&DestroyEvent{RoomCode: r.code})
}

// Snapshot is the point-in-time public view handed to the admin surface
// and tests; it shares no memory with live room state.
type Snapshot struct {
	Code          int32
	CodeString    string
	State         string
	Privacy       string
	ServerAsHost  bool
	HostID        uint32
	ActingHostIDs []uint32
	HostViews     map[uint32]uint32
	Players       []Player
	Connections   int
	NetObjects    int
	CreatedAt     time.Time
	Settings      codec.GameSettings
	HandshakeSent bool
	Infractions   int
}

// Snapshot asks the dispatch loop for a copy of the room's state; safe
// from any goroutine.
func (r *Room) Snapshot() Snapshot {
	res := make(chan Snapshot, 1)
	select {
	case <-r.done:
		return Snapshot{Code: r.code, State: Destroyed.String()}
	case r.msgCh <- &MsgSnapshot{Res: res}:
		return <-res
	}
}

func (r *Room) snapshotLocked() Snapshot {
	s := Snapshot{
		Code:          r.code,
		State:         r.state.String(),
		ServerAsHost:  r.serverAsHost,
		HostID:        r.hostID,
		Connections:   len(r.connections),
		NetObjects:    r.graph.Len(),
		CreatedAt:     r.createdAt,
		Settings:      r.settings,
		HandshakeSent: r.actingHostTransactionSent,
		Infractions:   r.cheat.Buffered(),
		HostViews:     make(map[uint32]uint32, len(r.lastHostView)),
	}
	if code, err := codec.Int2Code(r.code); err == nil {
		s.CodeString = code
	}
	if r.privacy == Public {
		s.Privacy = "public"
	} else {
		s.Privacy = "private"
	}
	for id := range r.actingHostIDs {
		s.ActingHostIDs = append(s.ActingHostIDs, id)
	}
	for id, view := range r.lastHostView {
		s.HostViews[id] = view
	}
	for _, id := range r.joinOrder {
		if p, ok := r.players[id]; ok {
			cp := *p
			cp.Tasks = append([]TaskState(nil), p.Tasks...)
			s.Players = append(s.Players, cp)
		}
	}
	return s
}

// applyEnforcedSettings overlays the operator's enforce_settings keys on
// whatever the client proposed.
func (r *Room) applyEnforcedSettings() {
	for key, val := range r.cfg.EnforceSettings {
		switch key {
		case "max_players":
			r.settings.MaxPlayers = uint8(parseUint(val, uint64(r.settings.MaxPlayers)))
		case "impostor_count":
			r.settings.ImpostorCount = uint8(parseUint(val, uint64(r.settings.ImpostorCount)))
		case "map_id":
			r.settings.MapID = uint8(parseUint(val, uint64(r.settings.MapID)))
		case "kill_distance":
			r.settings.KillDistance = uint8(parseUint(val, uint64(r.settings.KillDistance)))
		default:
			r.logger.Warnf("unknown enforce_settings key %q", key)
		}
	}
}

func parseUint(s string, fallback uint64) uint64 {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return fallback
	}
	return v
}
