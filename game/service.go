package game

import (
	"context"
	"strings"
	"time"

	"github.com/Shrey-Parekh/game-arena/logger"
)

// RoomStore is the durable persistence collaborator. The core writes through
// it best-effort: a failed write is logged, never allowed to fail the player's
// operation, since the in-memory registry is authoritative for live rooms.
type RoomStore interface {
	SaveRoom(ctx context.Context, code, hostID string, mode string) error
	DeleteRoom(ctx context.Context, code string) error
	AddPlayer(ctx context.Context, code, userID, username string) error
	RemovePlayer(ctx context.Context, code, userID string) error
	SetRoomStatus(ctx context.Context, code, status string) error
	DeleteExpiredRooms(ctx context.Context, olderThan time.Duration) ([]string, error)
}

// Actor identifies the authenticated caller of an operation: the identity
// gate resolved the user before the connection was admitted.
type Actor struct {
	UserID   string
	Username string
	Email    string
	ConnID   string
}

// Service is the orchestration engine: room lifecycle, the per-game state
// machines, and disconnect/reconnect supervision. All room mutation goes
// through it, under the room's lock.
type Service struct {
	registry *Registry
	store    RoomStore
	provider ContentProvider
	emitter  Emitter
	sched    Scheduler
	timings  Timings
}

func NewService(registry *Registry, store RoomStore, provider ContentProvider, emitter Emitter, sched Scheduler, timings Timings) *Service {
	return &Service{
		registry: registry,
		store:    store,
		provider: provider,
		emitter:  emitter,
		sched:    sched,
		timings:  timings,
	}
}

// withRoom re-enters a room under its lock, for timer callbacks. The room may
// have been deleted since the timer was armed.
func (s *Service) withRoom(code string, fn func(r *Room)) {
	room := s.registry.GetRoom(code)
	if room == nil {
		return
	}
	room.lock()
	defer room.unlock()
	fn(room)
}

// CreateRoom allocates a room with the caller as host and returns its code.
func (s *Service) CreateRoom(ctx context.Context, actor Actor, mode Mode) (string, error) {
	if !mode.Valid() {
		return "", errValidation("unknown room mode %q", mode)
	}

	room, err := s.registry.CreateRoom(actor.UserID, mode)
	if err != nil {
		return "", errInternal("could not allocate a room code")
	}

	room.lock()
	room.addPlayerLocked(actor.UserID, actor.ConnID, actor.Username, actor.Email)
	players := room.snapshot()
	room.unlock()

	if err := s.store.SaveRoom(ctx, room.Code, actor.UserID, string(mode)); err != nil {
		logger.Warningf("persist room %s: %v", room.Code, err)
	}
	if err := s.store.AddPlayer(ctx, room.Code, actor.UserID, actor.Username); err != nil {
		logger.Warningf("persist player %s in %s: %v", actor.UserID, room.Code, err)
	}

	s.emitter.Subscribe(room.Code, actor.ConnID)
	s.emitter.ToConn(actor.ConnID, EvtRoomCreated, RoomCreatedPayload{RoomCode: room.Code, HostID: actor.UserID})
	s.emitter.ToRoom(room.Code, EvtPlayerJoined, PlayersPayload{Players: players})
	return room.Code, nil
}

func (s *Service) JoinRoom(ctx context.Context, actor Actor, code string) error {
	room := s.registry.GetRoom(code)
	if room == nil {
		return errNotFound("room %s not found", code)
	}

	room.lock()
	if _, member := room.players[actor.UserID]; !member {
		if room.Status != StatusWaiting {
			room.unlock()
			return errInvalidState("game already in progress in room %s", code)
		}
		if room.playerCount() >= room.Mode.MaxPlayers() {
			room.unlock()
			return errValidation("room %s is full", code)
		}
	}
	room.addPlayerLocked(actor.UserID, actor.ConnID, actor.Username, actor.Email)
	players := room.snapshot()
	room.unlock()

	if err := s.store.AddPlayer(ctx, code, actor.UserID, actor.Username); err != nil {
		logger.Warningf("persist player %s in %s: %v", actor.UserID, code, err)
	}

	s.emitter.Subscribe(code, actor.ConnID)
	s.emitter.ToRoom(code, EvtPlayerJoined, PlayersPayload{Players: players})
	return nil
}

func (s *Service) LeaveRoom(ctx context.Context, actor Actor, code string) error {
	room := s.registry.GetRoom(code)
	if room == nil {
		return errNotFound("room %s not found", code)
	}

	room.lock()
	if room.player(actor.UserID) == nil {
		room.unlock()
		return errNotFound("you are not a member of room %s", code)
	}
	s.removePlayerLocked(ctx, room, actor.UserID)
	room.unlock()

	s.emitter.Unsubscribe(code, actor.ConnID)
	return nil
}

// removePlayerLocked is the single removal path shared by leave and eviction:
// it lets the active game react to the departure first, then removes the
// player with host migration, deleting the room when it empties.
func (s *Service) removePlayerLocked(ctx context.Context, room *Room, userID string) {
	if room.Status == StatusActive && room.Game != nil {
		switch room.GameType {
		case GameTruthOrDare:
			s.todHandleDepartureLocked(room, userID)
		case GameImposter:
			s.imposterHandleDepartureLocked(room, userID)
		case GameNHIE:
			s.nhieHandleDepartureLocked(room, userID)
		}
	}

	removed, newHostID, empty := room.removePlayerLocked(userID)
	if !removed {
		return
	}

	if err := s.store.RemovePlayer(ctx, room.Code, userID); err != nil {
		logger.Warningf("remove player %s from %s: %v", userID, room.Code, err)
	}

	if empty {
		s.registry.DeleteRoom(room.Code)
		if err := s.store.DeleteRoom(ctx, room.Code); err != nil {
			logger.Warningf("delete room %s: %v", room.Code, err)
		}
		return
	}

	s.emitter.ToRoom(room.Code, EvtPlayerLeft, PlayerLeftPayload{
		Players:   room.snapshot(),
		NewHostID: newHostID,
	})
}

// RejoinRoom restores a returning player's session: new connection handle,
// full state snapshot to the rejoining connection, reconnect notice to the
// rest of the room. A pending forfeit or eviction timer sees the player
// connected again and no-ops.
func (s *Service) RejoinRoom(ctx context.Context, actor Actor, code string) error {
	room := s.registry.GetRoom(code)
	if room == nil {
		return errNotFound("room %s not found", code)
	}

	room.lock()
	if !room.replaceConnLocked(actor.UserID, actor.ConnID) {
		room.unlock()
		return errNotFound("you are not a member of room %s", code)
	}
	payload := PlayerRejoinedPayload{
		Players:   room.snapshot(),
		GameType:  room.GameType,
		GameState: room.gameSnapshotLocked(),
	}
	room.unlock()

	s.emitter.Subscribe(code, actor.ConnID)
	s.emitter.ToConn(actor.ConnID, EvtPlayerRejoined, payload)
	s.emitter.ToRoom(code, EvtPlayerReconnected, PlayerIDPayload{PlayerID: actor.UserID})

	// Role-specific payloads are never part of the shared snapshot, so an
	// imposter round in flight re-sends the rejoiner their own prompt.
	s.withRoom(code, func(r *Room) {
		if r.Status == StatusActive && r.GameType == GameImposter {
			s.imposterResendRoundLocked(r, actor.UserID)
		}
	})
	return nil
}

// Disconnect is the transport's notification that a connection dropped. It
// marks the player disconnected, applies the active game's default behavior,
// and arms the eviction grace timer.
func (s *Service) Disconnect(ctx context.Context, code, userID string) {
	room := s.registry.GetRoom(code)
	if room == nil {
		return
	}

	room.lock()
	defer room.unlock()

	if !room.updateConnectionLocked(userID, false) {
		return
	}
	s.emitter.ToRoom(code, EvtPlayerDisconnected, PlayerIDPayload{PlayerID: userID})

	if room.Status == StatusActive && room.Game != nil {
		switch room.GameType {
		case GameImposter:
			s.imposterHandleDisconnectLocked(room, userID)
		case GameNHIE:
			s.nhieHandleDisconnectLocked(room, userID)
		}
	}

	// Eviction is independent of game phase: a player gone long enough is
	// removed from the room entirely, with host migration if needed.
	s.sched.After(s.timings.LobbyGrace, func() {
		s.withRoom(code, func(r *Room) {
			p := r.player(userID)
			if p == nil || p.Connected {
				return
			}
			s.removePlayerLocked(context.Background(), r, userID)
		})
	})
}

// SendChatMessage broadcasts a chat line to the room. Chat is independent of
// game phase; any member can talk at any time.
func (s *Service) SendChatMessage(ctx context.Context, actor Actor, code, message, image string) error {
	room := s.registry.GetRoom(code)
	if room == nil {
		return errNotFound("room %s not found", code)
	}

	room.lock()
	p := room.player(actor.UserID)
	var name string
	if p != nil {
		name = p.Username
		if name == "" {
			name = p.Email
		}
	}
	room.unlock()

	if p == nil {
		return errNotFound("you are not a member of room %s", code)
	}

	s.emitter.ToRoom(code, EvtChatMessage, ChatMessagePayload{
		PlayerID:   actor.UserID,
		PlayerName: name,
		Message:    strings.TrimSpace(message),
		Image:      image,
		Timestamp:  time.Now(),
	})
	return nil
}

// SubmitAnswer routes the shared submit-answer event by the room's active
// game type.
func (s *Service) SubmitAnswer(ctx context.Context, actor Actor, code, text string) error {
	room := s.registry.GetRoom(code)
	if room == nil {
		return errNotFound("room %s not found", code)
	}
	room.lock()
	gameType := room.GameType
	room.unlock()

	switch gameType {
	case GameTruthOrDare:
		return s.SubmitTruthOrDareAnswer(ctx, actor, code)
	case GameImposter:
		return s.SubmitImposterAnswer(ctx, actor, code, text)
	default:
		return errInvalidState("no game accepting answers in room %s", code)
	}
}

// SweepExpired removes rooms past the idle expiry from the durable store and
// the in-memory registry. Invoked on a fixed interval by the process, not by
// player input.
func (s *Service) SweepExpired(ctx context.Context, olderThan time.Duration) {
	codes, err := s.store.DeleteExpiredRooms(ctx, olderThan)
	if err != nil {
		logger.Warningf("expiry sweep: %v", err)
	}
	for _, code := range codes {
		s.registry.DeleteRoom(code)
	}

	// Persistence is best-effort, so a room may exist only in memory. Sweep
	// those by creation time as well.
	swept := len(codes)
	cutoff := time.Now().Add(-olderThan)
	for _, code := range s.registry.Codes() {
		room := s.registry.GetRoom(code)
		if room == nil {
			continue
		}
		room.lock()
		expired := room.CreatedAt.Before(cutoff)
		room.unlock()
		if expired {
			s.registry.DeleteRoom(code)
			swept++
		}
	}
	if swept > 0 {
		logger.Infof("expiry sweep removed %d room(s)", swept)
	}
}
