package game

import (
	"errors"
	"slices"
	"sync"
	"time"
)

// Registry is the authoritative in-memory map of room code -> Room for this
// process. It is constructed once at startup and injected into everything
// that needs it; there is no package-level instance.
//
// The registry's own lock guards only the map. Room contents are guarded by
// each Room's lock, which callers of GetRoom take before touching state.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

var errNoUniqueCode = errors.New("could not generate a unique room code")

// CreateRoom allocates an unused code and registers an empty waiting room.
func (reg *Registry) CreateRoom(hostID string, mode Mode) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for attempts := 0; attempts < 10; attempts++ {
		code := randomRoomCode()
		if _, taken := reg.rooms[code]; taken {
			continue
		}
		room := newRoom(code, hostID, mode)
		reg.rooms[code] = room
		return room, nil
	}
	return nil, errNoUniqueCode
}

func (reg *Registry) GetRoom(code string) *Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.rooms[code]
}

func (reg *Registry) DeleteRoom(code string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.rooms, code)
}

func (reg *Registry) Count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// Codes returns a snapshot of registered room codes, for the expiry sweep.
func (reg *Registry) Codes() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	codes := make([]string, 0, len(reg.rooms))
	for code := range reg.rooms {
		codes = append(codes, code)
	}
	return codes
}

// AddPlayer registers a player in the room. Returns nil if the room does not
// exist. Capacity is the caller's responsibility: the caller holds the room
// lock across its check and this call.
//
// addPlayerLocked is the variant for callers already holding the room lock.
func (r *Room) addPlayerLocked(userID, connID, username, email string) *Player {
	if p, ok := r.players[userID]; ok {
		// Same user joining again (e.g. stale tab): refresh the handle.
		p.ConnID = connID
		p.Connected = true
		p.LastSeen = time.Now()
		return p
	}
	p := &Player{
		UserID:    userID,
		Username:  username,
		Email:     email,
		ConnID:    connID,
		Connected: true,
		IsHost:    userID == r.HostID,
		LastSeen:  time.Now(),
	}
	r.players[userID] = p
	r.joinOrder = append(r.joinOrder, userID)
	return p
}

// removePlayerLocked removes the player and performs host migration before
// reporting emptiness, so a single call either migrates the host or empties
// the room, never both. The caller deletes the room from the registry when
// empty is true.
func (r *Room) removePlayerLocked(userID string) (removed bool, newHostID string, empty bool) {
	if _, ok := r.players[userID]; !ok {
		return false, "", len(r.players) == 0
	}
	delete(r.players, userID)
	r.joinOrder = slices.DeleteFunc(r.joinOrder, func(id string) bool { return id == userID })

	if userID == r.HostID && len(r.joinOrder) > 0 {
		// Deterministic pick: first remaining player in join order.
		newHostID = r.joinOrder[0]
		r.HostID = newHostID
		r.players[newHostID].IsHost = true
	}

	return true, newHostID, len(r.players) == 0
}

func (r *Room) updateConnectionLocked(userID string, connected bool) bool {
	p, ok := r.players[userID]
	if !ok {
		return false
	}
	p.Connected = connected
	p.LastSeen = time.Now()
	return true
}

func (r *Room) replaceConnLocked(userID, connID string) bool {
	p, ok := r.players[userID]
	if !ok {
		return false
	}
	p.ConnID = connID
	p.Connected = true
	p.LastSeen = time.Now()
	return true
}

func (r *Room) startGameLocked(gameType GameType, state *GameState) {
	r.GameType = gameType
	r.Game = state
	r.Status = StatusActive
	// Scores belong to a single game; a rematch starts from zero.
	for _, p := range r.players {
		p.Score = 0
	}
	r.bumpEpoch()
}

func (r *Room) endGameLocked() {
	r.Status = StatusFinished
	r.bumpEpoch()
}

// clearGameLocked returns the room to the lobby.
func (r *Room) clearGameLocked() {
	r.GameType = ""
	r.Game = nil
	r.Status = StatusWaiting
	r.bumpEpoch()
}
