package game

import (
	"slices"
	"sync"
	"time"
)

type Mode string

const (
	ModeTwoPlayer   Mode = "two-player"
	ModeMultiplayer Mode = "multiplayer"
)

func (m Mode) Valid() bool {
	return m == ModeTwoPlayer || m == ModeMultiplayer
}

// MaxPlayers is the membership cap the mode implies.
func (m Mode) MaxPlayers() int {
	if m == ModeTwoPlayer {
		return 2
	}
	return 6
}

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

type GameType string

const (
	GameTruthOrDare GameType = "truth-or-dare"
	GameImposter    GameType = "imposter"
	GameNHIE        GameType = "never-have-i-ever"
)

type Player struct {
	UserID    string
	Username  string
	Email     string
	ConnID    string
	Connected bool
	IsHost    bool
	Score     int
	LastSeen  time.Time
}

// GameState is the tagged variant over game types: exactly one of the
// pointers is non-nil while a game is running, matching Type.
type GameState struct {
	Type        GameType          `json:"type"`
	TruthOrDare *TruthOrDareState `json:"truthOrDare,omitempty"`
	Imposter    *ImposterState    `json:"imposter,omitempty"`
	NHIE        *NHIEState        `json:"neverHaveIEver,omitempty"`
}

// Room is one joinable session. All mutation of a Room (membership, game
// state, timer callbacks) happens with mu held, so answer/vote/response
// counts are never checked and mutated concurrently. Unrelated rooms share
// nothing and proceed in parallel.
type Room struct {
	mu sync.Mutex

	Code      string
	HostID    string
	Mode      Mode
	players   map[string]*Player
	joinOrder []string
	GameType  GameType
	Game      *GameState
	Status    Status
	CreatedAt time.Time

	// epoch increments on every phase transition. Timer callbacks capture
	// the epoch they were scheduled under and no-op if it has moved on.
	epoch uint64
}

func newRoom(code, hostID string, mode Mode) *Room {
	return &Room{
		Code:      code,
		HostID:    hostID,
		Mode:      mode,
		players:   make(map[string]*Player),
		Status:    StatusWaiting,
		CreatedAt: time.Now(),
	}
}

func (r *Room) lock()   { r.mu.Lock() }
func (r *Room) unlock() { r.mu.Unlock() }

// bumpEpoch marks a phase transition and returns the new epoch for timers
// scheduled out of it.
func (r *Room) bumpEpoch() uint64 {
	r.epoch++
	return r.epoch
}

func (r *Room) epochIs(e uint64) bool {
	return r.epoch == e
}

func (r *Room) player(userID string) *Player {
	return r.players[userID]
}

func (r *Room) playerCount() int {
	return len(r.players)
}

func (r *Room) connectedCount() int {
	n := 0
	for _, p := range r.players {
		if p.Connected {
			n++
		}
	}
	return n
}

// playersInOrder returns the live players in stable join order.
func (r *Room) playersInOrder() []*Player {
	out := make([]*Player, 0, len(r.joinOrder))
	for _, id := range r.joinOrder {
		if p, ok := r.players[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// PlayerView is the snapshot shape broadcast in membership events. It is a
// materialized copy, never a live handle into the room's map.
type PlayerView struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Score     int    `json:"score"`
	IsHost    bool   `json:"isHost"`
	Connected bool   `json:"connected"`
}

// gameSnapshotLocked deep-copies the active game state for payloads that are
// marshaled after the room lock is released. Only the wire-visible fields are
// cloned; unexported state never leaves the room.
func (r *Room) gameSnapshotLocked() *GameState {
	if r.Game == nil {
		return nil
	}
	snap := &GameState{Type: r.Game.Type}

	if tod := r.Game.TruthOrDare; tod != nil {
		c := *tod
		c.usedQuestionIDs = nil
		if tod.CurrentQuestion != nil {
			q := *tod.CurrentQuestion
			c.CurrentQuestion = &q
		}
		snap.TruthOrDare = &c
	}

	if imp := r.Game.Imposter; imp != nil {
		c := ImposterState{
			Phase:            imp.Phase,
			RoundNumber:      imp.RoundNumber,
			TotalRounds:      imp.TotalRounds,
			AnswerTime:       imp.AnswerTime,
			PhaseStart:       imp.PhaseStart,
			SubmittedCount:   imp.SubmittedCount,
			VotedCount:       imp.VotedCount,
			ShuffledAnswers:  slices.Clone(imp.ShuffledAnswers),
			Scores:           copyScores(imp.Scores),
			RoundsAsImposter: copyScores(imp.RoundsAsImposter),
		}
		for _, res := range imp.History {
			res.RoundScores = copyScores(res.RoundScores)
			c.History = append(c.History, res)
		}
		snap.Imposter = &c
	}

	if n := r.Game.NHIE; n != nil {
		c := NHIEState{
			Phase:        n.Phase,
			Categories:   slices.Clone(n.Categories),
			CurrentRound: n.CurrentRound,
			Statement:    n.Statement,
			Category:     n.Category,
			Fingers:      copyScores(n.Fingers),
			RoundWins:    copyScores(n.RoundWins),
			PhaseStart:   n.PhaseStart,
			WinnerID:     n.WinnerID,
			Stats: NHIEStats{
				TotalStatements:      n.Stats.TotalStatements,
				StatementsByCategory: copyScores(n.Stats.StatementsByCategory),
				FingersLostPerPlayer: copyScores(n.Stats.FingersLostPerPlayer),
				MostRevealing:        slices.Clone(n.Stats.MostRevealing),
			},
		}
		snap.NHIE = &c
	}
	return snap
}

func (r *Room) snapshot() []PlayerView {
	views := make([]PlayerView, 0, len(r.joinOrder))
	for _, p := range r.playersInOrder() {
		views = append(views, PlayerView{
			UserID:    p.UserID,
			Username:  p.Username,
			Score:     p.Score,
			IsHost:    p.IsHost,
			Connected: p.Connected,
		})
	}
	return views
}
