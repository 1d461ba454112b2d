package game

import (
	"context"
	"slices"

	"github.com/Shrey-Parekh/game-arena/domain"
	"github.com/Shrey-Parekh/game-arena/logger"
)

const (
	todPhaseModeSelect = "mode-select"
	todPhaseTurn       = "turn"
	todPhaseQuestion   = "question-presented"
	todPhaseFinished   = "finished"
)

// todWinScore is the win threshold checked immediately after scoring, before
// the turn advances.
const todWinScore = 5

const todSkipPenalty = 1

// CurrentQuestion is the question the turn-holder is answering.
type CurrentQuestion struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Text       string `json:"text"`
	Points     int    `json:"points"`
	SpiceLevel string `json:"spiceLevel"`
}

type TruthOrDareState struct {
	Phase           string           `json:"phase"`
	SpiceLevel      string           `json:"spiceLevel,omitempty"`
	TurnIndex       int              `json:"turnIndex"`
	CurrentQuestion *CurrentQuestion `json:"currentQuestion,omitempty"`
	WinnerID        string           `json:"winnerId,omitempty"`

	usedQuestionIDs []string
}

// StartTruthOrDare begins a game in mode-select with the first joiner as
// turn-holder.
func (s *Service) StartTruthOrDare(ctx context.Context, actor Actor, code string) error {
	room := s.registry.GetRoom(code)
	if room == nil {
		return errNotFound("room %s not found", code)
	}

	room.lock()
	defer room.unlock()

	if actor.UserID != room.HostID {
		return errForbidden("only the host can start the game")
	}
	if room.Status == StatusActive {
		return errInvalidState("room %s already has a game in progress", code)
	}
	if room.playerCount() < 2 {
		return errValidation("truth-or-dare needs at least 2 players")
	}
	if room.Status == StatusFinished {
		// A finished room returns to the lobby when the next game starts.
		room.clearGameLocked()
	}

	state := &TruthOrDareState{Phase: todPhaseModeSelect}
	room.startGameLocked(GameTruthOrDare, &GameState{Type: GameTruthOrDare, TruthOrDare: state})
	s.persistStatus(ctx, code, StatusActive)

	s.emitter.ToRoom(code, EvtGameStarted, GameStartedPayload{
		GameType:       GameTruthOrDare,
		Phase:          state.Phase,
		ActivePlayerID: room.joinOrder[0],
	})
	return nil
}

// SelectMode resolves mode-select: the host picks the spice level and the
// first turn begins.
func (s *Service) SelectMode(ctx context.Context, actor Actor, code, spiceLevel string) error {
	room, state, err := s.todRoom(code)
	if err != nil {
		return err
	}
	defer room.unlock()

	if actor.UserID != room.HostID {
		return errForbidden("only the host can select the mode")
	}
	if state.Phase != todPhaseModeSelect {
		return errInvalidState("mode was already selected")
	}

	state.SpiceLevel = spiceLevel
	state.Phase = todPhaseTurn
	room.bumpEpoch()

	s.emitter.ToRoom(code, EvtModeSelected, ModeSelectedPayload{
		Mode:       string(room.Mode),
		SpiceLevel: spiceLevel,
	})
	return nil
}

// ChangeSpiceLevel lets the host retune the spice level mid-game. Takes
// effect from the next draw.
func (s *Service) ChangeSpiceLevel(ctx context.Context, actor Actor, code, spiceLevel string) error {
	room, state, err := s.todRoom(code)
	if err != nil {
		return err
	}
	defer room.unlock()

	if actor.UserID != room.HostID {
		return errForbidden("only the host can change the spice level")
	}

	state.SpiceLevel = spiceLevel
	s.emitter.ToRoom(code, EvtSpiceLevelChanged, SpiceLevelPayload{SpiceLevel: spiceLevel})
	return nil
}

// SelectTruthOrDare draws a question of the chosen type for the turn-holder.
func (s *Service) SelectTruthOrDare(ctx context.Context, actor Actor, code, choice string) error {
	if choice != "truth" && choice != "dare" {
		return errValidation("choice must be truth or dare")
	}

	room, state, err := s.todRoom(code)
	if err != nil {
		return err
	}
	defer room.unlock()

	if state.Phase != todPhaseTurn {
		return errInvalidState("not accepting a truth-or-dare selection right now")
	}
	if actor.UserID != s.todTurnHolderLocked(room, state) {
		return errForbidden("not your turn")
	}

	q, err := drawWithReset(&state.usedQuestionIDs, func(excludeIDs []string) (domain.Question, error) {
		return s.provider.RandomQuestion(ctx, choice, state.SpiceLevel, excludeIDs)
	})
	if err != nil {
		return errUpstream("could not draw a %s question", choice)
	}

	state.usedQuestionIDs = append(state.usedQuestionIDs, q.ID)
	state.CurrentQuestion = &CurrentQuestion{
		ID:         q.ID,
		Type:       q.Type,
		Text:       q.Content,
		Points:     q.Points,
		SpiceLevel: q.SpiceLevel,
	}
	state.Phase = todPhaseQuestion
	room.bumpEpoch()

	s.emitter.ToRoom(code, EvtQuestionPresented, QuestionPresentedPayload{
		Question:       q.Content,
		Type:           q.Type,
		Points:         q.Points,
		SpiceLevel:     q.SpiceLevel,
		ActivePlayerID: actor.UserID,
	})
	return nil
}

// SubmitTruthOrDareAnswer scores the turn-holder's answer, checks the win
// threshold, and advances the turn.
func (s *Service) SubmitTruthOrDareAnswer(ctx context.Context, actor Actor, code string) error {
	room, state, err := s.todRoom(code)
	if err != nil {
		return err
	}
	defer room.unlock()

	if state.Phase != todPhaseQuestion {
		return errInvalidState("no question is awaiting an answer")
	}
	if actor.UserID != s.todTurnHolderLocked(room, state) {
		return errForbidden("not your turn")
	}

	p := room.player(actor.UserID)
	if p == nil {
		return errNotFound("player not in room")
	}
	awarded := state.CurrentQuestion.Points
	p.Score += awarded
	state.CurrentQuestion = nil

	if p.Score >= todWinScore {
		state.Phase = todPhaseFinished
		state.WinnerID = actor.UserID
		room.endGameLocked()
		s.persistStatus(ctx, code, StatusFinished)
		s.emitter.ToRoom(code, EvtGameWon, GameWonPayload{
			WinnerID: actor.UserID,
			Scores:   room.scoresLocked(),
		})
		return nil
	}

	next := s.todAdvanceTurnLocked(room, state)
	s.emitter.ToRoom(code, EvtAnswerSubmitted, AnswerSubmittedPayload{
		PlayerID:      actor.UserID,
		PointsAwarded: awarded,
		Scores:        room.scoresLocked(),
		NextPlayerID:  next,
	})
	return nil
}

// SkipTurn deducts the skip penalty (floored at 0) and advances without
// presenting a question. Valid from selection or from a presented question.
func (s *Service) SkipTurn(ctx context.Context, actor Actor, code string) error {
	room, state, err := s.todRoom(code)
	if err != nil {
		return err
	}
	defer room.unlock()

	if state.Phase != todPhaseTurn && state.Phase != todPhaseQuestion {
		return errInvalidState("nothing to skip right now")
	}
	if actor.UserID != s.todTurnHolderLocked(room, state) {
		return errForbidden("not your turn")
	}

	p := room.player(actor.UserID)
	if p == nil {
		return errNotFound("player not in room")
	}
	p.Score = max(0, p.Score-todSkipPenalty)
	state.CurrentQuestion = nil

	next := s.todAdvanceTurnLocked(room, state)
	s.emitter.ToRoom(code, EvtTurnSkipped, TurnSkippedPayload{
		PlayerID:     actor.UserID,
		Scores:       room.scoresLocked(),
		NextPlayerID: next,
	})
	return nil
}

// NextQuestion discards the presented question without scoring and returns
// the same turn-holder to truth/dare selection.
func (s *Service) NextQuestion(ctx context.Context, actor Actor, code string) error {
	room, state, err := s.todRoom(code)
	if err != nil {
		return err
	}
	defer room.unlock()

	if actor.UserID != room.HostID {
		return errForbidden("only the host can discard the question")
	}
	if state.Phase != todPhaseQuestion {
		return errInvalidState("no question to discard")
	}

	state.CurrentQuestion = nil
	state.Phase = todPhaseTurn
	room.bumpEpoch()

	s.emitter.ToRoom(code, EvtShowSelection, nil)
	return nil
}

// todRoom locates the room and its truth-or-dare state, returning the room
// LOCKED on success.
func (s *Service) todRoom(code string) (*Room, *TruthOrDareState, error) {
	room := s.registry.GetRoom(code)
	if room == nil {
		return nil, nil, errNotFound("room %s not found", code)
	}
	room.lock()
	if room.Status != StatusActive || room.Game == nil || room.Game.TruthOrDare == nil {
		room.unlock()
		return nil, nil, errInvalidState("no truth-or-dare game in progress in room %s", code)
	}
	return room, room.Game.TruthOrDare, nil
}

func (s *Service) todTurnHolderLocked(room *Room, state *TruthOrDareState) string {
	if len(room.joinOrder) == 0 {
		return ""
	}
	return room.joinOrder[state.TurnIndex%len(room.joinOrder)]
}

// todAdvanceTurnLocked moves the turn circularly and returns the next
// turn-holder. The phase returns to selection.
func (s *Service) todAdvanceTurnLocked(room *Room, state *TruthOrDareState) string {
	state.TurnIndex = (state.TurnIndex + 1) % len(room.joinOrder)
	state.Phase = todPhaseTurn
	room.bumpEpoch()
	return room.joinOrder[state.TurnIndex]
}

// todHandleDepartureLocked repairs the turn index when a player is removed
// mid-game. Called before the player leaves joinOrder.
func (s *Service) todHandleDepartureLocked(room *Room, userID string) {
	state := room.Game.TruthOrDare
	if state.Phase == todPhaseFinished {
		return
	}

	idx := slices.Index(room.joinOrder, userID)
	if idx == -1 {
		return
	}
	cur := state.TurnIndex % len(room.joinOrder)

	switch {
	case idx < cur:
		state.TurnIndex = cur - 1
	case idx == cur:
		// Turn-holder left: their turn passes to the next player, who holds
		// the same index once the slice shrinks.
		state.TurnIndex = cur
		if state.TurnIndex >= len(room.joinOrder)-1 {
			state.TurnIndex = 0
		}
		state.CurrentQuestion = nil
		state.Phase = todPhaseTurn
		room.bumpEpoch()
	default:
		state.TurnIndex = cur
	}
}

func (s *Service) persistStatus(ctx context.Context, code string, status Status) {
	if err := s.store.SetRoomStatus(ctx, code, string(status)); err != nil {
		logger.Warningf("persist status of room %s: %v", code, err)
	}
}

// scoresLocked snapshots cumulative scores keyed by user id.
func (r *Room) scoresLocked() map[string]int {
	scores := make(map[string]int, len(r.players))
	for id, p := range r.players {
		scores[id] = p.Score
	}
	return scores
}
