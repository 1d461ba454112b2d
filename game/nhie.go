package game

import (
	"context"
	"sort"
	"time"

	"github.com/Shrey-Parekh/game-arena/domain"
	"github.com/Shrey-Parekh/game-arena/logger"
)

const (
	nhiePhaseResponse  = "response"
	nhiePhaseCountdown = "countdown"
	nhiePhaseReveal    = "reveal"
	nhiePhaseBreak     = "round-break"
	nhiePhaseFinished  = "finished"
)

const (
	nhiePlayers          = 2
	nhieStartingFingers  = 5
	nhieRoundWinsToMatch = 2
	nhieMaxReactions     = 5
	nhieRevealingKept    = 10
	nhieRevealingShown   = 3
)

const (
	nhieResponseHave    = "have"
	nhieResponseHaveNot = "have-not"
)

var nhieDefaultCategories = []string{"pg", "adult", "funny", "deep"}

// RevealingStatement is one entry of the "most revealing" ranking: a
// statement and the fingers it cost across both players.
type RevealingStatement struct {
	Statement   string `json:"statement"`
	Category    string `json:"category"`
	FingersLost int    `json:"fingersLost"`
}

// NHIEStats accumulates across the whole match.
type NHIEStats struct {
	TotalStatements      int                  `json:"totalStatements"`
	StatementsByCategory map[string]int       `json:"statementsByCategory"`
	FingersLostPerPlayer map[string]int       `json:"fingersLostPerPlayer"`
	MostRevealing        []RevealingStatement `json:"mostRevealing"`
}

type NHIEState struct {
	Phase        string         `json:"phase"`
	Categories   []string       `json:"categories"`
	CurrentRound int            `json:"currentRound"`
	Statement    string         `json:"statement"`
	Category     string         `json:"category"`
	Fingers      map[string]int `json:"fingers"`
	RoundWins    map[string]int `json:"roundWins"`
	Stats        NHIEStats      `json:"stats"`
	PhaseStart   time.Time      `json:"phaseStart"`
	WinnerID     string         `json:"winnerId,omitempty"`

	responses        map[string]string
	reactions        map[string]int // per-reveal reaction count
	usedStatementIDs []string
}

// StartNHIE begins a two-player match with the host's category pick.
func (s *Service) StartNHIE(ctx context.Context, actor Actor, code string, categories []string) error {
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
	if room.playerCount() != nhiePlayers {
		return errValidation("never-have-i-ever needs exactly %d players", nhiePlayers)
	}
	if room.Status == StatusFinished {
		// A finished room returns to the lobby when the next game starts.
		room.clearGameLocked()
	}
	if len(categories) == 0 {
		categories = nhieDefaultCategories
	}

	state := &NHIEState{
		Categories:   categories,
		CurrentRound: 1,
		Fingers:      make(map[string]int, nhiePlayers),
		RoundWins:    make(map[string]int, nhiePlayers),
		Stats: NHIEStats{
			StatementsByCategory: make(map[string]int),
			FingersLostPerPlayer: make(map[string]int),
		},
	}
	for _, id := range room.joinOrder {
		state.Fingers[id] = nhieStartingFingers
		state.RoundWins[id] = 0
		state.Stats.FingersLostPerPlayer[id] = 0
	}

	room.startGameLocked(GameNHIE, &GameState{Type: GameNHIE, NHIE: state})

	if err := s.nhiePresentStatementLocked(ctx, room, state, EvtNHIEGameStarted); err != nil {
		room.clearGameLocked()
		return err
	}
	s.persistStatus(ctx, code, StatusActive)
	return nil
}

// nhiePresentStatementLocked draws the next statement and opens a response
// phase, arming the deadline timer that auto-fills have-not.
func (s *Service) nhiePresentStatementLocked(ctx context.Context, room *Room, state *NHIEState, event string) error {
	stmt, err := drawWithReset(&state.usedStatementIDs, func(excludeIDs []string) (domain.Statement, error) {
		return s.provider.RandomStatement(ctx, state.Categories, excludeIDs)
	})
	if err != nil {
		return errUpstream("could not draw a statement")
	}
	state.usedStatementIDs = append(state.usedStatementIDs, stmt.ID)

	state.Statement = stmt.Text
	state.Category = stmt.Category
	state.Phase = nhiePhaseResponse
	state.PhaseStart = time.Now()
	state.responses = make(map[string]string, nhiePlayers)
	epoch := room.bumpEpoch()

	s.emitter.ToRoom(room.Code, event, NHIEStatementPayload{
		GameType:       GameNHIE,
		Phase:          state.Phase,
		CurrentRound:   state.CurrentRound,
		Statement:      state.Statement,
		Category:       state.Category,
		FingerCounts:   copyScores(state.Fingers),
		PhaseStartTime: state.PhaseStart.UnixMilli(),
		ResponseTimer:  int(s.timings.NHIEResponse / time.Second),
	})

	code := room.Code
	s.sched.After(s.timings.NHIEResponse, func() {
		s.withRoom(code, func(r *Room) {
			st := r.nhieStateLocked()
			if st == nil || !r.epochIs(epoch) || st.Phase != nhiePhaseResponse {
				return
			}
			// Deadline: anyone silent is treated as have-not.
			for _, id := range r.joinOrder {
				if _, ok := st.responses[id]; !ok {
					st.responses[id] = nhieResponseHaveNot
				}
			}
			s.nhieBeginCountdownLocked(r, st)
		})
	})
	return nil
}

// SubmitNHIEResponse records one binary response per player per statement.
func (s *Service) SubmitNHIEResponse(ctx context.Context, actor Actor, code, response string) error {
	room, state, err := s.nhieRoom(code)
	if err != nil {
		return err
	}
	defer room.unlock()

	if state.Phase != nhiePhaseResponse {
		return errInvalidState("not accepting responses right now")
	}
	if response != nhieResponseHave && response != nhieResponseHaveNot {
		return errValidation("response must be %s or %s", nhieResponseHave, nhieResponseHaveNot)
	}
	if room.player(actor.UserID) == nil {
		return errNotFound("you are not a member of room %s", code)
	}
	if _, dup := state.responses[actor.UserID]; dup {
		return nil
	}

	state.responses[actor.UserID] = response
	s.emitter.ToRoom(code, EvtNHIEPlayerResponded, SubmissionProgressPayload{
		SubmittedCount: len(state.responses),
		TotalPlayers:   room.playerCount(),
	})

	if len(state.responses) == room.playerCount() {
		s.nhieBeginCountdownLocked(room, state)
	}
	return nil
}

// nhieBeginCountdownLocked runs the scripted 3-2-1 countdown: one broadcast
// per tick at fixed spacing, then the reveal. The pipeline is not cancelled
// early; each step re-checks that the countdown it belongs to is still the
// current phase.
func (s *Service) nhieBeginCountdownLocked(room *Room, state *NHIEState) {
	state.Phase = nhiePhaseCountdown
	epoch := room.bumpEpoch()
	code := room.Code

	s.emitter.ToRoom(code, EvtNHIECountdown, CountdownPayload{Count: 3})

	var step func(count int)
	step = func(count int) {
		s.withRoom(code, func(r *Room) {
			st := r.nhieStateLocked()
			if st == nil || !r.epochIs(epoch) || st.Phase != nhiePhaseCountdown {
				return
			}
			if count > 0 {
				s.emitter.ToRoom(code, EvtNHIECountdown, CountdownPayload{Count: count})
				s.sched.After(s.timings.CountdownTick, func() { step(count - 1) })
				return
			}
			s.nhieRevealLocked(r, st)
		})
	}
	s.sched.After(s.timings.CountdownTick, func() { step(2) })
}

// nhieRevealLocked computes finger losses, updates match statistics, and
// broadcasts the reveal. Round end, if any, follows after the post-reveal
// delay.
func (s *Service) nhieRevealLocked(room *Room, state *NHIEState) {
	state.Phase = nhiePhaseReveal
	state.PhaseStart = time.Now()
	state.reactions = make(map[string]int, nhiePlayers)
	epoch := room.bumpEpoch()

	reveals := make(map[string]NHIEPlayerReveal, nhiePlayers)
	fingersLost := make(map[string]int, nhiePlayers)
	totalLost := 0
	for _, p := range room.playersInOrder() {
		resp := state.responses[p.UserID]
		lost := 0
		if resp == nhieResponseHave && state.Fingers[p.UserID] > 0 {
			lost = 1
			state.Fingers[p.UserID]--
		}
		fingersLost[p.UserID] = lost
		totalLost += lost
		state.Stats.FingersLostPerPlayer[p.UserID] += lost
		reveals[p.UserID] = NHIEPlayerReveal{
			Name:           p.Username,
			Response:       resp,
			FingersLost:    lost,
			NewFingerCount: state.Fingers[p.UserID],
		}
	}

	state.Stats.TotalStatements++
	state.Stats.StatementsByCategory[state.Category]++
	if totalLost > 0 {
		state.Stats.MostRevealing = append(state.Stats.MostRevealing, RevealingStatement{
			Statement:   state.Statement,
			Category:    state.Category,
			FingersLost: totalLost,
		})
		sort.SliceStable(state.Stats.MostRevealing, func(i, j int) bool {
			return state.Stats.MostRevealing[i].FingersLost > state.Stats.MostRevealing[j].FingersLost
		})
		if len(state.Stats.MostRevealing) > nhieRevealingKept {
			state.Stats.MostRevealing = state.Stats.MostRevealing[:nhieRevealingKept]
		}
	}

	s.emitter.ToRoom(room.Code, EvtNHIEReveal, NHIERevealPayload{
		Phase:        state.Phase,
		Responses:    reveals,
		FingerCounts: copyScores(state.Fingers),
		FingersLost:  fingersLost,
	})

	code := room.Code
	s.sched.After(s.timings.PostRevealDelay, func() {
		s.withRoom(code, func(r *Room) {
			st := r.nhieStateLocked()
			if st == nil || !r.epochIs(epoch) || st.Phase != nhiePhaseReveal {
				return
			}
			s.nhieAfterRevealLocked(r, st)
		})
	})
}

// nhieAfterRevealLocked either ends the round (someone is at 0 fingers) or
// moves straight to the next statement.
func (s *Service) nhieAfterRevealLocked(room *Room, state *NHIEState) {
	if !s.nhieAnyAtZeroLocked(room, state) {
		if err := s.nhiePresentStatementLocked(context.Background(), room, state, EvtNHIENewStatement); err != nil {
			logger.Errorf("room %s: draw next statement: %v", room.Code, err)
			s.emitter.ToRoom(room.Code, EvtError, ErrorPayload{Code: CodeUpstream, Message: "could not draw the next statement"})
		}
		return
	}

	// Round over. The winner is the player still above 0 fingers; if both
	// emptied on the same statement there is no winner this round.
	winnerID, winnerName := "", ""
	for _, p := range room.playersInOrder() {
		if state.Fingers[p.UserID] > 0 {
			winnerID, winnerName = p.UserID, p.Username
		}
	}
	if winnerID != "" {
		state.RoundWins[winnerID]++
	}

	if winnerID != "" && state.RoundWins[winnerID] >= nhieRoundWinsToMatch {
		s.nhieEndMatchLocked(room, state, winnerID, winnerName)
		return
	}

	state.Phase = nhiePhaseBreak
	state.PhaseStart = time.Now()
	epoch := room.bumpEpoch()

	s.emitter.ToRoom(room.Code, EvtNHIERoundEnd, NHIERoundEndPayload{
		Phase:         state.Phase,
		WinnerID:      winnerID,
		WinnerName:    winnerName,
		RoundWins:     copyScores(state.RoundWins),
		CurrentRound:  state.CurrentRound,
		BreakDuration: int(s.timings.RoundBreak / time.Second),
	})

	code := room.Code
	s.sched.After(s.timings.RoundBreak, func() {
		s.withRoom(code, func(r *Room) {
			st := r.nhieStateLocked()
			if st == nil || !r.epochIs(epoch) || st.Phase != nhiePhaseBreak {
				return
			}
			st.CurrentRound++
			for _, id := range r.joinOrder {
				st.Fingers[id] = nhieStartingFingers
			}
			if err := s.nhiePresentStatementLocked(context.Background(), r, st, EvtNHIENewRound); err != nil {
				logger.Errorf("room %s: start round %d: %v", code, st.CurrentRound, err)
				s.emitter.ToRoom(code, EvtError, ErrorPayload{Code: CodeUpstream, Message: "could not start the next round"})
			}
		})
	})
}

func (s *Service) nhieEndMatchLocked(room *Room, state *NHIEState, winnerID, winnerName string) {
	state.Phase = nhiePhaseFinished
	state.WinnerID = winnerID
	room.endGameLocked()
	s.persistStatus(context.Background(), room.Code, StatusFinished)

	s.emitter.ToRoom(room.Code, EvtNHIEMatchEnd, NHIEMatchEndPayload{
		Phase:      state.Phase,
		WinnerID:   winnerID,
		WinnerName: winnerName,
		RoundWins:  copyScores(state.RoundWins),
		Stats:      state.statsView(),
	})
}

// statsView is the display shape: the full top-10 list kept internally is
// truncated to the top 3.
func (st *NHIEState) statsView() NHIEStatsView {
	shown := st.Stats.MostRevealing
	if len(shown) > nhieRevealingShown {
		shown = shown[:nhieRevealingShown]
	}
	return NHIEStatsView{
		TotalStatements:         st.Stats.TotalStatements,
		StatementsByCategory:    copyScores(st.Stats.StatementsByCategory),
		FingersLostPerPlayer:    copyScores(st.Stats.FingersLostPerPlayer),
		MostRevealingStatements: shown,
	}
}

// NextNHIEStatement lets the host advance out of reveal without waiting for
// the post-reveal delay.
func (s *Service) NextNHIEStatement(ctx context.Context, actor Actor, code string) error {
	room, state, err := s.nhieRoom(code)
	if err != nil {
		return err
	}
	defer room.unlock()

	if actor.UserID != room.HostID {
		return errForbidden("only the host can advance the statement")
	}
	if state.Phase != nhiePhaseReveal {
		return errInvalidState("no reveal to advance from")
	}
	if s.nhieAnyAtZeroLocked(room, state) {
		return errInvalidState("the round is ending")
	}

	return s.nhiePresentStatementLocked(ctx, room, state, EvtNHIENewStatement)
}

// SubmitNHIEReaction broadcasts a reaction tag during reveal. Each player gets
// five per reveal; anything past that is dropped without error.
func (s *Service) SubmitNHIEReaction(ctx context.Context, actor Actor, code, emoji string) error {
	room, state, err := s.nhieRoom(code)
	if err != nil {
		return err
	}
	defer room.unlock()

	if state.Phase != nhiePhaseReveal {
		return errInvalidState("reactions are only open during reveal")
	}
	p := room.player(actor.UserID)
	if p == nil {
		return errNotFound("you are not a member of room %s", code)
	}
	if emoji == "" {
		return errValidation("empty reaction")
	}
	if state.reactions[actor.UserID] >= nhieMaxReactions {
		return nil
	}
	state.reactions[actor.UserID]++

	s.emitter.ToRoom(code, EvtNHIEReaction, ReactionPayload{
		UserID:     actor.UserID,
		PlayerName: p.Username,
		Emoji:      emoji,
	})
	return nil
}

// nhieHandleDisconnectLocked starts the forfeit clock: if the player is still
// gone when it fires, the remaining player wins the match outright.
func (s *Service) nhieHandleDisconnectLocked(room *Room, userID string) {
	p := room.player(userID)
	if p == nil {
		return
	}
	s.emitter.ToRoom(room.Code, EvtNHIEPlayerDisconnected, NHIEDisconnectPayload{
		UserID:  userID,
		Message: p.Username + " disconnected, waiting for reconnection",
	})

	code := room.Code
	s.sched.After(s.timings.NHIEGrace, func() {
		s.withRoom(code, func(r *Room) {
			st := r.nhieStateLocked()
			if st == nil || st.Phase == nhiePhaseFinished {
				return
			}
			gone := r.player(userID)
			if gone == nil || gone.Connected {
				return
			}
			s.nhieForfeitLocked(r, st, userID)
		})
	})
}

// nhieHandleDepartureLocked runs before a player is removed mid-game: leaving
// is an immediate forfeit.
func (s *Service) nhieHandleDepartureLocked(room *Room, userID string) {
	state := room.Game.NHIE
	if state.Phase == nhiePhaseFinished {
		return
	}
	s.nhieForfeitLocked(room, state, userID)
}

func (s *Service) nhieForfeitLocked(room *Room, state *NHIEState, leaverID string) {
	winnerID, winnerName := "", ""
	for _, p := range room.playersInOrder() {
		if p.UserID != leaverID {
			winnerID, winnerName = p.UserID, p.Username
		}
	}

	state.Phase = nhiePhaseFinished
	state.WinnerID = winnerID
	room.endGameLocked()
	s.persistStatus(context.Background(), room.Code, StatusFinished)

	s.emitter.ToRoom(room.Code, EvtNHIEMatchEndedForfeit, NHIEForfeitPayload{
		WinnerID:   winnerID,
		WinnerName: winnerName,
		Reason:     "opponent left the match",
	})
}

func (s *Service) nhieAnyAtZeroLocked(room *Room, state *NHIEState) bool {
	for _, id := range room.joinOrder {
		if state.Fingers[id] == 0 {
			return true
		}
	}
	return false
}

func (s *Service) nhieRoom(code string) (*Room, *NHIEState, error) {
	room := s.registry.GetRoom(code)
	if room == nil {
		return nil, nil, errNotFound("room %s not found", code)
	}
	room.lock()
	if room.Status != StatusActive || room.Game == nil || room.Game.NHIE == nil {
		room.unlock()
		return nil, nil, errInvalidState("no never-have-i-ever game in progress in room %s", code)
	}
	return room, room.Game.NHIE, nil
}

func (r *Room) nhieStateLocked() *NHIEState {
	if r.Status != StatusActive || r.Game == nil {
		return nil
	}
	return r.Game.NHIE
}
