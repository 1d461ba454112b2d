package game

import (
	"context"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Shrey-Parekh/game-arena/domain"
)

const (
	imposterPhaseAnswer = "answer"
	imposterPhaseVoting = "voting"
	imposterPhaseReveal = "reveal"
	imposterPhaseFinal  = "final"
)

const (
	imposterMinPlayers         = 3
	imposterDefaultAnswerTime  = 90
	imposterDefaultTotalRounds = 5
	imposterCorrectVoteScore   = 100
	imposterFoolScore          = 50
)

// ImposterSettings are host-supplied knobs for a match. Zero values take the
// defaults.
type ImposterSettings struct {
	AnswerTime  int `json:"answerTime"`
	TotalRounds int `json:"totalRounds"`
}

type ImposterRoundResult struct {
	Round        int            `json:"round"`
	ImposterID   string         `json:"imposterId"`
	CorrectVotes int            `json:"correctVotes"`
	RoundScores  map[string]int `json:"roundScores"`
}

// ImposterState is one match: rounds of answer/voting/reveal. Fields that
// would let a rejoining client unmask the imposter or deanonymize answers are
// kept out of the shared snapshot.
type ImposterState struct {
	Phase            string                `json:"phase"`
	RoundNumber      int                   `json:"roundNumber"`
	TotalRounds      int                   `json:"totalRounds"`
	AnswerTime       int                   `json:"answerTime"`
	PhaseStart       time.Time             `json:"phaseStart"`
	SubmittedCount   int                   `json:"submittedCount"`
	VotedCount       int                   `json:"votedCount"`
	ShuffledAnswers  []AnonymousAnswer     `json:"shuffledAnswers,omitempty"`
	Scores           map[string]int        `json:"scores"`
	RoundsAsImposter map[string]int        `json:"roundsAsImposter"`
	History          []ImposterRoundResult `json:"history,omitempty"`

	imposterID     string
	prevImposterID string
	regularPrompt  string
	imposterPrompt string
	answers        map[string]string // userID -> text
	answerOwners   map[string]string // opaque answer id -> userID
	votes          map[string]string // voterID -> targetID
	usedPromptIDs  []string
}

// StartImposter begins a match and its first round.
func (s *Service) StartImposter(ctx context.Context, actor Actor, code string, settings ImposterSettings) error {
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
	if room.playerCount() < imposterMinPlayers {
		return errValidation("imposter needs at least %d players", imposterMinPlayers)
	}
	if room.Status == StatusFinished {
		// A finished room returns to the lobby when the next game starts.
		room.clearGameLocked()
	}

	if settings.AnswerTime <= 0 {
		settings.AnswerTime = imposterDefaultAnswerTime
	}
	if settings.TotalRounds <= 0 {
		settings.TotalRounds = imposterDefaultTotalRounds
	}

	state := &ImposterState{
		RoundNumber:      1,
		TotalRounds:      settings.TotalRounds,
		AnswerTime:       settings.AnswerTime,
		Scores:           make(map[string]int),
		RoundsAsImposter: make(map[string]int),
	}
	room.startGameLocked(GameImposter, &GameState{Type: GameImposter, Imposter: state})

	if err := s.imposterStartRoundLocked(ctx, room, state); err != nil {
		room.clearGameLocked()
		return err
	}
	s.persistStatus(ctx, code, StatusActive)
	return nil
}

// imposterStartRoundLocked picks the imposter, draws a prompt pair, and opens
// the answer phase with a personalized round-start event per player.
func (s *Service) imposterStartRoundLocked(ctx context.Context, room *Room, state *ImposterState) error {
	pair, err := drawWithReset(&state.usedPromptIDs, func(excludeIDs []string) (domain.PromptPair, error) {
		return s.provider.RandomPromptPair(ctx, excludeIDs)
	})
	if err != nil {
		return errUpstream("could not draw a prompt pair")
	}
	state.usedPromptIDs = append(state.usedPromptIDs, pair.ID)

	state.imposterID = s.pickImposterLocked(room, state)
	state.RoundsAsImposter[state.imposterID]++
	state.regularPrompt = pair.Regular
	state.imposterPrompt = pair.Imposter

	state.Phase = imposterPhaseAnswer
	state.PhaseStart = time.Now()
	state.SubmittedCount = 0
	state.VotedCount = 0
	state.ShuffledAnswers = nil
	state.answers = make(map[string]string)
	state.answerOwners = make(map[string]string)
	state.votes = make(map[string]string)
	room.bumpEpoch()

	for _, p := range room.playersInOrder() {
		isImposter := p.UserID == state.imposterID
		prompt := state.regularPrompt
		if isImposter {
			prompt = state.imposterPrompt
		}
		s.emitter.ToConn(p.ConnID, EvtImposterRoundStarted, ImposterRoundStartedPayload{
			GameType:       GameImposter,
			Phase:          state.Phase,
			RoundNumber:    state.RoundNumber,
			TotalRounds:    state.TotalRounds,
			AnswerTime:     state.AnswerTime,
			Prompt:         prompt,
			IsImposter:     isImposter,
			PhaseStartTime: state.PhaseStart.UnixMilli(),
			TotalPlayers:   room.playerCount(),
		})
	}
	return nil
}

// pickImposterLocked chooses uniformly, avoiding the previous round's
// imposter when the player count allows.
func (s *Service) pickImposterLocked(room *Room, state *ImposterState) string {
	candidates := make([]string, 0, len(room.joinOrder))
	for _, id := range room.joinOrder {
		if id == state.prevImposterID && len(room.joinOrder) > 1 {
			continue
		}
		candidates = append(candidates, id)
	}
	picked := candidates[rand.IntN(len(candidates))]
	state.prevImposterID = picked
	return picked
}

// imposterResendRoundLocked re-sends a rejoining player their role-appropriate
// round payload, which the shared snapshot deliberately omits.
func (s *Service) imposterResendRoundLocked(room *Room, userID string) {
	state := room.Game.Imposter
	if state == nil || state.Phase != imposterPhaseAnswer {
		return
	}
	p := room.player(userID)
	if p == nil {
		return
	}
	isImposter := userID == state.imposterID
	prompt := state.regularPrompt
	if isImposter {
		prompt = state.imposterPrompt
	}
	s.emitter.ToConn(p.ConnID, EvtImposterRoundStarted, ImposterRoundStartedPayload{
		GameType:       GameImposter,
		Phase:          state.Phase,
		RoundNumber:    state.RoundNumber,
		TotalRounds:    state.TotalRounds,
		AnswerTime:     state.AnswerTime,
		Prompt:         prompt,
		IsImposter:     isImposter,
		PhaseStartTime: state.PhaseStart.UnixMilli(),
		TotalPlayers:   room.playerCount(),
	})
}

// SubmitImposterAnswer records one free-text answer per player; blank is
// allowed, duplicates are ignored.
func (s *Service) SubmitImposterAnswer(ctx context.Context, actor Actor, code, text string) error {
	room, state, err := s.imposterRoom(code)
	if err != nil {
		return err
	}
	defer room.unlock()

	if state.Phase != imposterPhaseAnswer {
		return errInvalidState("not accepting answers right now")
	}
	if room.player(actor.UserID) == nil {
		return errNotFound("you are not a member of room %s", code)
	}
	if _, dup := state.answers[actor.UserID]; dup {
		return nil
	}

	state.answers[actor.UserID] = text
	state.SubmittedCount = len(state.answers)
	s.emitter.ToRoom(code, EvtPlayerSubmitted, SubmissionProgressPayload{
		SubmittedCount: state.SubmittedCount,
		TotalPlayers:   room.playerCount(),
	})

	s.imposterCheckAnswersCompleteLocked(room, state)
	return nil
}

// imposterCheckAnswersCompleteLocked transitions to voting exactly when the
// submitted count equals the live player count.
func (s *Service) imposterCheckAnswersCompleteLocked(room *Room, state *ImposterState) {
	if state.Phase != imposterPhaseAnswer || len(state.answers) < room.playerCount() {
		return
	}

	// Fisher-Yates over the answers, each under an opaque id. The linkage
	// back to the submitting player survives only server-side.
	shuffled := make([]AnonymousAnswer, 0, len(state.answers))
	for userID, text := range state.answers {
		id := uuid.NewString()
		state.answerOwners[id] = userID
		shuffled = append(shuffled, AnonymousAnswer{ID: id, Text: text})
	}
	for i := len(shuffled) - 1; i > 0; i-- {
		j := rand.IntN(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	state.ShuffledAnswers = shuffled
	state.Phase = imposterPhaseVoting
	state.PhaseStart = time.Now()
	room.bumpEpoch()

	players := make([]PlayerRef, 0, len(room.joinOrder))
	for _, p := range room.playersInOrder() {
		players = append(players, PlayerRef{UserID: p.UserID, Username: p.Username})
	}
	s.emitter.ToRoom(room.Code, EvtVotingPhaseStarted, VotingPhaseStartedPayload{
		Phase:          state.Phase,
		Answers:        shuffled,
		Players:        players,
		PhaseStartTime: state.PhaseStart.UnixMilli(),
	})
}

// SubmitVote records one vote per player for the suspected imposter.
func (s *Service) SubmitVote(ctx context.Context, actor Actor, code, targetID string) error {
	room, state, err := s.imposterRoom(code)
	if err != nil {
		return err
	}
	defer room.unlock()

	if state.Phase != imposterPhaseVoting {
		return errInvalidState("not accepting votes right now")
	}
	if room.player(actor.UserID) == nil {
		return errNotFound("you are not a member of room %s", code)
	}
	if targetID == actor.UserID {
		return errForbidden("you cannot vote for yourself")
	}
	if room.player(targetID) == nil {
		return errForbidden("vote target is not in the room")
	}
	if _, dup := state.votes[actor.UserID]; dup {
		return nil
	}

	state.votes[actor.UserID] = targetID
	state.VotedCount = len(state.votes)
	s.emitter.ToRoom(code, EvtPlayerVoted, VoteProgressPayload{
		VotedCount:   state.VotedCount,
		TotalPlayers: room.playerCount(),
	})

	s.imposterCheckVotesCompleteLocked(room, state)
	return nil
}

// imposterCheckVotesCompleteLocked transitions to reveal when every connected
// player's vote is in. With everyone connected that is simply one vote per
// player; after a mid-vote disconnect the quorum shrinks to the connected
// count so a missing vote cannot wedge the round.
func (s *Service) imposterCheckVotesCompleteLocked(room *Room, state *ImposterState) {
	if state.Phase != imposterPhaseVoting {
		return
	}
	connected := room.connectedCount()
	if connected == 0 {
		return
	}
	connectedVotes := 0
	for voter := range state.votes {
		if p := room.player(voter); p != nil && p.Connected {
			connectedVotes++
		}
	}
	if connectedVotes < connected {
		return
	}
	s.imposterRevealLocked(room, state)
}

// imposterRevealLocked scores the round and broadcasts the reveal.
//
// The imposter's score uses the fooled count totalPlayers - correctVotes - 1,
// which treats every non-imposter who did not vote correctly as fooled,
// including abstainers. That is the product behavior; keep it.
func (s *Service) imposterRevealLocked(room *Room, state *ImposterState) {
	correct := 0
	roundScores := make(map[string]int, room.playerCount())
	for _, id := range room.joinOrder {
		roundScores[id] = 0
	}
	distribution := make(map[string][]string)
	for voter, target := range state.votes {
		distribution[target] = append(distribution[target], voter)
		if target == state.imposterID && voter != state.imposterID {
			correct++
			roundScores[voter] = imposterCorrectVoteScore
		}
	}
	fooled := room.playerCount() - correct - 1
	roundScores[state.imposterID] = max(0, fooled*imposterFoolScore)

	for id, delta := range roundScores {
		state.Scores[id] += delta
	}
	state.History = append(state.History, ImposterRoundResult{
		Round:        state.RoundNumber,
		ImposterID:   state.imposterID,
		CorrectVotes: correct,
		RoundScores:  roundScores,
	})

	state.Phase = imposterPhaseReveal
	state.PhaseStart = time.Now()
	room.bumpEpoch()

	imposterName := ""
	if p := room.player(state.imposterID); p != nil {
		imposterName = p.Username
	}
	s.emitter.ToRoom(room.Code, EvtRevealPhaseStarted, RevealPhaseStartedPayload{
		Phase:            state.Phase,
		ImposterID:       state.imposterID,
		ImposterName:     imposterName,
		RegularPrompt:    state.regularPrompt,
		ImposterPrompt:   state.imposterPrompt,
		VoteDistribution: distribution,
		RoundScores:      roundScores,
		TotalScores:      copyScores(state.Scores),
		RoundNumber:      state.RoundNumber,
	})
}

// NextImposterRound is the host's advance out of reveal: either the next
// round or the final standings.
func (s *Service) NextImposterRound(ctx context.Context, actor Actor, code string) error {
	room, state, err := s.imposterRoom(code)
	if err != nil {
		return err
	}
	defer room.unlock()

	if actor.UserID != room.HostID {
		return errForbidden("only the host can advance the round")
	}
	if state.Phase != imposterPhaseReveal {
		return errInvalidState("the round is not in reveal")
	}

	if state.RoundNumber >= state.TotalRounds {
		s.imposterFinishLocked(ctx, room, state)
		return nil
	}

	state.RoundNumber++
	if err := s.imposterStartRoundLocked(ctx, room, state); err != nil {
		// The draw failed before any phase mutation: stay in reveal so the
		// host can retry.
		state.RoundNumber--
		return err
	}
	return nil
}

// imposterFinishLocked computes final rankings. Everyone tied at the top
// score is a co-winner.
func (s *Service) imposterFinishLocked(ctx context.Context, room *Room, state *ImposterState) {
	ranked := make([]RankedPlayer, 0, len(room.joinOrder))
	for _, p := range room.playersInOrder() {
		ranked = append(ranked, RankedPlayer{
			UserID:           p.UserID,
			Username:         p.Username,
			TotalScore:       state.Scores[p.UserID],
			RoundsAsImposter: state.RoundsAsImposter[p.UserID],
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].TotalScore > ranked[j].TotalScore })

	var winners []RankedPlayer
	if len(ranked) > 0 {
		top := ranked[0].TotalScore
		for _, r := range ranked {
			if r.TotalScore == top {
				winners = append(winners, r)
			}
		}
	}

	state.Phase = imposterPhaseFinal
	room.endGameLocked()
	s.persistStatus(ctx, room.Code, StatusFinished)

	s.emitter.ToRoom(room.Code, EvtGameCompleted, GameCompletedPayload{
		Phase:         state.Phase,
		RankedPlayers: ranked,
		Winners:       winners,
		FinalScores:   copyScores(state.Scores),
		RoundHistory:  state.History,
	})
}

// imposterHandleDisconnectLocked applies the phase-specific defaults, then
// the insufficient-players check.
func (s *Service) imposterHandleDisconnectLocked(room *Room, userID string) {
	state := room.Game.Imposter

	if room.connectedCount() < imposterMinPlayers {
		s.imposterForceEndLocked(room, state)
		return
	}

	switch state.Phase {
	case imposterPhaseAnswer:
		if _, submitted := state.answers[userID]; !submitted {
			state.answers[userID] = ""
			state.SubmittedCount = len(state.answers)
			s.emitter.ToRoom(room.Code, EvtPlayerSubmitted, SubmissionProgressPayload{
				SubmittedCount: state.SubmittedCount,
				TotalPlayers:   room.playerCount(),
			})
		}
		s.imposterCheckAnswersCompleteLocked(room, state)
	case imposterPhaseVoting:
		// No auto-vote. The quorum re-check alone may now complete the phase.
		s.imposterCheckVotesCompleteLocked(room, state)
	}
}

// imposterHandleDepartureLocked runs before a player is removed mid-game.
func (s *Service) imposterHandleDepartureLocked(room *Room, userID string) {
	state := room.Game.Imposter
	if state.Phase == imposterPhaseFinal {
		return
	}

	if room.playerCount()-1 < imposterMinPlayers {
		s.imposterForceEndLocked(room, state)
		return
	}

	delete(state.answers, userID)
	delete(state.votes, userID)
	state.SubmittedCount = len(state.answers)
	state.VotedCount = len(state.votes)

	switch state.Phase {
	case imposterPhaseAnswer:
		s.imposterCheckAnswersCompleteLocked(room, state)
	case imposterPhaseVoting:
		s.imposterCheckVotesCompleteLocked(room, state)
	}
}

func (s *Service) imposterForceEndLocked(room *Room, state *ImposterState) {
	if room.Status != StatusActive {
		return
	}
	state.Phase = imposterPhaseFinal
	room.endGameLocked()
	s.persistStatus(context.Background(), room.Code, StatusFinished)
	s.emitter.ToRoom(room.Code, EvtInsufficientPlayers, InsufficientPlayersPayload{
		Message: "not enough connected players to continue",
	})
}

func (s *Service) imposterRoom(code string) (*Room, *ImposterState, error) {
	room := s.registry.GetRoom(code)
	if room == nil {
		return nil, nil, errNotFound("room %s not found", code)
	}
	room.lock()
	if room.Status != StatusActive || room.Game == nil || room.Game.Imposter == nil {
		room.unlock()
		return nil, nil, errInvalidState("no imposter game in progress in room %s", code)
	}
	return room, room.Game.Imposter, nil
}

func copyScores(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
