package game

import "time"

// Emitter is the thin façade over the real-time transport. The core only
// ever needs "send event E with payload P to connection C / to every
// connection subscribed to room R"; delivery, framing and reconnection
// detection live behind it.
type Emitter interface {
	ToRoom(code string, event string, payload any)
	ToConn(connID string, event string, payload any)
	Subscribe(code, connID string)
	Unsubscribe(code, connID string)
}

// Outbound events.
const (
	EvtError              = "error"
	EvtRoomCreated        = "room-created"
	EvtPlayerJoined       = "player-joined"
	EvtPlayerLeft         = "player-left"
	EvtPlayerRejoined     = "player-rejoined"
	EvtPlayerReconnected  = "player-reconnected"
	EvtPlayerDisconnected = "player-disconnected"
	EvtChatMessage        = "chat-message"

	EvtGameStarted       = "game-started"
	EvtModeSelected      = "mode-selected"
	EvtSpiceLevelChanged = "spice-level-changed"
	EvtQuestionPresented = "question-presented"
	EvtAnswerSubmitted   = "answer-submitted"
	EvtTurnSkipped       = "turn-skipped"
	EvtShowSelection     = "show-selection"
	EvtGameWon           = "game-won"

	EvtImposterRoundStarted = "imposter-round-started"
	EvtPlayerSubmitted      = "player-submitted"
	EvtVotingPhaseStarted   = "voting-phase-started"
	EvtPlayerVoted          = "player-voted"
	EvtRevealPhaseStarted   = "reveal-phase-started"
	EvtGameCompleted        = "game-completed"
	EvtInsufficientPlayers  = "game-ended-insufficient-players"

	EvtNHIEGameStarted        = "nhie:game-started"
	EvtNHIEPlayerResponded    = "nhie:player-responded"
	EvtNHIECountdown          = "nhie:countdown"
	EvtNHIEReveal             = "nhie:reveal"
	EvtNHIEReaction           = "nhie:reaction-received"
	EvtNHIERoundEnd           = "nhie:round-end"
	EvtNHIENewRound           = "nhie:new-round"
	EvtNHIENewStatement       = "nhie:new-statement"
	EvtNHIEMatchEnd           = "nhie:match-end"
	EvtNHIEPlayerDisconnected = "nhie:player-disconnected"
	EvtNHIEMatchEndedForfeit  = "nhie:match-ended-disconnect"
)

// Inbound events.
const (
	evtCreateRoom      = "create-room"
	evtJoinRoom        = "join-room"
	evtLeaveRoom       = "leave-room"
	evtRejoinRoom      = "rejoin-room"
	evtSendChatMessage = "send-chat-message"

	evtStartGame        = "start-game"
	evtSelectMode       = "select-mode"
	evtChangeSpiceLevel = "change-spice-level"
	evtSelectTruthDare  = "select-truth-or-dare"
	evtSubmitAnswer     = "submit-answer"
	evtSkipTurn         = "skip-turn"
	evtNextQuestion     = "next-question"

	evtStartImposter = "start-imposter-game"
	evtSubmitVote    = "submit-vote"
	evtNextRound     = "next-round"

	evtNHIEStart         = "nhie:start-game"
	evtNHIEResponse      = "nhie:response"
	evtNHIEReactionSend  = "nhie:reaction"
	evtNHIENextStatement = "nhie:next-statement"
)

type ErrorPayload struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

type RoomCreatedPayload struct {
	RoomCode string `json:"roomCode"`
	HostID   string `json:"hostId"`
}

type PlayersPayload struct {
	Players []PlayerView `json:"players"`
}

type PlayerLeftPayload struct {
	Players   []PlayerView `json:"players"`
	NewHostID string       `json:"newHostId,omitempty"`
}

type PlayerRejoinedPayload struct {
	Players   []PlayerView `json:"players"`
	GameType  GameType     `json:"gameType,omitempty"`
	GameState *GameState   `json:"gameState,omitempty"`
}

type PlayerIDPayload struct {
	PlayerID string `json:"playerId"`
}

type ChatMessagePayload struct {
	PlayerID   string    `json:"playerId"`
	PlayerName string    `json:"playerName"`
	Message    string    `json:"message"`
	Image      string    `json:"image,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// --- Truth-or-Dare payloads ---

type GameStartedPayload struct {
	GameType       GameType `json:"gameType"`
	Phase          string   `json:"phase"`
	ActivePlayerID string   `json:"activePlayerId"`
}

type ModeSelectedPayload struct {
	Mode       string `json:"mode"`
	SpiceLevel string `json:"spiceLevel"`
}

type SpiceLevelPayload struct {
	SpiceLevel string `json:"spiceLevel"`
}

type QuestionPresentedPayload struct {
	Question       string `json:"question"`
	Type           string `json:"type"`
	Points         int    `json:"points"`
	SpiceLevel     string `json:"spiceLevel"`
	ActivePlayerID string `json:"activePlayerId"`
}

type AnswerSubmittedPayload struct {
	PlayerID      string         `json:"playerId"`
	PointsAwarded int            `json:"pointsAwarded"`
	Scores        map[string]int `json:"scores"`
	NextPlayerID  string         `json:"nextPlayerId"`
}

type TurnSkippedPayload struct {
	PlayerID     string         `json:"playerId"`
	Scores       map[string]int `json:"scores"`
	NextPlayerID string         `json:"nextPlayerId"`
}

type GameWonPayload struct {
	WinnerID string         `json:"winnerId"`
	Scores   map[string]int `json:"scores"`
}

// --- Imposter payloads ---

type ImposterRoundStartedPayload struct {
	GameType       GameType `json:"gameType"`
	Phase          string   `json:"phase"`
	RoundNumber    int      `json:"roundNumber"`
	TotalRounds    int      `json:"totalRounds"`
	AnswerTime     int      `json:"answerTime"`
	Prompt         string   `json:"prompt"`
	IsImposter     bool     `json:"isImposter"`
	PhaseStartTime int64    `json:"phaseStartTime"`
	TotalPlayers   int      `json:"totalPlayers"`
}

type SubmissionProgressPayload struct {
	SubmittedCount int `json:"submittedCount"`
	TotalPlayers   int `json:"totalPlayers"`
}

type VoteProgressPayload struct {
	VotedCount   int `json:"votedCount"`
	TotalPlayers int `json:"totalPlayers"`
}

// AnonymousAnswer is what voters see: an opaque id and the text, with no
// linkage back to the submitting player.
type AnonymousAnswer struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type PlayerRef struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type VotingPhaseStartedPayload struct {
	Phase          string            `json:"phase"`
	Answers        []AnonymousAnswer `json:"answers"`
	Players        []PlayerRef       `json:"players"`
	PhaseStartTime int64             `json:"phaseStartTime"`
}

type RevealPhaseStartedPayload struct {
	Phase            string              `json:"phase"`
	ImposterID       string              `json:"imposterId"`
	ImposterName     string              `json:"imposterName"`
	RegularPrompt    string              `json:"regularPrompt"`
	ImposterPrompt   string              `json:"imposterPrompt"`
	VoteDistribution map[string][]string `json:"voteDistribution"`
	RoundScores      map[string]int      `json:"roundScores"`
	TotalScores      map[string]int      `json:"totalScores"`
	RoundNumber      int                 `json:"roundNumber"`
}

type RankedPlayer struct {
	UserID           string `json:"userId"`
	Username         string `json:"username"`
	TotalScore       int    `json:"totalScore"`
	RoundsAsImposter int    `json:"roundsAsImposter"`
}

type GameCompletedPayload struct {
	Phase         string                `json:"phase"`
	RankedPlayers []RankedPlayer        `json:"rankedPlayers"`
	Winners       []RankedPlayer        `json:"winners"`
	FinalScores   map[string]int        `json:"finalScores"`
	RoundHistory  []ImposterRoundResult `json:"roundHistory"`
}

type InsufficientPlayersPayload struct {
	Message string `json:"message"`
}

// --- Never-Have-I-Ever payloads ---

type NHIEStatementPayload struct {
	GameType       GameType       `json:"gameType,omitempty"`
	Phase          string         `json:"phase"`
	CurrentRound   int            `json:"currentRound"`
	Statement      string         `json:"statement"`
	Category       string         `json:"category"`
	FingerCounts   map[string]int `json:"fingerCounts"`
	PhaseStartTime int64          `json:"phaseStartTime"`
	ResponseTimer  int            `json:"responseTimer"`
}

type CountdownPayload struct {
	Count int `json:"count"`
}

type NHIEPlayerReveal struct {
	Name           string `json:"name"`
	Response       string `json:"response"`
	FingersLost    int    `json:"fingersLost"`
	NewFingerCount int    `json:"newFingerCount"`
}

type NHIERevealPayload struct {
	Phase        string                      `json:"phase"`
	Responses    map[string]NHIEPlayerReveal `json:"responses"`
	FingerCounts map[string]int              `json:"fingerCounts"`
	FingersLost  map[string]int              `json:"fingersLost"`
}

type NHIERoundEndPayload struct {
	Phase         string         `json:"phase"`
	WinnerID      string         `json:"winnerId"`
	WinnerName    string         `json:"winnerName"`
	RoundWins     map[string]int `json:"roundWins"`
	CurrentRound  int            `json:"currentRound"`
	BreakDuration int            `json:"breakDuration"`
}

type NHIEStatsView struct {
	TotalStatements         int                  `json:"totalStatements"`
	StatementsByCategory    map[string]int       `json:"statementsByCategory"`
	FingersLostPerPlayer    map[string]int       `json:"fingersLostPerPlayer"`
	MostRevealingStatements []RevealingStatement `json:"mostRevealingStatements"`
}

type NHIEMatchEndPayload struct {
	Phase      string         `json:"phase"`
	WinnerID   string         `json:"winnerId"`
	WinnerName string         `json:"winnerName"`
	RoundWins  map[string]int `json:"roundWins"`
	Stats      NHIEStatsView  `json:"stats"`
}

type ReactionPayload struct {
	UserID     string `json:"userId"`
	PlayerName string `json:"playerName"`
	Emoji      string `json:"emoji"`
}

type NHIEDisconnectPayload struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

type NHIEForfeitPayload struct {
	WinnerID   string `json:"winnerId"`
	WinnerName string `json:"winnerName"`
	Reason     string `json:"reason"`
}
