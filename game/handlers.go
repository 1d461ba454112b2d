package game

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/Shrey-Parekh/game-arena/domain"
	"github.com/Shrey-Parekh/game-arena/logger"
)

const ctxUserKey = "user"

type identityVerifier interface {
	Verify(token string) (domain.User, error)
}

// RequireAuth admits a connection only with a verifiable identity token,
// taken from the Authorization header or, for browser websocket clients that
// cannot set headers, the token query parameter.
func RequireAuth(verifier identityVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing credentials"})
			return
		}

		user, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		c.Set(ctxUserKey, user)
		c.Next()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin policy is enforced by the CORS layer in front of this
	// route.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler owns the websocket endpoint: upgrade, per-connection read loop,
// event dispatch into the service.
type Handler struct {
	svc *Service
	gw  *Gateway
}

func NewHandler(svc *Service, gw *Gateway) *Handler {
	return &Handler{svc: svc, gw: gw}
}

// session is the per-connection mutable state the read loop tracks: which
// room, if any, this connection is currently in.
type session struct {
	actor    Actor
	roomCode string
}

func (h *Handler) ServeWS(c *gin.Context) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	user := v.(domain.User)

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warningf("websocket upgrade: %v", err)
		return
	}

	conn := &wsConn{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, sendBuffer),
	}
	h.gw.register(conn)
	go conn.writePump()

	sess := &session{actor: Actor{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		ConnID:   conn.id,
	}}

	logger.Debugf("connection %s opened for user %s", conn.id, user.ID)
	h.readLoop(conn, sess)

	h.gw.unregister(conn.id)
	if sess.roomCode != "" {
		h.svc.Disconnect(context.Background(), sess.roomCode, sess.actor.UserID)
	}
	logger.Debugf("connection %s closed", conn.id)
}

func (h *Handler) readLoop(conn *wsConn, sess *session) {
	conn.ws.SetReadLimit(maxMessageSize)
	conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	conn.ws.SetPongHandler(func(string) error {
		conn.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	limiter := rate.NewLimiter(rate.Limit(20), 40)

	for {
		_, raw, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debugf("connection %s: %v", conn.id, err)
			}
			return
		}
		if !limiter.Allow() {
			h.sendError(conn.id, errValidation("too many messages"))
			continue
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			h.sendError(conn.id, errValidation("malformed message"))
			continue
		}
		if err := h.dispatch(context.Background(), sess, env); err != nil {
			h.sendError(conn.id, err)
		}
	}
}

type roomRequest struct {
	RoomCode string `json:"roomCode"`
}

type createRoomRequest struct {
	Mode Mode `json:"mode"`
}

type selectModeRequest struct {
	RoomCode   string `json:"roomCode"`
	SpiceLevel string `json:"spiceLevel"`
}

type choiceRequest struct {
	RoomCode string `json:"roomCode"`
	Choice   string `json:"choice"`
}

type answerRequest struct {
	RoomCode string `json:"roomCode"`
	Answer   string `json:"answer"`
}

type voteRequest struct {
	RoomCode string `json:"roomCode"`
	TargetID string `json:"targetId"`
}

type imposterStartRequest struct {
	RoomCode string `json:"roomCode"`
	ImposterSettings
}

type nhieStartRequest struct {
	RoomCode   string   `json:"roomCode"`
	Categories []string `json:"categories"`
}

type responseRequest struct {
	RoomCode string `json:"roomCode"`
	Response string `json:"response"`
}

type reactionRequest struct {
	RoomCode string `json:"roomCode"`
	Emoji    string `json:"emoji"`
}

type chatRequest struct {
	RoomCode string `json:"roomCode"`
	Message  string `json:"message"`
	Image    string `json:"image"`
}

func (h *Handler) dispatch(ctx context.Context, sess *session, env Envelope) error {
	actor := sess.actor

	switch env.Event {
	case evtCreateRoom:
		var req createRoomRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		code, err := h.svc.CreateRoom(ctx, actor, req.Mode)
		if err != nil {
			return err
		}
		sess.roomCode = code
		return nil

	case evtJoinRoom:
		var req roomRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		if err := h.svc.JoinRoom(ctx, actor, req.RoomCode); err != nil {
			return err
		}
		sess.roomCode = req.RoomCode
		return nil

	case evtRejoinRoom:
		var req roomRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		if err := h.svc.RejoinRoom(ctx, actor, req.RoomCode); err != nil {
			return err
		}
		sess.roomCode = req.RoomCode
		return nil

	case evtLeaveRoom:
		var req roomRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		if err := h.svc.LeaveRoom(ctx, actor, req.RoomCode); err != nil {
			return err
		}
		sess.roomCode = ""
		return nil

	case evtSendChatMessage:
		var req chatRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		return h.svc.SendChatMessage(ctx, actor, req.RoomCode, req.Message, req.Image)

	case evtStartGame:
		var req roomRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		return h.svc.StartTruthOrDare(ctx, actor, req.RoomCode)

	case evtSelectMode:
		var req selectModeRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		return h.svc.SelectMode(ctx, actor, req.RoomCode, req.SpiceLevel)

	case evtChangeSpiceLevel:
		var req selectModeRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		return h.svc.ChangeSpiceLevel(ctx, actor, req.RoomCode, req.SpiceLevel)

	case evtSelectTruthDare:
		var req choiceRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		return h.svc.SelectTruthOrDare(ctx, actor, req.RoomCode, req.Choice)

	case evtSubmitAnswer:
		var req answerRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		return h.svc.SubmitAnswer(ctx, actor, req.RoomCode, req.Answer)

	case evtSkipTurn:
		var req roomRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		return h.svc.SkipTurn(ctx, actor, req.RoomCode)

	case evtNextQuestion:
		var req roomRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		return h.svc.NextQuestion(ctx, actor, req.RoomCode)

	case evtStartImposter:
		var req imposterStartRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		return h.svc.StartImposter(ctx, actor, req.RoomCode, req.ImposterSettings)

	case evtSubmitVote:
		var req voteRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		return h.svc.SubmitVote(ctx, actor, req.RoomCode, req.TargetID)

	case evtNextRound:
		var req roomRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		return h.svc.NextImposterRound(ctx, actor, req.RoomCode)

	case evtNHIEStart:
		var req nhieStartRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		return h.svc.StartNHIE(ctx, actor, req.RoomCode, req.Categories)

	case evtNHIEResponse:
		var req responseRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		return h.svc.SubmitNHIEResponse(ctx, actor, req.RoomCode, req.Response)

	case evtNHIEReactionSend:
		var req reactionRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		return h.svc.SubmitNHIEReaction(ctx, actor, req.RoomCode, req.Emoji)

	case evtNHIENextStatement:
		var req roomRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		return h.svc.NextNHIEStatement(ctx, actor, req.RoomCode)

	default:
		return errInvalidState("unknown event %q", env.Event)
	}
}

func decode(data json.RawMessage, dst any) error {
	if len(data) == 0 {
		return errValidation("missing payload")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return errValidation("malformed payload")
	}
	return nil
}

// sendError delivers the uniform error event to the offending connection
// only. Anything outside the taxonomy is masked as internal.
func (h *Handler) sendError(connID string, err error) {
	var gameErr *Error
	if !errors.As(err, &gameErr) {
		logger.Errorf("unexpected error on %s: %v", connID, err)
		gameErr = errInternal("something went wrong")
	}
	h.gw.ToConn(connID, EvtError, ErrorPayload{Code: gameErr.Code, Message: gameErr.Message})
}
