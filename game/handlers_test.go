package game

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envelope(t *testing.T, event string, payload any) Envelope {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return Envelope{Event: event, Data: data}
}

func TestDispatch(t *testing.T) {
	rig := newTestRig(t)
	h := NewHandler(rig.svc, NewGateway())
	ctx := context.Background()

	sess := &session{actor: actorN(0)}

	t.Run("create-room tracks the session's room", func(t *testing.T) {
		err := h.dispatch(ctx, sess, envelope(t, evtCreateRoom, createRoomRequest{Mode: ModeMultiplayer}))
		require.NoError(t, err)
		assert.Len(t, sess.roomCode, codeLength)
		assert.NotNil(t, rig.svc.registry.GetRoom(sess.roomCode))
	})

	t.Run("leave-room clears it", func(t *testing.T) {
		err := h.dispatch(ctx, sess, envelope(t, evtLeaveRoom, roomRequest{RoomCode: sess.roomCode}))
		require.NoError(t, err)
		assert.Empty(t, sess.roomCode)
	})

	t.Run("send-chat-message broadcasts", func(t *testing.T) {
		err := h.dispatch(ctx, sess, envelope(t, evtCreateRoom, createRoomRequest{Mode: ModeMultiplayer}))
		require.NoError(t, err)
		err = h.dispatch(ctx, sess, envelope(t, evtSendChatMessage, chatRequest{RoomCode: sess.roomCode, Message: "gg"}))
		require.NoError(t, err)
		chat := rig.emitter.last(t, EvtChatMessage).Payload.(ChatMessagePayload)
		assert.Equal(t, "gg", chat.Message)
		require.NoError(t, h.dispatch(ctx, sess, envelope(t, evtLeaveRoom, roomRequest{RoomCode: sess.roomCode})))
	})

	t.Run("unknown events are rejected", func(t *testing.T) {
		err := h.dispatch(ctx, sess, Envelope{Event: "no-such-event"})
		assertCode(t, err, CodeInvalidState)
	})

	t.Run("missing payloads are rejected", func(t *testing.T) {
		err := h.dispatch(ctx, sess, Envelope{Event: evtJoinRoom})
		assertCode(t, err, CodeValidation)
	})

	t.Run("service errors pass through untouched", func(t *testing.T) {
		err := h.dispatch(ctx, sess, envelope(t, evtJoinRoom, roomRequest{RoomCode: "ZZZZZZ"}))
		assertCode(t, err, CodeNotFound)
	})
}

func TestDispatchSubmitAnswerRouting(t *testing.T) {
	rig := newTestRig(t)
	h := NewHandler(rig.svc, NewGateway())
	ctx := context.Background()

	code, actors := startImposter(t, rig, 3, ImposterSettings{})
	sess := &session{actor: actors[1], roomCode: code}

	err := h.dispatch(ctx, sess, envelope(t, evtSubmitAnswer, answerRequest{RoomCode: code, Answer: "pancakes"}))
	require.NoError(t, err)

	progress := rig.emitter.last(t, EvtPlayerSubmitted).Payload.(SubmissionProgressPayload)
	assert.Equal(t, 1, progress.SubmittedCount)
}
