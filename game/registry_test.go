package game

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomRoomCode(t *testing.T) {
	for i := 0; i < 200; i++ {
		code := randomRoomCode()
		assert.Len(t, code, codeLength)
		for _, r := range code {
			assert.Contains(t, codeAlphabet, string(r), "code %q uses a character outside the alphabet", code)
		}
		// The ambiguous characters must never appear.
		assert.NotContains(t, code, "0")
		assert.NotContains(t, code, "O")
		assert.NotContains(t, code, "1")
		assert.NotContains(t, code, "I")
		assert.NotContains(t, code, "L")
	}
}

func TestRegistryCreateRoom(t *testing.T) {
	reg := NewRegistry()

	room, err := reg.CreateRoom("host-1", ModeMultiplayer)
	require.NoError(t, err)
	assert.Equal(t, "host-1", room.HostID)
	assert.Equal(t, StatusWaiting, room.Status)
	assert.Equal(t, 6, room.Mode.MaxPlayers())
	assert.Same(t, room, reg.GetRoom(room.Code))

	two, err := reg.CreateRoom("host-2", ModeTwoPlayer)
	require.NoError(t, err)
	assert.Equal(t, 2, two.Mode.MaxPlayers())
	assert.Equal(t, 2, reg.Count())
}

func TestRegistryCodesAreUnique(t *testing.T) {
	reg := NewRegistry()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		room, err := reg.CreateRoom("host", ModeMultiplayer)
		require.NoError(t, err)
		assert.False(t, seen[room.Code], "duplicate code %s", room.Code)
		seen[room.Code] = true
	}
}

func TestHostMigrationOnRemoval(t *testing.T) {
	reg := NewRegistry()
	room, err := reg.CreateRoom("user-0", ModeMultiplayer)
	require.NoError(t, err)

	room.lock()
	room.addPlayerLocked("user-0", "conn-0", "p0", "p0@example.com")
	room.addPlayerLocked("user-1", "conn-1", "p1", "p1@example.com")
	room.addPlayerLocked("user-2", "conn-2", "p2", "p2@example.com")

	removed, newHostID, empty := room.removePlayerLocked("user-0")
	assert.True(t, removed)
	assert.False(t, empty)
	assert.Equal(t, "user-1", newHostID, "host passes to the first remaining player in join order")
	assert.True(t, room.player("user-1").IsHost)

	removed, newHostID, empty = room.removePlayerLocked("user-1")
	assert.True(t, removed)
	assert.False(t, empty)
	assert.Equal(t, "user-2", newHostID)

	removed, newHostID, empty = room.removePlayerLocked("user-2")
	assert.True(t, removed)
	assert.Empty(t, newHostID, "migration and emptiness are mutually exclusive")
	assert.True(t, empty)
	room.unlock()
}

func TestSnapshotIsMaterialized(t *testing.T) {
	reg := NewRegistry()
	room, err := reg.CreateRoom("user-0", ModeMultiplayer)
	require.NoError(t, err)

	room.lock()
	room.addPlayerLocked("user-0", "conn-0", "p0", "p0@example.com")
	views := room.snapshot()
	room.player("user-0").Score = 42
	room.unlock()

	assert.Equal(t, 0, views[0].Score, "snapshot must not alias live player records")
}

func TestServiceRoomLifecycle(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	t.Run("create rejects unknown mode", func(t *testing.T) {
		_, err := rig.svc.CreateRoom(ctx, actorN(0), Mode("trio"))
		assertCode(t, err, CodeValidation)
	})

	t.Run("join rejects unknown room", func(t *testing.T) {
		err := rig.svc.JoinRoom(ctx, actorN(1), "ZZZZZZ")
		assertCode(t, err, CodeNotFound)
	})

	t.Run("join enforces the mode cap", func(t *testing.T) {
		code, _ := rig.makeRoom(t, ModeTwoPlayer, 2)
		err := rig.svc.JoinRoom(ctx, actorN(2), code)
		assertCode(t, err, CodeValidation)
		assert.Contains(t, strings.ToLower(err.Error()), "full")
	})

	t.Run("last player leaving deletes the room", func(t *testing.T) {
		code, actors := rig.makeRoom(t, ModeTwoPlayer, 1)
		require.NoError(t, rig.svc.LeaveRoom(ctx, actors[0], code))
		assert.Nil(t, rig.svc.registry.GetRoom(code))
	})

	t.Run("host leaving migrates and broadcasts", func(t *testing.T) {
		code, actors := rig.makeRoom(t, ModeMultiplayer, 3)
		require.NoError(t, rig.svc.LeaveRoom(ctx, actors[0], code))

		left := rig.emitter.last(t, EvtPlayerLeft).Payload.(PlayerLeftPayload)
		assert.Equal(t, actors[1].UserID, left.NewHostID)
		assert.Len(t, left.Players, 2)
	})
}

func TestChatMessages(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	code, actors := rig.makeRoom(t, ModeMultiplayer, 2)

	require.NoError(t, rig.svc.SendChatMessage(ctx, actors[1], code, "  hello  ", ""))

	msg := rig.emitter.last(t, EvtChatMessage)
	assert.Empty(t, msg.Conn, "chat goes to the whole room")
	payload := msg.Payload.(ChatMessagePayload)
	assert.Equal(t, actors[1].UserID, payload.PlayerID)
	assert.Equal(t, "player1", payload.PlayerName)
	assert.Equal(t, "hello", payload.Message, "messages are trimmed")
	assert.False(t, payload.Timestamp.IsZero())

	t.Run("members only", func(t *testing.T) {
		err := rig.svc.SendChatMessage(ctx, actorN(9), code, "hi", "")
		assertCode(t, err, CodeNotFound)
	})

	t.Run("unknown room", func(t *testing.T) {
		err := rig.svc.SendChatMessage(ctx, actors[0], "ZZZZZZ", "hi", "")
		assertCode(t, err, CodeNotFound)
	})
}

func TestDisconnectEvictionAfterGrace(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	code, actors := rig.makeRoom(t, ModeMultiplayer, 3)

	rig.svc.Disconnect(ctx, code, actors[2].UserID)
	assert.Equal(t, 1, rig.emitter.count(EvtPlayerDisconnected))

	room := rig.svc.registry.GetRoom(code)
	require.NotNil(t, room)
	room.lock()
	assert.Equal(t, 3, room.playerCount(), "disconnect alone does not evict")
	room.unlock()

	rig.sched.fireNext(t)

	room.lock()
	assert.Equal(t, 2, room.playerCount())
	assert.Nil(t, room.player(actors[2].UserID))
	room.unlock()
}

func TestRejoinCancelsEviction(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	code, actors := rig.makeRoom(t, ModeMultiplayer, 3)

	rig.svc.Disconnect(ctx, code, actors[2].UserID)

	back := actors[2]
	back.ConnID = "conn-2-new"
	require.NoError(t, rig.svc.RejoinRoom(ctx, back, code))

	rejoin := rig.emitter.last(t, EvtPlayerRejoined)
	assert.Equal(t, "conn-2-new", rejoin.Conn)
	assert.Equal(t, 1, rig.emitter.count(EvtPlayerReconnected))

	rig.sched.fireNext(t)

	room := rig.svc.registry.GetRoom(code)
	room.lock()
	assert.Equal(t, 3, room.playerCount(), "eviction timer must no-op after rejoin")
	assert.Equal(t, "conn-2-new", room.player(back.UserID).ConnID)
	room.unlock()
}

func TestSweepExpiredRemovesIdleRooms(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	code, _ := rig.makeRoom(t, ModeMultiplayer, 2)

	// A generous horizon keeps the fresh room alive.
	rig.svc.SweepExpired(ctx, time.Hour)
	assert.NotNil(t, rig.svc.registry.GetRoom(code))

	// A zero horizon expires everything created before now, even rooms the
	// store never saw.
	rig.svc.SweepExpired(ctx, 0)
	assert.Nil(t, rig.svc.registry.GetRoom(code))
}

func assertCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	require.Error(t, err)
	var gameErr *Error
	require.ErrorAs(t, err, &gameErr)
	assert.Equal(t, code, gameErr.Code)
}
