package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shrey-Parekh/game-arena/domain"
)

func assertPayloadEq(t *testing.T, expected, actual any, msgAndArgs ...any) {
	t.Helper()
	diff := cmp.Diff(expected, actual, cmpopts.EquateEmpty())
	if diff != "" {
		assert.Fail(t, "Payload mismatch (-want +got):\n"+diff, msgAndArgs...)
	}
}

type emitted struct {
	Room    string
	Conn    string
	Event   string
	Payload any
}

// fakeEmitter records every event in order. Tests assert on names and
// payloads instead of a live transport.
type fakeEmitter struct {
	mu     sync.Mutex
	events []emitted
	subs   map[string]map[string]bool
}

func newFakeEmitter() *fakeEmitter {
	return &fakeEmitter{subs: make(map[string]map[string]bool)}
}

func (e *fakeEmitter) ToRoom(code, event string, payload any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, emitted{Room: code, Event: event, Payload: payload})
}

func (e *fakeEmitter) ToConn(connID, event string, payload any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, emitted{Conn: connID, Event: event, Payload: payload})
}

func (e *fakeEmitter) Subscribe(code, connID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.subs[code] == nil {
		e.subs[code] = make(map[string]bool)
	}
	e.subs[code][connID] = true
}

func (e *fakeEmitter) Unsubscribe(code, connID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.subs[code], connID)
}

func (e *fakeEmitter) named(event string) []emitted {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []emitted
	for _, ev := range e.events {
		if ev.Event == event {
			out = append(out, ev)
		}
	}
	return out
}

func (e *fakeEmitter) last(t *testing.T, event string) emitted {
	t.Helper()
	all := e.named(event)
	require.NotEmpty(t, all, "no %q event emitted", event)
	return all[len(all)-1]
}

func (e *fakeEmitter) count(event string) int {
	return len(e.named(event))
}

func (e *fakeEmitter) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = nil
}

// fakeScheduler captures callbacks instead of arming real timers; tests fire
// them explicitly, in order, to drive the delay pipelines deterministically.
type fakeScheduler struct {
	mu     sync.Mutex
	queued []queuedTimer
}

type queuedTimer struct {
	d  time.Duration
	fn func()
}

func (s *fakeScheduler) After(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued = append(s.queued, queuedTimer{d: d, fn: fn})
}

func (s *fakeScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queued)
}

// fireNext runs the oldest queued callback.
func (s *fakeScheduler) fireNext(t *testing.T) {
	t.Helper()
	s.mu.Lock()
	require.NotEmpty(t, s.queued, "no timer queued")
	next := s.queued[0]
	s.queued = s.queued[1:]
	s.mu.Unlock()
	next.fn()
}

// fire runs the queued callback at index i, leaving the rest in place.
func (s *fakeScheduler) fire(t *testing.T, i int) {
	t.Helper()
	s.mu.Lock()
	require.Greater(t, len(s.queued), i, "no timer queued at index %d", i)
	picked := s.queued[i]
	s.queued = append(s.queued[:i], s.queued[i+1:]...)
	s.mu.Unlock()
	picked.fn()
}

// fireAll drains the queue, including callbacks queued by the callbacks
// themselves.
func (s *fakeScheduler) fireAll(t *testing.T) {
	t.Helper()
	for i := 0; i < 100; i++ {
		s.mu.Lock()
		if len(s.queued) == 0 {
			s.mu.Unlock()
			return
		}
		next := s.queued[0]
		s.queued = s.queued[1:]
		s.mu.Unlock()
		next.fn()
	}
	t.Fatal("timer chain did not terminate")
}

var errProviderDown = errors.New("provider unreachable")

// stubProvider serves canned content honoring exclusion lists, so exhaustion
// and reset-retry behave like the real collaborator.
type stubProvider struct {
	mu         sync.Mutex
	questions  []domain.Question
	pairs      []domain.PromptPair
	statements []domain.Statement
	down       bool
	calls      int
}

func newStubProvider() *stubProvider {
	p := &stubProvider{}
	for i := 0; i < 8; i++ {
		p.questions = append(p.questions,
			domain.Question{ID: fmt.Sprintf("q-truth-%d", i), Type: "truth", SpiceLevel: "mild", Content: fmt.Sprintf("truth %d", i), Points: 10},
			domain.Question{ID: fmt.Sprintf("q-dare-%d", i), Type: "dare", SpiceLevel: "mild", Content: fmt.Sprintf("dare %d", i), Points: 10},
		)
		p.pairs = append(p.pairs, domain.PromptPair{
			ID:       fmt.Sprintf("pair-%d", i),
			Category: "misc",
			Regular:  fmt.Sprintf("regular %d", i),
			Imposter: fmt.Sprintf("imposter %d", i),
		})
		p.statements = append(p.statements, domain.Statement{
			ID:       fmt.Sprintf("stmt-%d", i),
			Category: "funny",
			Text:     fmt.Sprintf("never have i ever %d", i),
		})
	}
	return p
}

func excluded(id string, excludeIDs []string) bool {
	for _, e := range excludeIDs {
		if e == id {
			return true
		}
	}
	return false
}

func (p *stubProvider) RandomQuestion(_ context.Context, questionType, spiceLevel string, excludeIDs []string) (domain.Question, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.down {
		return domain.Question{}, errProviderDown
	}
	for _, q := range p.questions {
		if q.Type != questionType || excluded(q.ID, excludeIDs) {
			continue
		}
		if spiceLevel != "" && q.SpiceLevel != spiceLevel {
			continue
		}
		return q, nil
	}
	return domain.Question{}, domain.ErrContentExhausted
}

func (p *stubProvider) RandomPromptPair(_ context.Context, excludeIDs []string) (domain.PromptPair, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.down {
		return domain.PromptPair{}, errProviderDown
	}
	for _, pair := range p.pairs {
		if !excluded(pair.ID, excludeIDs) {
			return pair, nil
		}
	}
	return domain.PromptPair{}, domain.ErrContentExhausted
}

func (p *stubProvider) RandomStatement(_ context.Context, categories []string, excludeIDs []string) (domain.Statement, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.down {
		return domain.Statement{}, errProviderDown
	}
	for _, st := range p.statements {
		if excluded(st.ID, excludeIDs) {
			continue
		}
		for _, c := range categories {
			if st.Category == c {
				return st, nil
			}
		}
	}
	return domain.Statement{}, domain.ErrContentExhausted
}

// nopStore satisfies RoomStore; persistence is best-effort and irrelevant to
// the state machine tests.
type nopStore struct{}

func (nopStore) SaveRoom(context.Context, string, string, string) error  { return nil }
func (nopStore) DeleteRoom(context.Context, string) error                { return nil }
func (nopStore) AddPlayer(context.Context, string, string, string) error { return nil }
func (nopStore) RemovePlayer(context.Context, string, string) error      { return nil }
func (nopStore) SetRoomStatus(context.Context, string, string) error     { return nil }
func (nopStore) DeleteExpiredRooms(context.Context, time.Duration) ([]string, error) {
	return nil, nil
}

type testRig struct {
	svc      *Service
	emitter  *fakeEmitter
	sched    *fakeScheduler
	provider *stubProvider
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	rig := &testRig{
		emitter:  newFakeEmitter(),
		sched:    &fakeScheduler{},
		provider: newStubProvider(),
	}
	rig.svc = NewService(NewRegistry(), nopStore{}, rig.provider, rig.emitter, rig.sched, DefaultTimings())
	return rig
}

func actorN(n int) Actor {
	return Actor{
		UserID:   fmt.Sprintf("user-%d", n),
		Username: fmt.Sprintf("player%d", n),
		Email:    fmt.Sprintf("player%d@example.com", n),
		ConnID:   fmt.Sprintf("conn-%d", n),
	}
}

// makeRoom creates a room with n players; actor 0 is host.
func (rig *testRig) makeRoom(t *testing.T, mode Mode, n int) (string, []Actor) {
	t.Helper()
	actors := make([]Actor, n)
	for i := range actors {
		actors[i] = actorN(i)
	}
	code, err := rig.svc.CreateRoom(context.Background(), actors[0], mode)
	require.NoError(t, err)
	for _, a := range actors[1:] {
		require.NoError(t, rig.svc.JoinRoom(context.Background(), a, code))
	}
	rig.emitter.reset()
	return code, actors
}
