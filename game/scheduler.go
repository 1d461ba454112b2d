package game

import "time"

// Scheduler schedules a callback after a delay. There is no cancel: every
// callback scheduled against a room phase re-checks, under the room lock,
// that the phase it was armed for is still current, and no-ops otherwise.
// The indirection exists so tests can fire timers deterministically.
type Scheduler interface {
	After(d time.Duration, fn func())
}

type realScheduler struct{}

func (realScheduler) After(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}

func NewScheduler() Scheduler {
	return realScheduler{}
}

// Timings collects every delay the state machines use. Tests inject small
// values or a fake scheduler; production uses Defaults.
type Timings struct {
	NHIEResponse    time.Duration // response phase deadline
	CountdownTick   time.Duration // spacing of the 3-2-1 reveal countdown
	PostRevealDelay time.Duration // pause between reveal and round-end handling
	RoundBreak      time.Duration // break before the next NHIE round
	NHIEGrace       time.Duration // reconnect window before forfeit
	LobbyGrace      time.Duration // reconnect window before lobby eviction
}

func DefaultTimings() Timings {
	return Timings{
		NHIEResponse:    20 * time.Second,
		CountdownTick:   time.Second,
		PostRevealDelay: 3 * time.Second,
		RoundBreak:      10 * time.Second,
		NHIEGrace:       30 * time.Second,
		LobbyGrace:      120 * time.Second,
	}
}
