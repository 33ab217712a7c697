package session

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Purpose distinguishes the two independent counters a user accrues (§4.9).
type Purpose string

// Tracked purposes.
const (
	PurposeLogin   Purpose = "login"
	PurposeRefresh Purpose = "refresh"
)

const (
	loginWindow       = 24 * time.Hour
	loginMaxFailures  = 3
	tempBlockDuration = time.Hour

	refreshWindow      = 5 * time.Minute
	refreshMaxFailures = 3
)

// State is a user's position in the blocking state machine (§4.9).
type State int

// Block state machine states.
const (
	StateOpen State = iota
	StateTempBlocked
	StateWasTempBlocked
	StatePermBlocked
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateTempBlocked:
		return "temp_blocked"
	case StateWasTempBlocked:
		return "was_temp_blocked"
	case StatePermBlocked:
		return "perm_blocked"
	default:
		return "unknown"
	}
}

// Counter is the pluggable backing store for attempt counts (§4.9). Without
// one, Tracker counts in its own per-user process memory; a
// shared-store-backed implementation can be substituted so counters survive
// restarts.
type Counter interface {
	Increment(key string, purpose Purpose, window time.Duration) (int, error)
	Reset(key string, purpose Purpose) error
}

// BlockCallbacks are invoked on state transitions; errors are swallowed
// per §4.9 ("the tracker invokes them on transitions, swallowing their errors").
type BlockCallbacks struct {
	UpdateBlockStatus func(userID string, blockedUntil *time.Time, permanent bool)
	SendAlertEmail    func(userID string, reason string)
}

type attemptState struct {
	mu            sync.Mutex
	loginFails    int
	loginWindowAt time.Time
	refreshFails  int
	refreshWinAt  time.Time
	state         State
	blockedUntil  time.Time
}

// Tracker implements the login/refresh attempt state machine (§4.9). Its
// zero value is not usable; construct with NewTracker.
type Tracker struct {
	mu        sync.Mutex
	users     map[string]*attemptState
	callbacks BlockCallbacks
	clock     clock.Clock
	counter   Counter
}

// NewTracker creates a Tracker running on the real wall clock, counting
// failures purely in process memory. Call Run to launch its hourly cleanup
// goroutine; it is kernel-managed and started/stopped via the service
// wrapping it.
func NewTracker(callbacks BlockCallbacks) *Tracker {
	return NewTrackerWithClock(callbacks, clock.New())
}

// NewTrackerWithClock builds a Tracker against an injected clock, letting
// tests advance the temp-block and failure-window timers deterministically
// instead of sleeping in real time. Failure counts stay in process memory.
func NewTrackerWithClock(callbacks BlockCallbacks, c clock.Clock) *Tracker {
	return &Tracker{
		users:     make(map[string]*attemptState),
		callbacks: callbacks,
		clock:     c,
	}
}

// NewTrackerWithCounter builds a Tracker that delegates failure counting to
// counter instead of process memory, so counts survive a restart when
// counter is itself backed by a persistent store.Store (§4.9's "counters
// MUST survive restarts when the store is present").
func NewTrackerWithCounter(callbacks BlockCallbacks, c clock.Clock, counter Counter) *Tracker {
	return &Tracker{
		users:     make(map[string]*attemptState),
		callbacks: callbacks,
		clock:     c,
		counter:   counter,
	}
}

func (t *Tracker) now() time.Time { return t.clock.Now() }

func (t *Tracker) stateFor(userID string) *attemptState {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.users[userID]
	if !ok {
		s = &attemptState{}
		t.users[userID] = s
	}

	return s
}

// Status reports a user's current block status (§3 Block status).
func (t *Tracker) Status(userID string) BlockStatus {
	s := t.stateFor(userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StatePermBlocked:
		return BlockStatus{Blocked: true, Permanent: true, Reason: "permanently blocked after repeated refresh failures"}
	case StateTempBlocked:
		if t.now().Before(s.blockedUntil) {
			until := s.blockedUntil

			return BlockStatus{Blocked: true, BlockedUntil: &until, Reason: "temporarily blocked after repeated login failures"}
		}

		s.state = StateWasTempBlocked

		return BlockStatus{Blocked: false}
	default:
		return BlockStatus{Blocked: false}
	}
}

// incrementFailures bumps the failure count for (userID, purpose), resetting
// it first if window has elapsed. When a Counter is configured it owns the
// count so it survives a restart (§4.9); otherwise *localCount/*localWindowAt
// track it in process memory exactly as before.
func (t *Tracker) incrementFailures(userID string, purpose Purpose, window time.Duration, now time.Time, localCount *int, localWindowAt *time.Time) int {
	if t.counter != nil {
		if n, err := t.counter.Increment(userID, purpose, window); err == nil {
			return n
		}
	}

	if localWindowAt.IsZero() || now.Sub(*localWindowAt) > window {
		*localCount = 0
		*localWindowAt = now
	}

	*localCount++

	return *localCount
}

// resetFailures clears the Counter-held failure count for (userID, purpose)
// when a Counter is configured; callers reset the in-memory fields themselves.
func (t *Tracker) resetFailures(userID string, purpose Purpose) {
	if t.counter != nil {
		_ = t.counter.Reset(userID, purpose)
	}
}

// RecordLoginFailure registers a login failure, transitioning OPEN or
// WAS_TEMP_BLOCKED into TEMP_BLOCKED/PERM_BLOCKED after three failures
// within the rolling window (§4.9).
func (t *Tracker) RecordLoginFailure(userID string) State {
	s := t.stateFor(userID)

	s.mu.Lock()

	now := t.now()

	fails := t.incrementFailures(userID, PurposeLogin, loginWindow, now, &s.loginFails, &s.loginWindowAt)

	wasTempBlocked := s.state == StateWasTempBlocked

	var transition State

	if fails >= loginMaxFailures && s.state != StatePermBlocked {
		if wasTempBlocked {
			s.state = StatePermBlocked
		} else {
			s.state = StateTempBlocked
			s.blockedUntil = now.Add(tempBlockDuration)

			// A temp block starts a fresh count: WAS_TEMP_BLOCKED needs three
			// new failures before the permanent block.
			s.loginFails = 0
			s.loginWindowAt = time.Time{}
			t.resetFailures(userID, PurposeLogin)
		}

		transition = s.state
	}

	permanent := s.state == StatePermBlocked
	until := s.blockedUntil

	s.mu.Unlock()

	if transition != StateOpen {
		t.notify(userID, until, permanent, "login failure threshold reached")
	}

	return s.state
}

// RecordRefreshFailure registers a refresh failure; after three failures
// within the rolling window the account is permanently blocked and every
// refresh token for it must be erased by the caller (§4.9 invariant 6).
func (t *Tracker) RecordRefreshFailure(userID string) State {
	s := t.stateFor(userID)

	s.mu.Lock()

	now := t.now()

	fails := t.incrementFailures(userID, PurposeRefresh, refreshWindow, now, &s.refreshFails, &s.refreshWinAt)

	permBlocked := false

	if fails >= refreshMaxFailures {
		s.state = StatePermBlocked
		permBlocked = true
	}

	s.mu.Unlock()

	if permBlocked {
		t.notify(userID, time.Time{}, true, "refresh failure threshold reached")
	}

	return s.state
}

// RecordSuccess resets a user's counters on a successful login while OPEN
// or WAS_TEMP_BLOCKED (§4.9).
func (t *Tracker) RecordSuccess(userID string) {
	s := t.stateFor(userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateOpen || s.state == StateWasTempBlocked {
		s.loginFails = 0
		s.refreshFails = 0
		s.state = StateOpen

		t.resetFailures(userID, PurposeLogin)
		t.resetFailures(userID, PurposeRefresh)
	}
}

// Unblock clears all counters and the WAS flag for userID, returning the
// account to OPEN (§4.9: "only admin unblock").
func (t *Tracker) Unblock(userID string) {
	s := t.stateFor(userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.loginFails = 0
	s.refreshFails = 0
	s.state = StateOpen
	s.blockedUntil = time.Time{}

	t.resetFailures(userID, PurposeLogin)
	t.resetFailures(userID, PurposeRefresh)
}

func (t *Tracker) notify(userID string, until time.Time, permanent bool, reason string) {
	if t.callbacks.UpdateBlockStatus != nil {
		var untilPtr *time.Time
		if !until.IsZero() {
			untilPtr = &until
		}

		t.callbacks.UpdateBlockStatus(userID, untilPtr, permanent)
	}

	if t.callbacks.SendAlertEmail != nil {
		t.callbacks.SendAlertEmail(userID, reason)
	}
}

// Run launches the hourly cleanup goroutine that evicts idle per-user state;
// it returns when stopCh is closed. The kernel-managed service wraps this in
// its own Start/Stop via the Module interface.
func (t *Tracker) Run(stopCh <-chan struct{}) {
	ticker := t.clock.Ticker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.cleanup()
		case <-stopCh:
			return
		}
	}
}

func (t *Tracker) cleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()

	for userID, s := range t.users {
		s.mu.Lock()
		idle := s.state == StateOpen &&
			(s.loginWindowAt.IsZero() || now.Sub(s.loginWindowAt) > loginWindow) &&
			(s.refreshWinAt.IsZero() || now.Sub(s.refreshWinAt) > refreshWindow)
		s.mu.Unlock()

		if idle {
			delete(t.users, userID)
		}
	}
}
