package access

import (
	"sync"
	"time"
)

// lockout tracks consecutive credential failures per username to blunt
// guessing. State lives in process memory only: a restart clears it, per
// the soft-lock contract.
type lockout struct {
	mu        sync.Mutex
	threshold int
	window    time.Duration
	failures  map[string]*failureState
	now       func() time.Time
}

type failureState struct {
	count int
	first time.Time
}

func newLockout(threshold int, window time.Duration) *lockout {
	return &lockout{
		threshold: threshold,
		window:    window,
		failures:  make(map[string]*failureState),
		now:       time.Now,
	}
}

// locked reports whether username is currently locked. A window that has
// elapsed clears the state.
func (l *lockout) locked(username string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.failures[username]
	if !ok {
		return false
	}
	if l.now().Sub(st.first) >= l.window {
		delete(l.failures, username)
		return false
	}
	return st.count >= l.threshold
}

// fail records one failure and reports whether it tripped the lock.
func (l *lockout) fail(username string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	st, ok := l.failures[username]
	if !ok || now.Sub(st.first) >= l.window {
		st = &failureState{first: now}
		l.failures[username] = st
	}
	st.count++
	return st.count >= l.threshold
}

// reset clears the failure state after a successful authentication.
func (l *lockout) reset(username string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failures, username)
}
