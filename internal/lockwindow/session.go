// Package lockwindow implements the countdown/unlock window.
//
// A Session is the state machine. It has three states:
//
//	Locked --(password match)--> Unlocking --> Terminated
//	Locked --(elapsed >= duration)-----------> Terminated
//
// Only Submit and Tick can move it. CloseAttempt never does. The terminal
// transition fires at most once; whichever event gets there first wins and
// every later event is a no-op.
package lockwindow

import (
	"fmt"
	"sync"

	"github.com/lockview-project/lockview/pkg/logging"
	"github.com/lockview-project/lockview/pkg/model"
)

// State is the session state.
type State int

const (
	Locked State = iota
	Unlocking
	Terminated
)

func (s State) String() string {
	switch s {
	case Locked:
		return "locked"
	case Unlocking:
		return "unlocking"
	case Terminated:
		return "terminated"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Reason records which event terminated the session.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonPassword
	ReasonExpired
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonPassword:
		return "password"
	case ReasonExpired:
		return "expired"
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// Notices shown to the user.
const (
	NoticeCloseBlocked  = "Close attempt blocked: enter the password or wait for the timer."
	NoticeWrongPassword = "Incorrect password."
	NoticeTimerOnly     = "This lock has no password; wait for the timer."
)

// View is a consistent snapshot of the session for rendering.
type View struct {
	State          State
	Reason         Reason
	Elapsed        int
	Remaining      int
	Duration       int
	OverlayVisible bool
	Notice         string
	CloseAttempts  int
}

// Session is the lock state machine. All methods are safe for concurrent use.
type Session struct {
	password string
	duration int
	overlay  int

	mu            sync.Mutex
	state         State
	reason        Reason
	elapsed       int
	notice        string
	closeAttempts int
	onTerminate   []func(Reason)

	done chan struct{}
	log  *logging.Logger
}

// NewSession creates a Locked session for cfg.
func NewSession(cfg *model.ViewerConfig) *Session {
	return &Session{
		password: cfg.Password(),
		duration: cfg.Duration(),
		overlay:  cfg.OverlaySeconds(),
		state:    Locked,
		done:     make(chan struct{}),
		log:      logging.WithFields(map[string]any{"component": "lockwindow"}),
	}
}

// OnTerminate registers fn to run once, after the terminal transition,
// outside the session lock. If the session already terminated fn runs now.
func (s *Session) OnTerminate(fn func(Reason)) {
	s.mu.Lock()
	if s.state == Terminated {
		reason := s.reason
		s.mu.Unlock()
		fn(reason)
		return
	}
	s.onTerminate = append(s.onTerminate, fn)
	s.mu.Unlock()
}

// Done is closed when the session reaches Terminated.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reason returns why the session terminated, or ReasonNone.
func (s *Session) Reason() Reason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// View returns a snapshot.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Submit compares attempt with the configured password by exact string
// equality. A match moves Locked -> Unlocking -> Terminated and returns
// true. Timer-only sessions never unlock by password.
func (s *Session) Submit(attempt string) bool {
	s.mu.Lock()
	if s.state != Locked {
		s.mu.Unlock()
		return false
	}
	if s.password == "" {
		s.notice = NoticeTimerOnly
		s.mu.Unlock()
		return false
	}
	if attempt != s.password {
		s.notice = NoticeWrongPassword
		s.mu.Unlock()
		s.log.Debug("unlock attempt rejected")
		return false
	}

	s.state = Unlocking
	hooks := s.terminateLocked(ReasonPassword)
	s.mu.Unlock()

	s.log.Info("session unlocked", map[string]any{"reason": ReasonPassword.String()})
	runHooks(hooks, ReasonPassword)
	return true
}

// Tick reports the elapsed whole seconds since the window opened. Once
// elapsed reaches the duration the session terminates. Elapsed time never
// goes backwards; a smaller value is ignored.
func (s *Session) Tick(elapsed int) View {
	s.mu.Lock()
	if s.state == Terminated {
		v := s.viewLocked()
		s.mu.Unlock()
		return v
	}
	if elapsed > s.elapsed {
		s.elapsed = elapsed
	}

	var hooks []func(Reason)
	if s.elapsed >= s.duration {
		hooks = s.terminateLocked(ReasonExpired)
	}
	v := s.viewLocked()
	s.mu.Unlock()

	if hooks != nil {
		s.log.Info("session expired", map[string]any{"elapsed": v.Elapsed})
		runHooks(hooks, ReasonExpired)
	}
	return v
}

// CloseAttempt records a request to close the window. It never changes
// state; while Locked it sets the blocked notice.
func (s *Session) CloseAttempt() View {
	s.mu.Lock()
	if s.state == Terminated {
		v := s.viewLocked()
		s.mu.Unlock()
		return v
	}
	s.closeAttempts++
	s.notice = NoticeCloseBlocked
	v := s.viewLocked()
	s.mu.Unlock()

	s.log.Debug("close attempt blocked", map[string]any{"attempts": v.CloseAttempts})
	return v
}

// terminateLocked performs the single terminal transition and returns the
// hooks to run. Callers hold s.mu.
func (s *Session) terminateLocked(reason Reason) []func(Reason) {
	if s.state == Terminated {
		return nil
	}
	s.state = Terminated
	s.reason = reason
	s.notice = ""
	close(s.done)
	hooks := s.onTerminate
	s.onTerminate = nil
	if hooks == nil {
		hooks = []func(Reason){}
	}
	return hooks
}

func runHooks(hooks []func(Reason), reason Reason) {
	for _, fn := range hooks {
		fn(reason)
	}
}

func (s *Session) viewLocked() View {
	remaining := s.duration - s.elapsed
	if remaining < 0 {
		remaining = 0
	}
	return View{
		State:          s.state,
		Reason:         s.reason,
		Elapsed:        s.elapsed,
		Remaining:      remaining,
		Duration:       s.duration,
		OverlayVisible: OverlayVisible(s.overlay, s.elapsed),
		Notice:         s.notice,
		CloseAttempts:  s.closeAttempts,
	}
}

// OverlayVisible reports whether the overlay shows at elapsed seconds. It is
// a pure schedule, independent of lock state.
func OverlayVisible(overlaySeconds, elapsed int) bool {
	return elapsed < overlaySeconds
}
