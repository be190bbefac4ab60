package auth

import (
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/marky/internal/domain"
)

// State is where a client stands in the sign-in flow.
type State int

const (
	// Loading holds until the startup session lookup resolves.
	Loading State = iota
	Unauthenticated
	Authenticated
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText lets the state travel as its name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// View is a navigable screen.
type View string

const (
	ViewHome   View = "home"
	ViewAdd    View = "add"
	ViewEdit   View = "edit"
	ViewLogin  View = "login"
	ViewSignup View = "signup"
)

// ParseView validates a view name.
func ParseView(name string) (View, error) {
	switch v := View(name); v {
	case ViewHome, ViewAdd, ViewEdit, ViewLogin, ViewSignup:
		return v, nil
	}
	return "", fmt.Errorf("unknown view %q", name)
}

// Protected reports whether v needs a signed-in user.
func (v View) Protected() bool {
	return v != ViewLogin && v != ViewSignup
}

// Path is the client route of v.
func (v View) Path() string {
	if v == ViewHome {
		return "/"
	}
	return "/" + string(v)
}

// Decision is the outcome of a navigation attempt. At most one of
// Render, Placeholder and RedirectTo is set.
type Decision struct {
	Render      bool `json:"render"`
	Placeholder bool `json:"placeholder"`
	RedirectTo  View `json:"redirect_to,omitempty"`
}

// Gate is the per-client auth state machine.
type Gate struct {
	mu      sync.RWMutex
	state   State
	session domain.Session
	now     func() time.Time
}

// NewGate starts in Loading.
func NewGate() *Gate {
	return &Gate{state: Loading, now: time.Now}
}

// GateFor builds a gate whose startup lookup already resolved.
func GateFor(sess domain.Session, err error) *Gate {
	g := NewGate()
	g.Resolve(sess, err)
	return g
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Session returns the signed-in session, if any.
func (g *Gate) Session() (domain.Session, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.session, g.state == Authenticated
}

// Resolve ends Loading with the result of the startup session lookup.
// It is a no-op once resolved.
func (g *Gate) Resolve(sess domain.Session, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != Loading {
		return
	}
	if err == nil && sess.Valid(g.now()) {
		g.state, g.session = Authenticated, sess
		return
	}
	g.state, g.session = Unauthenticated, domain.Session{}
}

// SignIn records a successful credential submission.
func (g *Gate) SignIn(sess domain.Session) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state, g.session = Authenticated, sess
}

// SignOut records an explicit logout.
func (g *Gate) SignOut() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state, g.session = Unauthenticated, domain.Session{}
}

// Expire records a session expiry signal. It only affects an
// authenticated gate.
func (g *Gate) Expire() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == Authenticated {
		g.state, g.session = Unauthenticated, domain.Session{}
	}
}

// Observe applies a sign-out or expiry of this gate's own session.
// Events for other sessions are ignored.
func (g *Gate) Observe(ev SessionEvent) {
	if ev.Type != EventSignedOut && ev.Type != EventExpired {
		return
	}
	if cur, ok := g.Session(); ok && cur.Token == ev.Session.Token {
		g.Expire()
	}
}

// Navigate decides what happens when the client opens v.
func (g *Gate) Navigate(v View) Decision {
	return Decide(g.State(), v)
}

// Decide is the navigation table.
func Decide(state State, v View) Decision {
	switch state {
	case Loading:
		// no redirect until the session lookup resolves, on any view
		return Decision{Placeholder: true}
	case Unauthenticated:
		if v.Protected() {
			return Decision{RedirectTo: ViewLogin}
		}
		return Decision{Render: true}
	case Authenticated:
		if !v.Protected() {
			return Decision{RedirectTo: ViewHome}
		}
		return Decision{Render: true}
	}
	return Decision{}
}
