package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/MrSnakeDoc/marky/internal/domain"
)

func validSession() domain.Session {
	return domain.Session{Token: "tok", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		state State
		view  View
		want  Decision
	}{
		{Loading, ViewHome, Decision{Placeholder: true}},
		{Loading, ViewEdit, Decision{Placeholder: true}},
		{Loading, ViewLogin, Decision{Placeholder: true}},
		{Unauthenticated, ViewHome, Decision{RedirectTo: ViewLogin}},
		{Unauthenticated, ViewAdd, Decision{RedirectTo: ViewLogin}},
		{Unauthenticated, ViewEdit, Decision{RedirectTo: ViewLogin}},
		{Unauthenticated, ViewLogin, Decision{Render: true}},
		{Unauthenticated, ViewSignup, Decision{Render: true}},
		{Authenticated, ViewHome, Decision{Render: true}},
		{Authenticated, ViewAdd, Decision{Render: true}},
		{Authenticated, ViewLogin, Decision{RedirectTo: ViewHome}},
		{Authenticated, ViewSignup, Decision{RedirectTo: ViewHome}},
	}

	for _, tt := range tests {
		if got := Decide(tt.state, tt.view); got != tt.want {
			t.Errorf("Decide(%v, %v) = %+v, want %+v", tt.state, tt.view, got, tt.want)
		}
	}
}

func TestGateTransitions(t *testing.T) {
	g := NewGate()
	if g.State() != Loading {
		t.Fatalf("NewGate() state = %v, want loading", g.State())
	}

	g.Resolve(domain.Session{}, errors.New("no session"))
	if g.State() != Unauthenticated {
		t.Fatalf("Resolve(err) state = %v, want unauthenticated", g.State())
	}

	// a late startup result must not override the resolved state
	g.Resolve(validSession(), nil)
	if g.State() != Unauthenticated {
		t.Errorf("second Resolve() changed state to %v", g.State())
	}

	g.SignIn(validSession())
	if g.State() != Authenticated {
		t.Fatalf("SignIn() state = %v, want authenticated", g.State())
	}
	if s, ok := g.Session(); !ok || s.UserID != "u1" {
		t.Errorf("Session() = %+v, %v", s, ok)
	}

	g.SignOut()
	if g.State() != Unauthenticated {
		t.Errorf("SignOut() state = %v", g.State())
	}
	if _, ok := g.Session(); ok {
		t.Error("Session() should be empty after SignOut()")
	}
}

func TestResolveWithExpiredSession(t *testing.T) {
	expired := domain.Session{UserID: "u1", ExpiresAt: time.Now().Add(-time.Minute)}
	if g := GateFor(expired, nil); g.State() != Unauthenticated {
		t.Errorf("expired session resolved to %v", g.State())
	}
	if g := GateFor(validSession(), nil); g.State() != Authenticated {
		t.Errorf("valid session resolved to %v", g.State())
	}
}

func TestExpireOnlyAffectsAuthenticated(t *testing.T) {
	g := NewGate()
	g.Expire()
	if g.State() != Loading {
		t.Errorf("Expire() while loading moved to %v", g.State())
	}
}

func TestObserve(t *testing.T) {
	g := GateFor(validSession(), nil)

	g.Observe(SessionEvent{Type: EventExpired, Session: domain.Session{Token: "someone-else"}})
	if g.State() != Authenticated {
		t.Fatal("another session's expiry must not sign this client out")
	}

	g.Observe(SessionEvent{Type: EventSignedIn, Session: domain.Session{Token: "tok"}})
	if g.State() != Authenticated {
		t.Fatal("sign-in events are ignored")
	}

	g.Observe(SessionEvent{Type: EventExpired, Session: domain.Session{Token: "tok"}})
	if g.State() != Unauthenticated {
		t.Errorf("own expiry left state %v", g.State())
	}
}

func TestParseView(t *testing.T) {
	for _, name := range []string{"home", "add", "edit", "login", "signup"} {
		v, err := ParseView(name)
		if err != nil || string(v) != name {
			t.Errorf("ParseView(%q) = %v, %v", name, v, err)
		}
	}
	if _, err := ParseView("admin"); err == nil {
		t.Error("ParseView(admin) should fail")
	}
	if ViewHome.Path() != "/" || ViewLogin.Path() != "/login" {
		t.Errorf("unexpected paths %q %q", ViewHome.Path(), ViewLogin.Path())
	}
}

func TestStateText(t *testing.T) {
	b, _ := Authenticated.MarshalText()
	if string(b) != "authenticated" {
		t.Errorf("MarshalText() = %s", b)
	}
}
