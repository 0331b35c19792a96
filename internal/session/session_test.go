package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"powerdash/internal/localstore"
)

type fakeLoginAPI struct {
	token string
	err   error
	calls int
}

func (f *fakeLoginAPI) Login(ctx context.Context, username, password string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

func makeToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	header, _ := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}
	enc := base64.RawURLEncoding
	return fmt.Sprintf("%s.%s.%s", enc.EncodeToString(header), enc.EncodeToString(payload), enc.EncodeToString([]byte("sig")))
}

func TestLogin_DecodesClaims(t *testing.T) {
	tok := makeToken(t, map[string]any{"sub": "jan", "role": "admin", "id": 7, "email": "jan@example.com"})
	api := &fakeLoginAPI{token: tok}
	state := localstore.Open("", nil)
	s := New(api, state, nil)

	if err := s.Login(context.Background(), "jan", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !s.IsAuthenticated() {
		t.Fatalf("expected authenticated")
	}
	u := s.User()
	if u == nil {
		t.Fatalf("expected user")
	}
	if u.Sub != "jan" || u.Role != "admin" || u.ID != 7 || u.Email != "jan@example.com" {
		t.Fatalf("unexpected claims: %+v", u)
	}
	if s.Token() != tok {
		t.Fatalf("expected raw token kept")
	}
}

func TestLogin_MalformedTokenFailsClosed(t *testing.T) {
	for _, tok := range []string{
		"not-a-token",
		"two.segments",
		"a.b.c.d",
		"aGVhZGVy.!!!notbase64!!!.c2ln",
	} {
		api := &fakeLoginAPI{token: tok}
		state := localstore.Open("", nil)
		s := New(api, state, nil)

		if err := s.Login(context.Background(), "jan", "pw"); err != nil {
			t.Fatalf("Login(%q): %v", tok, err)
		}
		if s.IsAuthenticated() {
			t.Fatalf("expected unauthenticated for token %q", tok)
		}
		if s.User() != nil {
			t.Fatalf("expected nil user for token %q", tok)
		}
		// The raw string is still persisted.
		if s.Token() != tok {
			t.Fatalf("expected raw token stored for %q", tok)
		}
	}
}

func TestLogin_PropagatesAPIError(t *testing.T) {
	wantErr := errors.New("invalid credentials")
	api := &fakeLoginAPI{err: wantErr}
	s := New(api, localstore.Open("", nil), nil)

	err := s.Login(context.Background(), "jan", "bad")
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected login error, got %v", err)
	}
	if s.IsAuthenticated() {
		t.Fatalf("expected unauthenticated after failed login")
	}
}

func TestLogout_AlwaysClears(t *testing.T) {
	tok := makeToken(t, map[string]any{"sub": "jan", "role": "user"})
	state := localstore.Open("", nil)
	s := New(&fakeLoginAPI{token: tok}, state, nil)

	if err := s.Login(context.Background(), "jan", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	s.Logout()
	if s.IsAuthenticated() {
		t.Fatalf("expected unauthenticated after logout")
	}
	if s.User() != nil || s.Token() != "" {
		t.Fatalf("expected cleared session")
	}

	var stored string
	ok, _ := state.Get(localstore.KeyToken, &stored)
	if ok {
		t.Fatalf("expected persisted token removed")
	}

	// Logout on a fresh store is a no-op, never an error.
	s2 := New(&fakeLoginAPI{}, localstore.Open("", nil), nil)
	s2.Logout()
	if s2.IsAuthenticated() {
		t.Fatalf("expected unauthenticated")
	}
}

func TestRehydration_FromPersistedToken(t *testing.T) {
	tok := makeToken(t, map[string]any{"sub": "mia", "role": "superadmin"})
	state := localstore.Open("", nil)
	first := New(&fakeLoginAPI{token: tok}, state, nil)
	if err := first.Login(context.Background(), "mia", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	// A second store over the same state sees the same session without any
	// network call.
	api := &fakeLoginAPI{}
	second := New(api, state, nil)
	if !second.IsAuthenticated() {
		t.Fatalf("expected rehydrated session")
	}
	if u := second.User(); u == nil || u.Sub != "mia" || u.Role != "superadmin" {
		t.Fatalf("unexpected rehydrated user: %+v", second.User())
	}
	if api.calls != 0 {
		t.Fatalf("rehydration must not hit the network, got %d calls", api.calls)
	}
}
