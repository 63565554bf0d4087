package auth

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"git.uuxo.net/uuxo/fileshare-server/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.InitMetrics()
	os.Exit(m.Run())
}

var testUsers = []User{
	{ID: "alice", Username: "alice", Password: "pw1"},
	{ID: "bob", Username: "bob", Password: "pw2"},
}

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		wantErr  bool
	}{
		{"valid credentials", "alice", "pw1", false},
		{"second valid user", "bob", "pw2", false},
		{"wrong password", "alice", "pw2", true},
		{"unknown user", "mallory", "pw1", true},
		{"empty credentials", "", "", true},
	}

	store := NewSessionStore(testUsers, 0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := store.Authenticate(tt.username, tt.password)
			if tt.wantErr {
				if err != ErrAuthFailure {
					t.Errorf("Authenticate() error = %v, want ErrAuthFailure", err)
				}
				if token != "" {
					t.Errorf("Authenticate() token = %q, want empty", token)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authenticate() unexpected error: %v", err)
			}
			if len(token) != 32 {
				t.Errorf("token length = %d, want 32", len(token))
			}
		})
	}
}

func TestTokensAreDistinct(t *testing.T) {
	store := NewSessionStore(testUsers, 0)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		token, err := store.Authenticate("alice", "pw1")
		if err != nil {
			t.Fatalf("Authenticate() failed: %v", err)
		}
		if seen[token] {
			t.Fatalf("token %q issued twice", token)
		}
		seen[token] = true
	}
}

func TestResolve(t *testing.T) {
	store := NewSessionStore(testUsers, 0)
	token, err := store.Authenticate("alice", "pw1")
	if err != nil {
		t.Fatal(err)
	}

	owner, err := store.Resolve(token)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if owner != "alice" {
		t.Errorf("Resolve() = %q, want alice", owner)
	}

	if _, err := store.Resolve("no-such-token"); err != ErrTokenInvalid {
		t.Errorf("Resolve(unknown) error = %v, want ErrTokenInvalid", err)
	}
	if _, err := store.Resolve(""); err != ErrTokenInvalid {
		t.Errorf("Resolve(empty) error = %v, want ErrTokenInvalid", err)
	}
}

func TestResolveExpiry(t *testing.T) {
	store := NewSessionStore(testUsers, 24*time.Hour)
	now := time.Now()
	store.now = func() time.Time { return now }

	token, err := store.Authenticate("alice", "pw1")
	if err != nil {
		t.Fatal(err)
	}

	// One second short of expiry the token is still good.
	store.now = func() time.Time { return now.Add(24*time.Hour - time.Second) }
	if _, err := store.Resolve(token); err != nil {
		t.Errorf("Resolve() just before expiry failed: %v", err)
	}

	// At exactly 24h the token is invalid and the entry is gone.
	store.now = func() time.Time { return now.Add(24 * time.Hour) }
	if _, err := store.Resolve(token); err != ErrTokenInvalid {
		t.Errorf("Resolve() at expiry = %v, want ErrTokenInvalid", err)
	}

	// The expired entry was deleted, not just hidden.
	store.mu.RLock()
	_, exists := store.sessions[token]
	store.mu.RUnlock()
	if exists {
		t.Error("expired session still present after Resolve")
	}
}

func TestRevoke(t *testing.T) {
	store := NewSessionStore(testUsers, 0)
	token, err := store.Authenticate("alice", "pw1")
	if err != nil {
		t.Fatal(err)
	}

	store.Revoke(token)
	if _, err := store.Resolve(token); err != ErrTokenInvalid {
		t.Errorf("Resolve() after Revoke = %v, want ErrTokenInvalid", err)
	}

	// Revoking again, or revoking garbage, must not panic or error.
	store.Revoke(token)
	store.Revoke("never-issued")
}

func TestAuthenticateSweepsExpired(t *testing.T) {
	store := NewSessionStore(testUsers, time.Hour)
	now := time.Now()
	store.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		if _, err := store.Authenticate("alice", "pw1"); err != nil {
			t.Fatal(err)
		}
	}

	store.now = func() time.Time { return now.Add(2 * time.Hour) }
	if _, err := store.Authenticate("bob", "pw2"); err != nil {
		t.Fatal(err)
	}

	// The five stale sessions were swept during the new authenticate.
	if got := store.Count(); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
}

func TestLoadUsers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users.json")
	content := `[{"id":"u1","username":"alice","password":"pw1"}]`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	users, err := LoadUsers(path)
	if err != nil {
		t.Fatalf("LoadUsers() error: %v", err)
	}
	if len(users) != 1 || users[0].ID != "u1" {
		t.Errorf("LoadUsers() = %+v", users)
	}

	if _, err := LoadUsers(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("LoadUsers() on missing file should fail")
	}
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"bearer token", "Bearer abc123", "abc123"},
		{"missing header", "", ""},
		{"wrong scheme", "Basic abc123", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := http.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if got := TokenFromRequest(r); got != tt.want {
				t.Errorf("TokenFromRequest() = %q, want %q", got, tt.want)
			}
		})
	}
}
