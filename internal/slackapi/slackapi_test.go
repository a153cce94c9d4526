package slackapi

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/scalytics/threadwatch/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBuildInstallURLDefaultsScopes(t *testing.T) {
	c := New(openTestStore(t), Config{ClientID: "CID", RedirectURI: "https://example.com/cb"})
	u := c.BuildInstallURL()
	if !contains(u, "client_id=CID") {
		t.Errorf("expected client_id in url, got %q", u)
	}
	if !contains(u, "scope=commands") {
		t.Errorf("expected default scopes in url, got %q", u)
	}
}

func TestBuildInstallURLCustomScopes(t *testing.T) {
	c := New(openTestStore(t), Config{ClientID: "CID", RedirectURI: "https://example.com/cb", OAuthScopes: "chat:write"})
	u := c.BuildInstallURL()
	if !contains(u, "scope=chat%3Awrite") {
		t.Errorf("expected custom scope encoded in url, got %q", u)
	}
}

func TestExchangeCodeForTokenMissingConfig(t *testing.T) {
	c := New(openTestStore(t), Config{})
	if _, err := c.ExchangeCodeForToken(context.Background(), "abc"); err != ErrMissingClientConfig {
		t.Errorf("expected ErrMissingClientConfig, got %v", err)
	}
}

func TestStoreWorkspaceTokenRejectsInvalidPayload(t *testing.T) {
	c := New(openTestStore(t), Config{})
	if err := c.StoreWorkspaceToken(nil); err != ErrInvalidOAuthPayload {
		t.Errorf("expected ErrInvalidOAuthPayload for nil response, got %v", err)
	}
}

func TestClientForUnknownWorkspace(t *testing.T) {
	c := New(openTestStore(t), Config{})
	if _, err := c.clientFor("T999"); err != ErrWorkspaceNotFound {
		t.Errorf("expected ErrWorkspaceNotFound, got %v", err)
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && indexOf(s, substr) >= 0
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
