package auth

import (
	"context"
	"errors"
	"testing"

	"botfleet/internal/model"
)

func TestHashAPIKey(t *testing.T) {
	h1 := HashAPIKey("test-key-123")
	h2 := HashAPIKey("test-key-123")
	if h1 != h2 {
		t.Fatalf("same key produced different hashes: %q vs %q", h1, h2)
	}

	h3 := HashAPIKey("different-key")
	if h1 == h3 {
		t.Fatal("different keys produced the same hash")
	}

	if len(h1) != 64 {
		t.Fatalf("hash length = %d, want 64", len(h1))
	}
}

func TestAPIKeyAuthenticateEmptyKey(t *testing.T) {
	authn := NewAPIKeyAuthenticator(nil)

	_, err := authn.Authenticate(context.Background(), "")
	if !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestBotSystemTokenAuthenticateEmptyToken(t *testing.T) {
	authn := NewBotSystemTokenAuthenticator(nil)

	err := authn.Authenticate(context.Background(), 1, "")
	if !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
