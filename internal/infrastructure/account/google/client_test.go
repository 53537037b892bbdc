package google

import (
	"context"
	"errors"
	"testing"
	"time"

	fbauth "firebase.google.com/go/v4/auth"
)

type stubVerifier struct {
	calls int
	token *fbauth.Token
	err   error
}

func (v *stubVerifier) VerifyIDToken(_ context.Context, _ string) (*fbauth.Token, error) {
	v.calls++
	if v.err != nil {
		return nil, v.err
	}
	return v.token, nil
}

func validToken() *fbauth.Token {
	return &fbauth.Token{
		UID: "firebase-uid-1",
		Claims: map[string]any{
			"email":   "Alice@Festival.Example",
			"name":    "Alice",
			"picture": "https://img/alice",
		},
	}
}

func TestVerifyMapsClaims(t *testing.T) {
	verifier := &stubVerifier{token: validToken()}
	client := newClient(verifier, time.Minute)

	p, err := client.Verify(context.Background(), "token-abc")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.ID != "firebase-uid-1" {
		t.Fatalf("uid not mapped: %q", p.ID)
	}
	if p.Email != "alice@festival.example" {
		t.Fatalf("email not normalized: %q", p.Email)
	}
	if p.DisplayName != "Alice" || p.AvatarURL != "https://img/alice" {
		t.Fatalf("profile claims not mapped: %+v", p)
	}
}

func TestVerifyCachesSuccess(t *testing.T) {
	verifier := &stubVerifier{token: validToken()}
	client := newClient(verifier, time.Minute)
	ctx := context.Background()

	if _, err := client.Verify(ctx, "token-abc"); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if _, err := client.Verify(ctx, "token-abc"); err != nil {
		t.Fatalf("second verify: %v", err)
	}
	if verifier.calls != 1 {
		t.Fatalf("provider called %d times, want 1", verifier.calls)
	}

	// A different token misses the cache.
	if _, err := client.Verify(ctx, "token-def"); err != nil {
		t.Fatalf("third verify: %v", err)
	}
	if verifier.calls != 2 {
		t.Fatalf("provider called %d times, want 2", verifier.calls)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	verifier := &stubVerifier{err: errors.New("token expired")}
	client := newClient(verifier, time.Minute)
	ctx := context.Background()

	if _, err := client.Verify(ctx, ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}
	if _, err := client.Verify(ctx, "bad"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	// Failures must not be cached.
	if _, err := client.Verify(ctx, "bad"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken on retry, got %v", err)
	}
	if verifier.calls != 2 {
		t.Fatalf("failed verifications should not be cached, calls=%d", verifier.calls)
	}
}
