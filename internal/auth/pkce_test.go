package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"testing"
)

func TestGeneratePair(t *testing.T) {
	for length := MinVerifierLength; length <= MaxVerifierLength; length++ {
		pair, err := GeneratePair(length)
		if err != nil {
			t.Fatalf("GeneratePair(%d) error = %v", length, err)
		}

		if len(pair.Verifier) != length {
			t.Errorf("GeneratePair(%d) verifier length = %d", length, len(pair.Verifier))
		}
		if pair.Method != ChallengeMethodS256 {
			t.Errorf("GeneratePair(%d) method = %q, want %q", length, pair.Method, ChallengeMethodS256)
		}

		h := sha256.Sum256([]byte(pair.Verifier))
		want := base64.RawURLEncoding.EncodeToString(h[:])
		if pair.Challenge != want {
			t.Errorf("GeneratePair(%d) challenge = %q, want %q", length, pair.Challenge, want)
		}
	}
}

func TestGeneratePairInvalidLength(t *testing.T) {
	for _, length := range []int{0, -1, 42, 129, 1000} {
		_, err := GeneratePair(length)
		if err == nil {
			t.Errorf("GeneratePair(%d) expected error", length)
			continue
		}
		var confErr *ConfigurationError
		if !errors.As(err, &confErr) {
			t.Errorf("GeneratePair(%d) error = %T, want *ConfigurationError", length, err)
		}
	}
}

func TestGeneratePairUnique(t *testing.T) {
	verifiers := make(map[string]bool)
	for i := 0; i < 100; i++ {
		pair, err := GeneratePair(DefaultVerifierLength)
		if err != nil {
			t.Fatalf("GeneratePair() iteration %d error = %v", i, err)
		}
		if verifiers[pair.Verifier] {
			t.Errorf("GeneratePair() generated duplicate verifier")
		}
		verifiers[pair.Verifier] = true
	}
}

func TestComputeChallengeDeterministic(t *testing.T) {
	// Known vector from RFC 7636 appendix B
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	want := "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"

	if got := ComputeChallenge(verifier); got != want {
		t.Errorf("ComputeChallenge() = %q, want %q", got, want)
	}
	if got := ComputeChallenge(verifier); got != ComputeChallenge(verifier) {
		t.Errorf("ComputeChallenge() not deterministic: %q", got)
	}
}

func TestNewStateToken(t *testing.T) {
	state, err := NewStateToken()
	if err != nil {
		t.Fatalf("NewStateToken() error = %v", err)
	}

	// 32 random bytes base64url encoded = 43 characters
	if len(state) != 43 {
		t.Errorf("NewStateToken() length = %d, want 43", len(state))
	}
	if _, err := base64.RawURLEncoding.DecodeString(state); err != nil {
		t.Errorf("NewStateToken() not valid base64url: %v", err)
	}

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		s, err := NewStateToken()
		if err != nil {
			t.Fatalf("NewStateToken() iteration %d error = %v", i, err)
		}
		if seen[s] {
			t.Errorf("NewStateToken() generated duplicate")
		}
		seen[s] = true
	}
}
