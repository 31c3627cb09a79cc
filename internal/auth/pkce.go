package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Verifier length bounds mandated by RFC 7636 section 4.1.
const (
	MinVerifierLength     = 43
	MaxVerifierLength     = 128
	DefaultVerifierLength = 128

	// ChallengeMethodS256 is the only challenge method this service emits.
	ChallengeMethodS256 = "S256"

	// verifierRandomBytes is the number of random bytes drawn per verifier.
	// 96 bytes encode to 128 base64url characters, enough for the longest
	// allowed verifier before trimming.
	verifierRandomBytes = 96
)

// Pair holds a PKCE code verifier and its derived challenge.
// Immutable once created; the verifier only ever lives in the state cache
// between login initiation and callback.
type Pair struct {
	Verifier  string
	Challenge string
	Method    string
}

// GeneratePair generates a PKCE verifier/challenge pair with the given
// verifier length. Length must be within [MinVerifierLength, MaxVerifierLength];
// anything else is a ConfigurationError.
func GeneratePair(length int) (*Pair, error) {
	if length < MinVerifierLength || length > MaxVerifierLength {
		return nil, NewConfigurationError("code verifier length must be between %d and %d, got %d",
			MinVerifierLength, MaxVerifierLength, length)
	}

	b := make([]byte, verifierRandomBytes)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}

	// Use base64 URL encoding without padding as per RFC 7636, trimmed to
	// the requested length.
	verifier := base64.RawURLEncoding.EncodeToString(b)[:length]

	return &Pair{
		Verifier:  verifier,
		Challenge: ComputeChallenge(verifier),
		Method:    ChallengeMethodS256,
	}, nil
}

// ComputeChallenge derives the S256 code challenge from a code verifier:
// BASE64URL(SHA256(ASCII(code_verifier))), no padding.
func ComputeChallenge(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h[:])
}

// NewStateToken generates a random state parameter for CSRF protection.
// 32 bytes of entropy, base64url encoded.
func NewStateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
