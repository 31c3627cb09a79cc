// Package auth implements the OAuth 2.0 Authorization-Code-with-PKCE flow
// and the encrypted credential lifecycle store behind it.
//
// The package is built from four leaves and one composer:
//
//   - PKCE pair generation (GeneratePair): RFC 7636 verifier/challenge pairs
//     with the S256 method.
//   - StateCache: a short-lived, single-use map from anti-CSRF state tokens
//     to PKCE verifiers. Take is an atomic lookup-and-delete, so a replayed
//     callback can never succeed twice.
//   - Cipher: AES-256-GCM authenticated encryption for credential records,
//     keyed by a SHA-256 derivation of the configured secret.
//   - Store: one encrypted CredentialRecord per user id with derived
//     expiration tracking, safe under concurrent access.
//   - Orchestrator: composes the above with an identity.Provider to
//     implement login, callback, refresh, logout, and status.
//
// All stores are volatile and explicitly constructed; a durable backend can
// replace them without changing the contract. Token material never appears
// in errors or log lines.
package auth
