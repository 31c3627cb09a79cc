// Package logging provides structured logging utilities for the pepper
// auth service.
//
// This package centralizes logging patterns to ensure consistent, structured
// logging throughout the codebase using the standard library's slog package.
//
// Sensitive data handling:
//   - User subject ids are hashed (UserHash) to prevent PII leakage while
//     still allowing correlation across log entries.
//   - Token material is never logged; where a hint is useful, SanitizeToken
//     yields only a length indicator.
package logging
