package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pepper-assistant/pepper/internal/logging"
)

// Store holds one encrypted credential record per user id, in memory.
// All access goes through a single mutex so mutations for a given user are
// atomic with respect to every other operation on that key; there is no
// window where a record is half written or duplicated.
//
// The store is volatile on purpose. A durable backend can replace it without
// changing the contract: callers only ever see CredentialRecord values,
// never the ciphertext.
type Store struct {
	mu      sync.Mutex
	records map[string][]byte
	cipher  *Cipher
	logger  *slog.Logger

	now func() time.Time
}

// NewStore creates an in-memory credential store encrypting via the given cipher.
func NewStore(cipher *Cipher, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		records: make(map[string][]byte),
		cipher:  cipher,
		logger:  logger,
		now:     time.Now,
	}
}

// Store seals and persists the record for the user, replacing any prior
// record. StoredAt is stamped with the current time as part of the record
// before sealing. Reports whether a prior record was replaced, so callers
// can tell a fresh session from a re-login.
func (s *Store) Store(userID string, record *CredentialRecord) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("user id cannot be empty")
	}
	if record == nil {
		return false, fmt.Errorf("record cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sealed, err := s.sealLocked(userID, record)
	if err != nil {
		return false, err
	}
	_, replaced := s.records[userID]
	s.records[userID] = sealed
	return replaced, nil
}

// StoreIfPresent persists the record only while a record for the user still
// exists, returning ErrNotFound otherwise. The refresh path uses this so a
// refresh racing a logout deterministically resolves to one of the two
// outcomes and never resurrects a deleted session.
func (s *Store) StoreIfPresent(userID string, record *CredentialRecord) error {
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[userID]; !exists {
		return ErrNotFound
	}

	sealed, err := s.sealLocked(userID, record)
	if err != nil {
		return err
	}
	s.records[userID] = sealed
	return nil
}

// Get decrypts and returns the user's record, or ErrNotFound if absent.
// A record that fails authentication is dropped and reported as
// ErrDecryptionFailure; the user must authenticate again.
func (s *Store) Get(userID string) (*CredentialRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getLocked(userID)
}

// Delete removes the user's record and reports whether one existed.
func (s *Store) Delete(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.records[userID]
	delete(s.records, userID)
	if existed {
		s.logger.Info("deleted credential record", logging.UserHash(userID))
	}
	return existed
}

// IsExpired reports whether the user's access token has expired. Absent or
// undecryptable records count as expired.
func (s *Store) IsExpired(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.getLocked(userID)
	if err != nil {
		return true
	}
	return !s.now().Before(record.ExpiresAt())
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Clear destroys all ciphertext, for process teardown.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for userID, sealed := range s.records {
		for i := range sealed {
			sealed[i] = 0
		}
		delete(s.records, userID)
	}
}

// getLocked decrypts the record for userID. Caller must hold s.mu.
func (s *Store) getLocked(userID string) (*CredentialRecord, error) {
	sealed, exists := s.records[userID]
	if !exists {
		return nil, ErrNotFound
	}

	record, err := s.cipher.Open(sealed)
	if err != nil {
		if errors.Is(err, ErrDecryptionFailure) {
			// The record can never decrypt again with the same inputs;
			// drop it so the user is forced back through login.
			delete(s.records, userID)
			s.logger.Warn("dropped undecryptable credential record", logging.UserHash(userID))
		}
		return nil, err
	}

	return record, nil
}

// sealLocked stamps StoredAt and encrypts the record. Caller must hold s.mu.
func (s *Store) sealLocked(userID string, record *CredentialRecord) ([]byte, error) {
	record.StoredAt = s.now()

	sealed, err := s.cipher.Seal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to seal credential record: %w", err)
	}

	s.logger.Debug("stored credential record",
		logging.UserHash(userID),
		"expires_at", record.ExpiresAt(),
		"has_refresh_token", record.RefreshToken != "")
	return sealed, nil
}
