package memory

import (
	"context"
	"sync"
	"time"
)

// ConsumedTokenStore records used reset-token nonces in process memory.
type ConsumedTokenStore struct {
	mu     sync.Mutex
	nonces map[string]time.Time // nonce -> token expiry
}

func NewConsumedTokenStore() *ConsumedTokenStore {
	return &ConsumedTokenStore{nonces: make(map[string]time.Time)}
}

func (s *ConsumedTokenStore) Claim(ctx context.Context, nonce, subject string, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, used := s.nonces[nonce]; used {
		return false, nil
	}
	s.nonces[nonce] = expiresAt
	return true, nil
}

func (s *ConsumedTokenStore) Release(ctx context.Context, nonce string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.nonces, nonce)
	return nil
}

func (s *ConsumedTokenStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, exp := range s.nonces {
		if !now.Before(exp) {
			delete(s.nonces, k)
			n++
		}
	}
	return n, nil
}
