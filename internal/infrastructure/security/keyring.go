package security

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/awnumar/memguard"
)

// MinSecretLen is the shortest HMAC secret accepted for a signing key.
const MinSecretLen = 32

var (
	errUnknownKey = errors.New("unknown signing key")
	errKeyRetired = errors.New("signing key past its grace window")
)

// SigningKey is one HMAC key. NotAfter is ignored for the active key; for a
// retired key it is the instant after which tokens signed by it stop verifying.
type SigningKey struct {
	ID       string
	Secret   []byte
	NotAfter time.Time
}

type sealedKey struct {
	id       string
	enclave  *memguard.Enclave
	notAfter time.Time
}

/*
Keyring
----
Holds exactly one active key (used for issuance) and any number of retired
keys that still verify until their NotAfter. Secrets live in memguard enclaves
and are only decrypted for the duration of a sign or verify.
*/
type Keyring struct {
	mu      sync.RWMutex
	active  sealedKey
	retired map[string]sealedKey
	grace   time.Duration
	now     func() time.Time
}

// NewKeyring builds a keyring whose retired keys must all carry NotAfter.
func NewKeyring(active SigningKey, previous ...SigningKey) (*Keyring, error) {
	return NewKeyringWithGrace(0, active, previous...)
}

// NewKeyringWithGrace builds a keyring that gives a retired key without
// NotAfter a deadline of grace from the moment this keyring first sees it
// retired. Later Replace calls keep that deadline.
func NewKeyringWithGrace(grace time.Duration, active SigningKey, previous ...SigningKey) (*Keyring, error) {
	k := &Keyring{grace: grace, now: time.Now}
	if err := k.Replace(active, previous...); err != nil {
		return nil, err
	}
	return k, nil
}

// Replace swaps the whole key set atomically. A retired key with a zero
// NotAfter keeps the deadline the keyring already holds for it; a kid seen
// retired for the first time gets now+grace.
func (k *Keyring) Replace(active SigningKey, previous ...SigningKey) error {
	a, err := seal(active)
	if err != nil {
		return fmt.Errorf("active key: %w", err)
	}

	sealed := make([]sealedKey, 0, len(previous))
	seen := make(map[string]struct{}, len(previous))
	for _, p := range previous {
		if p.ID == active.ID {
			return fmt.Errorf("key %q is both active and retired", p.ID)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("duplicate key id %q", p.ID)
		}
		seen[p.ID] = struct{}{}
		if p.NotAfter.IsZero() && k.grace <= 0 {
			return fmt.Errorf("retired key %q has no not_after", p.ID)
		}
		s, err := seal(p)
		if err != nil {
			return fmt.Errorf("retired key %q: %w", p.ID, err)
		}
		sealed = append(sealed, s)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	retired := make(map[string]sealedKey, len(sealed))
	for _, s := range sealed {
		if s.notAfter.IsZero() {
			if known, ok := k.retired[s.id]; ok {
				s.notAfter = known.notAfter
			} else {
				s.notAfter = now.Add(k.grace)
			}
		}
		retired[s.id] = s
	}
	k.active = a
	k.retired = retired
	return nil
}

// Rotate makes next the active key. The previous active key keeps verifying
// for grace.
func (k *Keyring) Rotate(next SigningKey, grace time.Duration) error {
	s, err := seal(next)
	if err != nil {
		return fmt.Errorf("next key: %w", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if next.ID == k.active.id {
		return fmt.Errorf("key %q is already active", next.ID)
	}

	now := k.now()
	old := k.active
	old.notAfter = now.Add(grace)

	for id, r := range k.retired {
		if !now.Before(r.notAfter) {
			delete(k.retired, id)
		}
	}
	delete(k.retired, next.ID)
	if grace > 0 {
		k.retired[old.id] = old
	}
	k.active = s
	return nil
}

// ActiveID returns the kid new tokens are signed with.
func (k *Keyring) ActiveID() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.active.id
}

// KeyIDs lists the active kid first, then retired kids still inside grace.
func (k *Keyring) KeyIDs() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()

	now := k.now()
	ids := []string{k.active.id}
	var rest []string
	for id, r := range k.retired {
		if now.Before(r.notAfter) {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(ids, rest...)
}

// openActive decrypts the active key. The caller must Destroy the buffer.
func (k *Keyring) openActive() (string, *memguard.LockedBuffer, error) {
	k.mu.RLock()
	a := k.active
	k.mu.RUnlock()

	buf, err := a.enclave.Open()
	if err != nil {
		return "", nil, err
	}
	return a.id, buf, nil
}

// open decrypts the key named kid if it may verify tokens at the given time.
// The caller must Destroy the buffer.
func (k *Keyring) open(kid string, at time.Time) (*memguard.LockedBuffer, error) {
	k.mu.RLock()
	var (
		s  sealedKey
		ok bool
	)
	if kid == k.active.id {
		s, ok = k.active, true
	} else {
		s, ok = k.retired[kid]
		if ok && !at.Before(s.notAfter) {
			k.mu.RUnlock()
			return nil, errKeyRetired
		}
	}
	k.mu.RUnlock()

	if !ok {
		return nil, errUnknownKey
	}
	return s.enclave.Open()
}

func seal(key SigningKey) (sealedKey, error) {
	if key.ID == "" {
		return sealedKey{}, errors.New("key id is empty")
	}
	if len(key.Secret) < MinSecretLen {
		return sealedKey{}, fmt.Errorf("secret must be at least %d bytes", MinSecretLen)
	}
	// NewEnclave wipes its input; keep the caller's slice intact.
	cp := make([]byte, len(key.Secret))
	copy(cp, key.Secret)
	return sealedKey{
		id:       key.ID,
		enclave:  memguard.NewEnclave(cp),
		notAfter: key.NotAfter,
	}, nil
}
