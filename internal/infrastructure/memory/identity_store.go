package memory

import (
	"context"
	"sync"
	"time"

	"github.com/baechuer/contacts-api/internal/domain"
)

// IdentityStore is the in-process primary store used in dev and tests.
type IdentityStore struct {
	mu      sync.RWMutex
	byID    map[string]domain.Identity
	byEmail map[string]string // email -> id
}

func NewIdentityStore() *IdentityStore {
	return &IdentityStore{
		byID:    make(map[string]domain.Identity),
		byEmail: make(map[string]string),
	}
}

func (r *IdentityStore) FindByEmail(ctx context.Context, email string) (domain.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return domain.Identity{}, domain.ErrUserNotFound()
	}
	return r.byID[id], nil
}

func (r *IdentityStore) FindByID(ctx context.Context, id string) (domain.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return domain.Identity{}, domain.ErrUserNotFound()
	}
	return u, nil
}

func (r *IdentityStore) Insert(ctx context.Context, u domain.Identity) (domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u.ID == "" {
		return domain.Identity{}, domain.ErrMissingField("id")
	}
	if _, exists := r.byEmail[u.Email]; exists {
		return domain.Identity{}, domain.ErrEmailAlreadyExists()
	}
	if _, exists := r.byID[u.ID]; exists {
		return domain.Identity{}, domain.ErrEmailAlreadyExists()
	}

	r.byID[u.ID] = u
	r.byEmail[u.Email] = u.ID
	return u, nil
}

func (r *IdentityStore) UpdatePassword(ctx context.Context, id string, hash string) error {
	return r.update(id, func(u *domain.Identity) { u.PasswordHash = hash })
}

func (r *IdentityStore) SetVerified(ctx context.Context, id string) error {
	return r.update(id, func(u *domain.Identity) { u.Verified = true })
}

func (r *IdentityStore) SetRole(ctx context.Context, id string, role string) error {
	return r.update(id, func(u *domain.Identity) { u.Role = role })
}

func (r *IdentityStore) CountByRole(ctx context.Context, role string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, u := range r.byID {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (r *IdentityStore) update(id string, fn func(u *domain.Identity)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return domain.ErrUserNotFound()
	}
	fn(&u)
	u.UpdatedAt = time.Now().UTC()
	r.byID[id] = u
	return nil
}
