package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/baechuer/contacts-api/internal/domain"
)

/*
Shared audit capture
*/

type auditEntry struct {
	action string
	fields map[string]string
}

/*
Fakes for ports
*/

type fakeStore struct {
	mu sync.Mutex

	byID    map[string]domain.Identity
	byEmail map[string]string // email -> id

	// injected errors (if set, method returns error)
	findByIDErr    error
	findByEmailErr error
	insertErr      error
	updatePwdErr   error
	setVerifiedErr error
	setRoleErr     error
	countByRoleErr error

	// blocks FindByID until closed, when set
	findGate chan struct{}
	// runs after FindByID has read the row, before it returns
	afterFind func(id string)

	findByIDCalls atomic.Int32
	setVerified   []string
	updatedPwd    []struct{ id, hash string }
	setRoles      []struct{ id, role string }
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byID:    map[string]domain.Identity{},
		byEmail: map[string]string{},
	}
}

func (f *fakeStore) seed(id domain.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[id.ID] = id
	f.byEmail[id.Email] = id.ID
}

func (f *fakeStore) get(id string) domain.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id]
}

func (f *fakeStore) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[id]; ok {
		delete(f.byEmail, u.Email)
	}
	delete(f.byID, id)
}

func (f *fakeStore) FindByEmail(ctx context.Context, email string) (domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.findByEmailErr != nil {
		return domain.Identity{}, f.findByEmailErr
	}
	id, ok := f.byEmail[email]
	if !ok {
		return domain.Identity{}, domain.ErrUserNotFound()
	}
	return f.byID[id], nil
}

func (f *fakeStore) FindByID(ctx context.Context, id string) (domain.Identity, error) {
	f.findByIDCalls.Add(1)
	if f.findGate != nil {
		<-f.findGate
	}

	f.mu.Lock()
	if f.findByIDErr != nil {
		f.mu.Unlock()
		return domain.Identity{}, f.findByIDErr
	}
	u, ok := f.byID[id]
	f.mu.Unlock()

	if f.afterFind != nil {
		f.afterFind(id)
	}
	if !ok {
		return domain.Identity{}, domain.ErrUserNotFound()
	}
	return u, nil
}

func (f *fakeStore) Insert(ctx context.Context, u domain.Identity) (domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.insertErr != nil {
		return domain.Identity{}, f.insertErr
	}
	if _, dup := f.byEmail[u.Email]; dup {
		return domain.Identity{}, domain.ErrEmailAlreadyExists()
	}
	f.byID[u.ID] = u
	f.byEmail[u.Email] = u.ID
	return u, nil
}

func (f *fakeStore) UpdatePassword(ctx context.Context, id string, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.updatePwdErr != nil {
		return f.updatePwdErr
	}
	u, ok := f.byID[id]
	if !ok {
		return domain.ErrUserNotFound()
	}
	u.PasswordHash = hash
	f.byID[id] = u
	f.updatedPwd = append(f.updatedPwd, struct{ id, hash string }{id, hash})
	return nil
}

func (f *fakeStore) SetVerified(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.setVerifiedErr != nil {
		return f.setVerifiedErr
	}
	u, ok := f.byID[id]
	if !ok {
		return domain.ErrUserNotFound()
	}
	u.Verified = true
	f.byID[id] = u
	f.setVerified = append(f.setVerified, id)
	return nil
}

func (f *fakeStore) SetRole(ctx context.Context, id string, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.setRoleErr != nil {
		return f.setRoleErr
	}
	u, ok := f.byID[id]
	if !ok {
		return domain.ErrUserNotFound()
	}
	u.Role = role
	f.byID[id] = u
	f.setRoles = append(f.setRoles, struct{ id, role string }{id, role})
	return nil
}

func (f *fakeStore) CountByRole(ctx context.Context, role string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.countByRoleErr != nil {
		return 0, f.countByRoleErr
	}
	cnt := 0
	for _, u := range f.byID {
		if u.Role == role {
			cnt++
		}
	}
	return cnt, nil
}

type fakeHasher struct {
	hashFn func(pw string) (string, error)
	calls  atomic.Int32
}

func (h *fakeHasher) Hash(password string) (string, error) {
	if h.hashFn != nil {
		return h.hashFn(password)
	}
	return "hash:" + password, nil
}

func (h *fakeHasher) Verify(password string, digest string) bool {
	h.calls.Add(1)
	return digest == "hash:"+password
}

// fakeCodec keeps issued claims in memory. Tokens look like JWTs (three
// dot-separated segments) so the authenticator's shape check passes.
type fakeCodec struct {
	mu sync.Mutex

	seq     int
	issued  map[string]TokenClaims
	expired map[string]bool

	issueErr error
}

func newFakeCodec() *fakeCodec {
	return &fakeCodec{
		issued:  map[string]TokenClaims{},
		expired: map[string]bool{},
	}
}

func (c *fakeCodec) Issue(req TokenRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.issueErr != nil {
		return "", c.issueErr
	}
	c.seq++
	tok := fmt.Sprintf("hdr.%s-%d.sig", req.Purpose, c.seq)
	now := time.Now()
	c.issued[tok] = TokenClaims{
		Subject:   req.Subject,
		Purpose:   req.Purpose,
		Nonce:     fmt.Sprintf("nonce-%d", c.seq),
		Binding:   req.Binding,
		IssuedAt:  now,
		ExpiresAt: now.Add(req.TTL),
	}
	return tok, nil
}

func (c *fakeCodec) Verify(token string, purpose domain.TokenPurpose) (TokenClaims, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	claims, ok := c.issued[token]
	if !ok {
		return TokenClaims{}, domain.ErrTokenInvalid()
	}
	if c.expired[token] {
		return TokenClaims{}, domain.ErrTokenExpired()
	}
	if claims.Purpose != purpose {
		return TokenClaims{}, domain.ErrTokenInvalid()
	}
	return claims, nil
}

func (c *fakeCodec) expire(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expired[token] = true
}

type fakeCache struct {
	mu sync.Mutex

	entries map[string]domain.Identity

	// down makes every Get miss and every Put a no-op.
	down          bool
	invalidateErr error

	gets        int
	puts        int
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]domain.Identity{}}
}

func (c *fakeCache) Get(ctx context.Context, id string) (domain.Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gets++
	if c.down {
		return domain.Identity{}, false
	}
	v, ok := c.entries[id]
	return v, ok
}

func (c *fakeCache) Put(ctx context.Context, identity domain.Identity, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.puts++
	if c.down {
		return
	}
	c.entries[identity.ID] = identity
}

func (c *fakeCache) Invalidate(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.invalidated = append(c.invalidated, id)
	if c.invalidateErr != nil {
		return c.invalidateErr
	}
	delete(c.entries, id)
	return nil
}

func (c *fakeCache) entry(id string) (domain.Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[id]
	return v, ok
}

type fakeConsumed struct {
	mu sync.Mutex

	nonces map[string]time.Time

	claimErr error
	released []string
}

func newFakeConsumed() *fakeConsumed {
	return &fakeConsumed{nonces: map[string]time.Time{}}
}

func (c *fakeConsumed) Claim(ctx context.Context, nonce, subject string, expiresAt time.Time) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.claimErr != nil {
		return false, c.claimErr
	}
	if _, ok := c.nonces[nonce]; ok {
		return false, nil
	}
	c.nonces[nonce] = expiresAt
	return true, nil
}

func (c *fakeConsumed) Release(ctx context.Context, nonce string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.nonces, nonce)
	c.released = append(c.released, nonce)
	return nil
}

func (c *fakeConsumed) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int64
	for k, exp := range c.nonces {
		if !now.Before(exp) {
			delete(c.nonces, k)
			n++
		}
	}
	return n, nil
}

type sentMail struct {
	kind string
	to   string
	link string
}

type fakeNotifier struct {
	mu  sync.Mutex
	err error

	sent []sentMail
}

func (n *fakeNotifier) ConfirmationEmail(ctx context.Context, to, link string) error {
	return n.record("confirm", to, link)
}

func (n *fakeNotifier) PasswordResetEmail(ctx context.Context, to, link string) error {
	return n.record("reset", to, link)
}

func (n *fakeNotifier) record(kind, to, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMail{kind: kind, to: to, link: link})
	return nil
}

func (n *fakeNotifier) last(t *testing.T, kind string) sentMail {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()

	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].kind == kind {
			return n.sent[i]
		}
	}
	t.Fatalf("no %s mail sent", kind)
	return sentMail{}
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

/*
Service factory for tests
*/

const (
	testConfirmBase = "https://app/auth/confirm/"
	testResetBase   = "https://app/auth/reseted_password/"
)

type testEnv struct {
	store    *fakeStore
	hasher   *fakeHasher
	codec    *fakeCodec
	cache    *fakeCache
	consumed *fakeConsumed
	notifier *fakeNotifier
	audits   *[]auditEntry
}

func newSvcForTest(t *testing.T) (*Service, *testEnv) {
	t.Helper()

	env := &testEnv{
		store:    newFakeStore(),
		hasher:   &fakeHasher{},
		codec:    newFakeCodec(),
		cache:    newFakeCache(),
		consumed: newFakeConsumed(),
		notifier: &fakeNotifier{},
		audits:   &[]auditEntry{},
	}

	var auditMu sync.Mutex
	cfg := Config{
		AccessTTL:      15 * time.Minute,
		ConfirmTTL:     7 * 24 * time.Hour,
		ResetTTL:       30 * time.Minute,
		CacheTTL:       5 * time.Minute,
		ConfirmBaseURL: testConfirmBase,
		ResetBaseURL:   testResetBase,
	}

	svc := NewService(env.store, env.hasher, env.codec, env.cache, env.consumed, env.notifier, cfg).
		WithAudit(func(action string, fields map[string]string) {
			cp := map[string]string{}
			for k, v := range fields {
				cp[k] = v
			}
			auditMu.Lock()
			*env.audits = append(*env.audits, auditEntry{action: action, fields: cp})
			auditMu.Unlock()
		})

	// sanity check: no nil ports
	if svc == nil {
		t.Fatalf("svc is nil")
	}

	return svc, env
}

// seedUser stores an identity whose password is pw.
func (e *testEnv) seedUser(id, email, pw string, verified bool, role string) domain.Identity {
	u := domain.Identity{
		ID:           id,
		Email:        email,
		PasswordHash: "hash:" + pw,
		Verified:     verified,
		Role:         role,
	}
	e.store.seed(u)
	return u
}

func tokenFromLink(t *testing.T, link, base string) string {
	t.Helper()
	if !strings.HasPrefix(link, base) {
		t.Fatalf("link %q does not start with %q", link, base)
	}
	return strings.TrimPrefix(link, base)
}

/*
Small assertions
*/

func requireDomainCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	got := domainCode(err)
	if got != wantCode {
		t.Fatalf("expected domain code %q, got %q (err=%v)", wantCode, got, err)
	}
}

func requireKind(t *testing.T, err error, want domain.ErrKind) {
	t.Helper()
	de, ok := domain.As(err)
	if !ok {
		t.Fatalf("expected domain error, got %v", err)
	}
	if de.Kind != want {
		t.Fatalf("expected kind %q, got %q (err=%v)", want, de.Kind, err)
	}
}

func lastAudit(audits *[]auditEntry) (auditEntry, bool) {
	if audits == nil || len(*audits) == 0 {
		return auditEntry{}, false
	}
	return (*audits)[len(*audits)-1], true
}

var errBoom = errors.New("boom")
