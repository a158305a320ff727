package http_handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/baechuer/contacts-api/internal/application/auth"
	"github.com/baechuer/contacts-api/internal/domain"
	"github.com/baechuer/contacts-api/internal/infrastructure/memory"
	"github.com/baechuer/contacts-api/internal/infrastructure/security"
	"github.com/baechuer/contacts-api/internal/transport/http/middleware"
)

const (
	testConfirmBase = "http://localhost/auth/confirm/"
	testResetBase   = "http://localhost/auth/reseted_password/"
)

// mustJSONBody marshals v to JSON and returns an io.Reader for request body.
func mustJSONBody(t *testing.T, v any) io.Reader {
	t.Helper()

	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json marshal: %v", err)
	}
	return bytes.NewReader(b)
}

// mustReadJSON decodes JSON from r into out, unwrapping {"data": ...} when
// present.
func mustReadJSON(t *testing.T, r io.Reader, out any) {
	t.Helper()

	raw, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	wrapped := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Data) > 0 {
		if err := json.Unmarshal(wrapped.Data, out); err != nil {
			t.Fatalf("decode wrapped.data failed; body=%s err=%v", string(raw), err)
		}
		return
	}

	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode json failed; body=%s", string(raw))
	}
}

type errorBody struct {
	Error struct {
		Kind    string            `json:"kind"`
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Meta    map[string]string `json:"meta"`
	} `json:"error"`
}

func mustReadError(t *testing.T, r io.Reader) errorBody {
	t.Helper()
	var eb errorBody
	if err := json.NewDecoder(r).Decode(&eb); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return eb
}

// withIdentityCtx injects an authenticated identity the way the
// Authenticate middleware does.
func withIdentityCtx(req *http.Request, id domain.Identity) *http.Request {
	return req.WithContext(middleware.WithIdentity(req.Context(), id))
}

// withURLParam injects chi URL param (e.g. /users/{id}) into request context.
func withURLParam(req *http.Request, key, val string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, val)

	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	return req.WithContext(ctx)
}

type sentLink struct {
	kind string
	to   string
	link string
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []sentLink
}

func (n *captureNotifier) ConfirmationEmail(ctx context.Context, to, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentLink{"confirm", to, link})
	return nil
}

func (n *captureNotifier) PasswordResetEmail(ctx context.Context, to, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentLink{"reset", to, link})
	return nil
}

// lastToken returns the token at the end of the most recent link of kind.
func (n *captureNotifier) lastToken(t *testing.T, kind string) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		s := n.sent[i]
		if s.kind != kind {
			continue
		}
		base := testConfirmBase
		if kind == "reset" {
			base = testResetBase
		}
		return strings.TrimPrefix(s.link, base)
	}
	t.Fatalf("no %s link sent", kind)
	return ""
}

type harness struct {
	h        *AuthHandler
	svc      *auth.Service
	store    *memory.IdentityStore
	notifier *captureNotifier
	hasher   *security.BcryptHasher
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	ring, err := security.NewKeyring(security.SigningKey{
		ID:     "k1",
		Secret: []byte(strings.Repeat("s", security.MinSecretLen)),
	})
	if err != nil {
		t.Fatalf("keyring: %v", err)
	}

	store := memory.NewIdentityStore()
	notifier := &captureNotifier{}
	// bcrypt.MinCost keeps the suite fast.
	hasher := security.NewBcryptHasher(4)

	svc := auth.NewService(
		store,
		hasher,
		security.NewJWTCodec(ring, "contacts-api-test", security.DefaultLeeway),
		memory.NewIdentityCache(64, time.Minute),
		memory.NewConsumedTokenStore(),
		notifier,
		auth.Config{
			AccessTTL:      15 * time.Minute,
			ConfirmTTL:     time.Hour,
			ResetTTL:       30 * time.Minute,
			CacheTTL:       time.Minute,
			ConfirmBaseURL: testConfirmBase,
			ResetBaseURL:   testResetBase,
		},
	)

	return &harness{
		h:        NewAuthHandler(svc, nil),
		svc:      svc,
		store:    store,
		notifier: notifier,
		hasher:   hasher,
	}
}

// seed inserts an identity directly into the store.
func (hs *harness) seed(t *testing.T, id, email, password, role string, verified bool) domain.Identity {
	t.Helper()
	hash, err := hs.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	now := time.Now().UTC()
	out, err := hs.store.Insert(context.Background(), domain.Identity{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		Verified:     verified,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("seed insert: %v", err)
	}
	return out
}
