package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/baechuer/contacts-api/internal/application/auth"
	"github.com/baechuer/contacts-api/internal/domain"
)

// DefaultLeeway absorbs clock drift between issuer and verifier.
const DefaultLeeway = 5 * time.Second

type CodecOption func(*JWTCodec)

// WithClock overrides the time source used for issuing and verifying.
func WithClock(now func() time.Time) CodecOption {
	return func(c *JWTCodec) { c.now = now }
}

type JWTCodec struct {
	keys   *Keyring
	issuer string
	leeway time.Duration
	now    func() time.Time
}

func NewJWTCodec(keys *Keyring, issuer string, leeway time.Duration, opts ...CodecOption) *JWTCodec {
	if leeway < 0 {
		leeway = DefaultLeeway
	}
	c := &JWTCodec{
		keys:   keys,
		issuer: issuer,
		leeway: leeway,
		now:    time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type tokenClaims struct {
	Purpose string `json:"pur"`
	Binding string `json:"pwv,omitempty"`
	jwt.RegisteredClaims
}

func (c *JWTCodec) Issue(req auth.TokenRequest) (string, error) {
	if req.Subject == "" {
		return "", domain.ErrTokenSignFailed(errors.New("empty subject"))
	}
	if !req.Purpose.Valid() {
		return "", domain.ErrTokenSignFailed(errors.New("unknown purpose"))
	}
	if req.TTL <= 0 {
		return "", domain.ErrTokenSignFailed(errors.New("ttl must be positive"))
	}

	now := c.now()
	claims := tokenClaims{
		Purpose: string(req.Purpose),
		Binding: req.Binding,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    c.issuer,
			Subject:   req.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(req.TTL)),
		},
	}

	kid, key, err := c.keys.openActive()
	if err != nil {
		return "", domain.ErrTokenSignFailed(err)
	}
	defer key.Destroy()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["kid"] = kid
	signed, err := tok.SignedString(key.Bytes())
	if err != nil {
		return "", domain.ErrTokenSignFailed(err)
	}
	return signed, nil
}

func (c *JWTCodec) Verify(token string, purpose domain.TokenPurpose) (auth.TokenClaims, error) {
	if token == "" {
		return auth.TokenClaims{}, domain.ErrTokenInvalid()
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(c.leeway),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	var opened []func()
	defer func() {
		for _, destroy := range opened {
			destroy()
		}
	}()

	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		// prevent alg confusion
		if t.Method != jwt.SigningMethodHS256 {
			return nil, domain.ErrTokenInvalid()
		}
		kid, _ := t.Header["kid"].(string)
		buf, err := c.keys.open(kid, c.now())
		if err != nil {
			return nil, err
		}
		opened = append(opened, buf.Destroy)
		return buf.Bytes(), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return auth.TokenClaims{}, domain.ErrTokenExpired()
		}
		return auth.TokenClaims{}, domain.ErrTokenInvalid()
	}

	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return auth.TokenClaims{}, domain.ErrTokenInvalid()
	}
	if claims.Subject == "" || claims.Purpose != string(purpose) {
		return auth.TokenClaims{}, domain.ErrTokenInvalid()
	}

	out := auth.TokenClaims{
		Subject: claims.Subject,
		Purpose: domain.TokenPurpose(claims.Purpose),
		Nonce:   claims.ID,
		Binding: claims.Binding,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// Inspect decodes a token's claims without verifying the signature. It is
// meant for operator tooling only.
func Inspect(token string) (map[string]any, map[string]any, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, nil, err
	}
	claims, _ := parsed.Claims.(jwt.MapClaims)
	return parsed.Header, claims, nil
}
