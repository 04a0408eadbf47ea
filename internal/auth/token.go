package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	claimRole = "role"
	claimTier = "tier"

	clockSkew = 30 * time.Second
)

// Claims identify the caller behind a bearer token.
type Claims struct {
	Subject   string
	Role      string
	Tier      string
	ExpiresAt time.Time
}

// TokenService signs and verifies HS256 bearer tokens.
type TokenService struct {
	key    []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewTokenService returns a TokenService for cfg.
func NewTokenService(cfg *Config) (*TokenService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &TokenService{
		key:    []byte(cfg.Secret),
		ttl:    cfg.TokenTTL,
		issuer: cfg.Issuer,
		now:    time.Now,
	}, nil
}

// TTL is the lifetime of issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for the given identity. Claims.ExpiresAt is ignored; the
// returned claims carry the actual expiry.
func (s *TokenService) Issue(c Claims) (string, Claims, error) {
	now := s.now().UTC().Truncate(time.Second)
	c.ExpiresAt = now.Add(s.ttl)

	tok, err := jwt.NewBuilder().
		JwtID(uuid.NewString()).
		Issuer(s.issuer).
		Subject(c.Subject).
		IssuedAt(now).
		NotBefore(now).
		Expiration(c.ExpiresAt).
		Claim(claimRole, c.Role).
		Claim(claimTier, c.Tier).
		Build()
	if err != nil {
		return "", Claims{}, fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.key))
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign token: %w", err)
	}

	return string(signed), c, nil
}

// Verify checks the signature, issuer and validity window of token and returns its
// claims. Every failure is reported as an AuthError of type ErrInvalidToken.
func (s *TokenService) Verify(token string) (Claims, error) {
	tok, err := jwt.Parse([]byte(token),
		jwt.WithKey(jwa.HS256, s.key),
		jwt.WithValidate(true),
		jwt.WithIssuer(s.issuer),
		jwt.WithAcceptableSkew(clockSkew),
		jwt.WithClock(jwt.ClockFunc(s.now)),
	)
	if err != nil {
		return Claims{}, &AuthError{Type: ErrInvalidToken, Message: err.Error()}
	}

	if tok.Subject() == "" {
		return Claims{}, &AuthError{Type: ErrInvalidToken, Message: "token has no subject"}
	}

	return Claims{
		Subject:   tok.Subject(),
		Role:      stringClaim(tok, claimRole),
		Tier:      stringClaim(tok, claimTier),
		ExpiresAt: tok.Expiration(),
	}, nil
}

func stringClaim(tok jwt.Token, name string) string {
	v, ok := tok.Get(name)
	if !ok {
		return ""
	}

	s, _ := v.(string)

	return s
}
