// AngelaMos | 2026
// jwt.go

package auth

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/nexusforge/user-service/internal/config"
	"github.com/nexusforge/user-service/internal/core"
)

var signingAlgorithms = map[string]func() jwa.SignatureAlgorithm{
	"HS256": jwa.HS256,
	"HS384": jwa.HS384,
	"HS512": jwa.HS512,
}

// Claims are the identity claims carried by an access token.
type Claims struct {
	UserID    int64
	Username  string
	Email     string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenService signs and verifies HMAC access tokens. Key and algorithm are
// fixed at construction.
type TokenService struct {
	key        jwk.Key
	alg        jwa.SignatureAlgorithm
	issuer     string
	defaultTTL time.Duration
	now        func() time.Time
}

func NewTokenService(cfg config.JWTConfig) (*TokenService, error) {
	algFn, ok := signingAlgorithms[cfg.Algorithm]
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}

	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("empty signing key")
	}

	key, err := jwk.Import([]byte(cfg.SecretKey))
	if err != nil {
		return nil, fmt.Errorf("import signing key: %w", err)
	}

	return &TokenService{
		key:        key,
		alg:        algFn(),
		issuer:     cfg.Issuer,
		defaultTTL: cfg.AccessTokenTTL(),
		now:        time.Now,
	}, nil
}

func (s *TokenService) DefaultTTL() time.Duration {
	return s.defaultTTL
}

// Issue signs a token for subjectID carrying the username and email from
// claims. A non-positive ttl uses the configured access token lifetime.
func (s *TokenService) Issue(
	subjectID int64,
	claims Claims,
	ttl time.Duration,
) (string, error) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	now := s.now()

	builder := jwt.NewBuilder().
		JwtID(uuid.New().String()).
		Subject(strconv.FormatInt(subjectID, 10)).
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		Claim("username", claims.Username).
		Claim("email", claims.Email)

	if s.issuer != "" {
		builder = builder.Issuer(s.issuer)
	}

	token, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(s.alg, s.key))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return string(signed), nil
}

// Verify checks signature and expiry. The returned error is always
// core.ErrTokenExpired or core.ErrTokenInvalid.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, core.ErrTokenInvalid
	}

	opts := []jwt.ParseOption{
		jwt.WithKey(s.alg, s.key),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(s.now)),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.Parse([]byte(tokenString), opts...)
	if err != nil {
		if isTokenExpiredError(err) {
			return nil, core.ErrTokenExpired
		}
		return nil, core.ErrTokenInvalid
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, core.ErrTokenInvalid
	}

	userID, err := strconv.ParseInt(subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, core.ErrTokenInvalid
	}

	claims := &Claims{UserID: userID}

	//nolint:errcheck // optional identity claims
	_ = token.Get("username", &claims.Username)
	//nolint:errcheck // optional identity claims
	_ = token.Get("email", &claims.Email)

	if jti, ok := token.JwtID(); ok {
		claims.TokenID = jti
	}
	if iat, ok := token.IssuedAt(); ok {
		claims.IssuedAt = iat
	}
	if exp, ok := token.Expiration(); ok {
		claims.ExpiresAt = exp
	}

	return claims, nil
}

func isTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "exp") &&
		strings.Contains(errStr, "not satisfied")
}
