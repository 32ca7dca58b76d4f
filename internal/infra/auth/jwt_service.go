package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"authflow/config"
	"authflow/internal/domain/service"
	"authflow/internal/errors"
)

// jwtSessionTokenService signs session credentials as HS256 JWTs:
// sub is the session id, aud the account id.
type jwtSessionTokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTSessionTokenService is the constructor for jwtSessionTokenService.
func NewJWTSessionTokenService(cfg *config.Config) (service.SessionTokenService, error) {
	if cfg.SecretKey.Session == "" {
		return nil, errors.New("session secret must be provided")
	}

	return &jwtSessionTokenService{
		secret: []byte(cfg.SecretKey.Session),
		issuer: cfg.Session.Issuer,
		ttl:    cfg.Session.TTL,
		now:    time.Now,
	}, nil
}

// Mint creates a signed credential for the session.
func (s *jwtSessionTokenService) Mint(sessionID, accountID uuid.UUID, issuedAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:   s.issuer,
		Subject:  sessionID.String(),
		Audience: jwt.ClaimStrings{accountID.String()},
		IssuedAt: jwt.NewNumericDate(issuedAt),
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(issuedAt.Add(s.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign session token")
	}

	return signed, nil
}

// Parse verifies the signature, issuer and expiry, and decodes the session and account ids.
func (s *jwtSessionTokenService) Parse(tokenString string) (*service.SessionClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, errors.Wrap(service.ErrInvalidSessionToken, err.Error())
	}

	sessionID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, errors.Wrap(service.ErrInvalidSessionToken, "subject is not a session id")
	}
	if len(claims.Audience) != 1 {
		return nil, errors.Wrap(service.ErrInvalidSessionToken, "audience must name one account")
	}
	accountID, err := uuid.Parse(claims.Audience[0])
	if err != nil {
		return nil, errors.Wrap(service.ErrInvalidSessionToken, "audience is not an account id")
	}

	out := &service.SessionClaims{
		Issuer:    claims.Issuer,
		SessionID: sessionID,
		AccountID: accountID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time
		out.ExpiresAt = &exp
	}

	return out, nil
}

// TTL returns the configured credential lifetime.
func (s *jwtSessionTokenService) TTL() time.Duration {
	return s.ttl
}
