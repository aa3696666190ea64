package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "parapet/pkg/domain"
	dErrors "parapet/pkg/domain-errors"
)

// Claims is the payload of an actor access token. Attribution is the only
// thing the register needs tokens for, so the actor ID is the whole payload.
type Claims struct {
	ActorID string `json:"actor_id"`
	jwt.RegisteredClaims
}

// Service mints and verifies HS256-signed actor tokens.
type Service struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewService(signingKey string, issuer string, audience string) *Service {
	return &Service{signingKey: []byte(signingKey), issuer: issuer, audience: audience}
}

// Mint issues a token naming actorID, valid for expiresIn from now.
func (s *Service) Mint(actorID id.UserID, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		ActorID: actorID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

// signingKeyFor hands the parser our key for HMAC tokens only; any other
// algorithm is unverifiable.
func (s *Service) signingKeyFor(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, jwt.ErrTokenUnverifiable
	}
	return s.signingKey, nil
}

// Validate checks the signature and registered claims of a token and returns
// its payload.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, s.signingKeyFor)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
	case err != nil, !parsed.Valid:
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// ExtractActorID is the shape the attribution middleware consumes: token in,
// verified actor out.
func (s *Service) ExtractActorID(tokenString string) (id.UserID, error) {
	claims, err := s.Validate(tokenString)
	if err != nil {
		return id.UserID{}, err
	}

	actorID, err := id.ParseUserID(claims.ActorID)
	if err != nil {
		return id.UserID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return actorID, nil
}
