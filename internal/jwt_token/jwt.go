package jwttoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
	dErrors "github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain-errors"
	authmw "github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/middleware/auth"
)

// Claims are issued once a wallet has signed a session challenge. Subject is
// the wallet address; the token never outlives the session key.
type Claims struct {
	PackageID string `json:"package_id"`
	jwt.RegisteredClaims
}

// JWTService issues and validates caller tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	now        func() time.Time
}

func NewJWTService(signingKey string, issuer string, audience string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		now:        time.Now,
	}
}

// WithClock replaces the wall clock used for issuing and expiry checks.
func (s *JWTService) WithClock(now func() time.Time) *JWTService {
	s.now = now
	return s
}

// GenerateCallerToken returns a token for address that expires at expiresAt.
func (s *JWTService) GenerateCallerToken(address domain.Address, packageID domain.ObjectID, expiresAt time.Time) (string, error) {
	now := s.now()
	if !expiresAt.After(now) {
		return "", fmt.Errorf("token would already be expired at %s", expiresAt.Format(time.RFC3339))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		PackageID: packageID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   address.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// CallerValidator adapts JWTService to the auth middleware.
type CallerValidator struct {
	service *JWTService
}

func NewCallerValidator(service *JWTService) *CallerValidator {
	return &CallerValidator{service: service}
}

func (v *CallerValidator) ValidateToken(tokenString string) (*authmw.Caller, error) {
	claims, err := v.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	addr, err := domain.ParseAddress(claims.Subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token subject")
	}
	return &authmw.Caller{Address: addr, TokenID: claims.ID}, nil
}
