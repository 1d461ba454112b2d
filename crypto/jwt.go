package crypto

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Shrey-Parekh/game-arena/domain"
)

// identityClaims is the claim set the external identity service signs.
// Fields must be exported for JSON serialization.
type identityClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenVerifier checks tokens minted by the identity service. The service
// and this backend share an HS256 key; issuance lives entirely on their side.
type TokenVerifier struct {
	secretKey []byte
}

func NewTokenVerifier(secretKey string) *TokenVerifier {
	return &TokenVerifier{secretKey: []byte(secretKey)}
}

// Verify returns the user behind a token, or an error describing why the
// token is unacceptable.
func (v *TokenVerifier) Verify(tokenString string) (domain.User, error) {
	token, err := jwt.ParseWithClaims(tokenString, &identityClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidSigningAlg
		}
		return v.secretKey, nil
	})

	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidSigningAlg):
			return domain.User{}, domain.ErrInvalidSigningAlg
		case errors.Is(err, jwt.ErrTokenExpired):
			return domain.User{}, domain.ErrExpiredToken
		case errors.Is(err, jwt.ErrSignatureInvalid):
			return domain.User{}, domain.ErrInvalidTokenSignature
		case errors.Is(err, jwt.ErrTokenMalformed):
			return domain.User{}, domain.ErrCorruptedToken
		default:
			return domain.User{}, fmt.Errorf("%w: %w", domain.UnexpectedTokenVerificationError, err)
		}
	}

	claims, ok := token.Claims.(*identityClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return domain.User{}, domain.ErrCorruptedToken
	}

	return domain.User{
		ID:       claims.Subject,
		Email:    claims.Email,
		Username: usernameFromEmail(claims.Email),
	}, nil
}

// usernameFromEmail derives the display handle from the email local-part,
// matching what the identity service shows elsewhere.
func usernameFromEmail(email string) string {
	for i := 0; i < len(email); i++ {
		if email[i] == '@' {
			return email[:i]
		}
	}
	return email
}
