package auth

import (
	"fmt"
	"time"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

type Claims struct {
	jwt.RegisteredClaims
	UserID     string      `json:"user_id"`
	Email      string      `json:"email"`
	Role       entity.Role `json:"role"`
	IsVerified bool        `json:"is_verified"`
}

// Tokens issues and verifies HS256 access tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *Tokens) BuildJWT(id entity.Identity) (string, error) {
	now := t.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:     id.UserID,
		Email:      id.Email,
		Role:       id.Role,
		IsVerified: id.IsVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	})

	tokenString, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

func (t *Tokens) ValidateJWT(tokenString string) (entity.Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(tok *jwt.Token) (interface{}, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return t.secret, nil
		})
	if err != nil {
		return entity.Identity{}, fmt.Errorf("token error: %w", err)
	}
	if !token.Valid || claims.UserID == "" {
		return entity.Identity{}, fmt.Errorf("token is not valid")
	}

	return entity.Identity{
		UserID:     claims.UserID,
		Email:      claims.Email,
		Role:       claims.Role,
		IsVerified: claims.IsVerified,
	}, nil
}
