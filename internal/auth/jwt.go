package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// fileAudience marks tokens that grant a single file download.
const fileAudience = "file"

var ErrWrongTokenKind = errors.New("token is not valid for this use")

type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func GenerateToken(secret, userID, email, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateToken(secret, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	if err := parse(secret, tokenStr, claims); err != nil {
		return nil, err
	}
	if len(claims.Audience) > 0 {
		return nil, ErrWrongTokenKind
	}
	return claims, nil
}

// GenerateFileToken signs a short-lived download grant for one document.
func GenerateFileToken(secret, documentID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   documentID,
		Audience:  jwt.ClaimStrings{fileAudience},
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ValidateFileToken returns the document id a download grant names.
func ValidateFileToken(secret, tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	if err := parse(secret, tokenStr, claims, jwt.WithAudience(fileAudience)); err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func parse(secret, tokenStr string, claims jwt.Claims, opts ...jwt.ParserOption) error {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return err
	}
	if !token.Valid {
		return jwt.ErrSignatureInvalid
	}
	return nil
}
