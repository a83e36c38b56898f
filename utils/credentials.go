package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

const tokenIssuer = "pullback"

// JwtCustomClaim is the body of an API access token.
type JwtCustomClaim struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.StandardClaims
}

// passwordCost reads BCRYPT_COST, falling back to bcrypt.DefaultCost when
// unset or out of range.
func passwordCost() int {
	cost, err := strconv.Atoi(os.Getenv("BCRYPT_COST"))
	if err != nil || cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return bcrypt.DefaultCost
	}
	return cost
}

func HashPassword(plain string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plain), passwordCost())
}

// ComparePassword returns ErrorUnauthorized on a mismatch.
func ComparePassword(hashed, plain string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrorUnauthorized
	}
	return err
}

func signingKey() []byte {
	if secret := os.Getenv("API_SECRET"); secret != "" {
		return []byte(secret)
	}
	return []byte("pullback-dev-secret")
}

// TokenLifespan reads TOKEN_HOUR_LIFESPAN in hours; 12 by default.
func TokenLifespan() time.Duration {
	hours, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil || hours <= 0 {
		hours = 12
	}
	return time.Duration(hours) * time.Hour
}

func JwtGenerate(userID int, username string, role string) (string, error) {
	issued := time.Now()
	claims := &JwtCustomClaim{ID: userID, Username: username, Role: role}
	claims.Issuer = tokenIssuer
	claims.IssuedAt = issued.Unix()
	claims.ExpiresAt = issued.Add(TokenLifespan()).Unix()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey())
}

// ParseAccessToken verifies an HS256 token minted by JwtGenerate. Any
// failure is reported as ErrorUnauthorized.
func ParseAccessToken(raw string) (*JwtCustomClaim, error) {
	claims := &JwtCustomClaim{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return signingKey(), nil
	})
	if err != nil || !token.Valid || claims.Username == "" || claims.Issuer != tokenIssuer {
		return nil, ErrorUnauthorized
	}
	return claims, nil
}
