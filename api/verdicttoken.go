package api

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VerdictTokenTTL bounds how long a shared verdict link stays valid.
const VerdictTokenTTL = 30 * 24 * time.Hour

// SignVerdictToken issues the token embedded in shareable verdict links.
// The token is the only credential the unauthenticated verdict route
// accepts, so it is scoped to a single room and expires.
func SignVerdictToken(secret string, roomID primitive.ObjectID) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("JWT secret is not configured")
	}
	claims := jwt.RegisteredClaims{
		Subject:   roomID.Hex(),
		Issuer:    "debate-api",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(VerdictTokenTTL)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseVerdictToken validates a verdict link token and returns the room
// it grants access to.
func ParseVerdictToken(secret, token string) (primitive.ObjectID, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return primitive.NilObjectID, err
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return primitive.NilObjectID, fmt.Errorf("token has no subject")
	}
	return primitive.ObjectIDFromHex(claims.Subject)
}
