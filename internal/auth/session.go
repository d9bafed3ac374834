// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CookieName is the cookie carrying the player's JWT.
const CookieName = "auth_token"

var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// TokenTTL is how long issued tokens stay valid (0 => never expire).
	TokenTTL time.Duration
)

// ErrNotInitialized is returned when tokens are used before Init.
var ErrNotInitialized = errors.New("auth keys not initialized")

// parseTTL reads "never", "0", "" or a Go duration.
func parseTTL(expire string) (time.Duration, error) {
	switch expire {
	case "", "0", "never":
		return 0, nil
	}
	d, err := time.ParseDuration(expire)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token expire time %q: %w", expire, err)
	}
	return d, nil
}

// Init generates a fresh ed25519 key pair at runtime and sets the token lifetime.
// Tokens issued by a previous process become invalid.
func Init(expire string) error {
	ttl, err := parseTTL(expire)
	if err != nil {
		return err
	}
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	publicKey, privateKey, TokenTTL = pub, priv, ttl
	return nil
}

// InitFromPath reads ed25519 private/public keys from file and sets the token lifetime.
func InitFromPath(privatePath, publicPath, expire string) error {
	ttl, err := parseTTL(expire)
	if err != nil {
		return err
	}
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return fmt.Errorf("ed25519 key files have the wrong size")
	}
	privateKey = ed25519.PrivateKey(privateKeyData)
	publicKey = ed25519.PublicKey(publicKeyData)
	TokenTTL = ttl
	return nil
}

// CreateJWT signs a token with sub = userID and, when TokenTTL > 0, an exp claim.
func CreateJWT(userID uuid.UUID) (string, error) {
	if privateKey == nil {
		return "", ErrNotInitialized
	}
	claims := jwt.RegisteredClaims{
		Subject:  userID.String(),
		IssuedAt: jwt.NewNumericDate(time.Now()),
	}
	if TokenTTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(TokenTTL))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// AuthenticateJWT verifies a token and returns the user id in its subject.
func AuthenticateJWT(tokenString string) (uuid.UUID, error) {
	if publicKey == nil {
		return uuid.Nil, ErrNotInitialized
	}
	var claims jwt.RegisteredClaims
	t, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return uuid.Nil, fmt.Errorf("invalid token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid sub in jwt: %w", err)
	}
	return userID, nil
}
