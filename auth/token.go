// Package auth handles the session cookie and the identity provider's ID
// tokens stored in it.
package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("auth: invalid token")

// Claims of an ID token. Providers put the user id in user_id or sub.
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 ID token for userID.
func IssueToken(userID string, secret []byte, validity time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
	})

	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return tokenString, nil
}

// Verifier checks ID tokens. HS256 tokens are checked against a shared
// secret and RS256 tokens against the provider's public key; only the
// algorithms with a configured key are accepted.
type Verifier struct {
	secret    []byte
	publicKey *rsa.PublicKey
	methods   []string
}

// NewVerifier builds a Verifier from a shared secret, a PEM encoded RSA
// public key, or both.
func NewVerifier(secret []byte, publicKeyPEM string) (*Verifier, error) {
	v := &Verifier{}
	if len(secret) > 0 {
		v.secret = secret
		v.methods = append(v.methods, jwt.SigningMethodHS256.Alg())
	}
	if strings.TrimSpace(publicKeyPEM) != "" {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("auth: parse public key: %w", err)
		}
		v.publicKey = key
		v.methods = append(v.methods, jwt.SigningMethodRS256.Alg())
	}
	if len(v.methods) == 0 {
		return nil, errors.New("auth: no token verification key configured")
	}
	return v, nil
}

func (v *Verifier) key(t *jwt.Token) (any, error) {
	switch t.Method.(type) {
	case *jwt.SigningMethodHMAC:
		return v.secret, nil
	case *jwt.SigningMethodRSA:
		return v.publicKey, nil
	}
	return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
}

// Parse verifies tokenString and returns the user id it carries.
func (v *Verifier) Parse(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.key, jwt.WithValidMethods(v.methods))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return "", fmt.Errorf("%w: no user id", ErrInvalidToken)
	}
	return userID, nil
}

// ParseToken verifies an HS256 tokenString against secret.
func ParseToken(tokenString string, secret []byte) (string, error) {
	v := &Verifier{secret: secret, methods: []string{jwt.SigningMethodHS256.Alg()}}
	return v.Parse(tokenString)
}
