package github

import (
	"crypto/rsa"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// appJWTLifetime is deliberately under GitHub's 10 minute maximum.
const appJWTLifetime = 9 * time.Minute

// AppAuth signs short-lived app JWTs with the GitHub App's private key.
type AppAuth struct {
	appID      int64
	privateKey *rsa.PrivateKey
}

// NewAppAuth parses the PEM-encoded private key issued for the app.
func NewAppAuth(appID int64, privateKeyPEM []byte) (*AppAuth, error) {
	if appID == 0 {
		return nil, fmt.Errorf("app id is required")
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse app private key: %w", err)
	}

	return &AppAuth{appID: appID, privateKey: key}, nil
}

// AppJWT returns a freshly signed RS256 app JWT. The issued-at claim is
// backdated one minute to absorb clock drift between us and GitHub.
func (a *AppAuth) AppJWT() (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    strconv.FormatInt(a.appID, 10),
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(now.Add(appJWTLifetime)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(a.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign app jwt: %w", err)
	}
	return signed, nil
}
