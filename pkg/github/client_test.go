package github

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authright-test/iga-test-sub000/pkg/observability"
)

func testAppAuth(t *testing.T) (*AppAuth, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	auth, err := NewAppAuth(12345, pemBytes)
	require.NoError(t, err)
	return auth, key
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	auth, _ := testAppAuth(t)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	return NewClient(auth, logger, nil, WithBaseURL(server.URL))
}

func TestNewAppAuth_RejectsBadKey(t *testing.T) {
	_, err := NewAppAuth(12345, []byte("not a pem key"))
	assert.Error(t, err)

	_, err = NewAppAuth(0, nil)
	assert.Error(t, err)
}

func TestAppJWT_SignedWithRS256(t *testing.T) {
	auth, key := testAppAuth(t)

	signed, err := auth.AppJWT()
	require.NoError(t, err)

	parsed, err := jwt.ParseWithClaims(signed, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		require.Equal(t, jwt.SigningMethodRS256, token.Method)
		return &key.PublicKey, nil
	})
	require.NoError(t, err)

	claims := parsed.Claims.(*jwt.RegisteredClaims)
	assert.Equal(t, "12345", claims.Issuer)
	require.NotNil(t, claims.ExpiresAt)
	require.NotNil(t, claims.IssuedAt)
	assert.True(t, claims.ExpiresAt.After(claims.IssuedAt.Time))
}

func TestCreateInstallationToken(t *testing.T) {
	var gotPath, gotAuth string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"token": "ghs_abc123"})
	}))

	token, err := client.CreateInstallationToken(context.Background(), 77)
	require.NoError(t, err)
	assert.Equal(t, "ghs_abc123", token)
	assert.Equal(t, "/app/installations/77/access_tokens", gotPath)
	assert.True(t, strings.HasPrefix(gotAuth, "Bearer "), "token exchange authenticates with the app jwt")
}

func TestCreateInstallationToken_ErrorStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.CreateInstallationToken(context.Background(), 77)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestSetRepositoryVisibility(t *testing.T) {
	var gotMethod, gotPath, gotAuth string
	var gotBody map[string]bool
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))

	err := client.SetRepositoryVisibility(context.Background(), "ghs_abc123", "org", "r", true)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/repos/org/r", gotPath)
	assert.Equal(t, "Bearer ghs_abc123", gotAuth)
	assert.Equal(t, map[string]bool{"private": true}, gotBody)
}

func TestRemoveCollaborator(t *testing.T) {
	var gotMethod, gotPath string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))

	err := client.RemoveCollaborator(context.Background(), "ghs_abc123", "org", "r", "mallory")
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/repos/org/r/collaborators/mallory", gotPath)
}
