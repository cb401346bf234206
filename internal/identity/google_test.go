package identity_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pcgarena/internal/identity"
)

const testIssuer = "https://accounts.example.com"
const testClientID = "test-client-id"
const testKeyID = "test-key-1"

func startFixtureJWKS(t *testing.T, pub *rsa.PublicKey) *httptest.Server {
	t.Helper()
	nEncoded := base64.RawURLEncoding.EncodeToString(pub.N.Bytes())
	eBytes := big.NewInt(int64(pub.E)).Bytes()
	eEncoded := base64.RawURLEncoding.EncodeToString(eBytes)

	doc := map[string]interface{}{
		"keys": []map[string]string{
			{"kty": "RSA", "kid": testKeyID, "n": nEncoded, "e": eEncoded},
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func signTestToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return signed
}

func TestGoogleVerifier_AcceptsWellFormedToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}
	jwks := startFixtureJWKS(t, &key.PublicKey)

	verifier := identity.NewGoogleVerifier(testClientID, testIssuer, jwks.URL, jwks.Client())

	claims := jwt.MapClaims{
		"iss":            testIssuer,
		"aud":            testClientID,
		"sub":            "user-123",
		"email":          "player@example.com",
		"email_verified": true,
		"name":           "Player One",
		"exp":            time.Now().Add(time.Hour).Unix(),
		"iat":            time.Now().Unix(),
	}
	rawToken := signTestToken(t, key, claims)

	id, err := verifier.Verify(context.Background(), rawToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.Subject != "user-123" {
		t.Errorf("subject = %q, want user-123", id.Subject)
	}
	if id.Email != "player@example.com" {
		t.Errorf("email = %q", id.Email)
	}
	if !id.EmailVerified {
		t.Error("expected email_verified = true")
	}
}

func TestGoogleVerifier_RejectsWrongAudience(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}
	jwks := startFixtureJWKS(t, &key.PublicKey)
	verifier := identity.NewGoogleVerifier(testClientID, testIssuer, jwks.URL, jwks.Client())

	claims := jwt.MapClaims{
		"iss": testIssuer,
		"aud": "someone-elses-client-id",
		"sub": "user-123",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	rawToken := signTestToken(t, key, claims)

	if _, err := verifier.Verify(context.Background(), rawToken); err == nil {
		t.Fatal("expected an error for wrong audience")
	}
}

func TestGoogleVerifier_RejectsExpiredToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}
	jwks := startFixtureJWKS(t, &key.PublicKey)
	verifier := identity.NewGoogleVerifier(testClientID, testIssuer, jwks.URL, jwks.Client())

	claims := jwt.MapClaims{
		"iss": testIssuer,
		"aud": testClientID,
		"sub": "user-123",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}
	rawToken := signTestToken(t, key, claims)

	_, err = verifier.Verify(context.Background(), rawToken)
	if err != identity.ErrTokenExpired {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestGoogleVerifier_RejectsWrongIssuer(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}
	jwks := startFixtureJWKS(t, &key.PublicKey)
	verifier := identity.NewGoogleVerifier(testClientID, testIssuer, jwks.URL, jwks.Client())

	claims := jwt.MapClaims{
		"iss": "https://not-the-right-issuer.example.com",
		"aud": testClientID,
		"sub": "user-123",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	rawToken := signTestToken(t, key, claims)

	if _, err := verifier.Verify(context.Background(), rawToken); err == nil {
		t.Fatal("expected an error for wrong issuer")
	}
}
