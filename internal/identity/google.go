// Package identity verifies external identity provider ID tokens for the
// auth service's external-login flow. Google is the only provider stage 0-3
// needs; the verifier is built around a generic OIDC issuer so a second
// provider is a second Verifier value, not a new package.
package identity

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Errors surfaced to the auth service; handlers classify these into the
// INVALID_TOKEN error code.
var (
	ErrInvalidToken   = errors.New("identity: invalid id token")
	ErrTokenExpired   = errors.New("identity: id token expired")
	ErrWrongIssuer    = errors.New("identity: unexpected issuer")
	ErrWrongAudience  = errors.New("identity: client id not in audience")
	ErrMissingSubject = errors.New("identity: missing subject claim")
)

// Identity is the minimal profile extracted from a verified ID token.
type Identity struct {
	Issuer        string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// Verifier validates a signed external ID token and extracts an Identity.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Identity, error)
}

// GoogleVerifier verifies Google-issued OIDC ID tokens (RS256) against
// Google's published JWKS.
type GoogleVerifier struct {
	issuer   string
	clientID string
	jwks     *jwksCache
}

// NewGoogleVerifier builds a Verifier for Google Sign-In ID tokens. jwksURI
// and issuer are configurable so tests can point both at a local fixture
// server instead of Google's real endpoints.
func NewGoogleVerifier(clientID, issuer, jwksURI string, httpClient *http.Client) *GoogleVerifier {
	return &GoogleVerifier{
		issuer:   issuer,
		clientID: clientID,
		jwks:     newJWKSCache(jwksURI, httpClient, 15*time.Minute),
	}
}

// Verify parses and validates rawToken's signature, issuer, audience, and
// expiry, returning the embedded profile.
func (v *GoogleVerifier) Verify(ctx context.Context, rawToken string) (*Identity, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, errors.New("token missing kid header")
		}
		return v.jwks.getKey(ctx, kid)
	}, jwt.WithLeeway(time.Minute))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err.Error())
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	issuer, _ := claims.GetIssuer()
	if issuer != v.issuer {
		return nil, fmt.Errorf("%w: got %s", ErrWrongIssuer, issuer)
	}

	audience, _ := claims.GetAudience()
	if !containsAudience(audience, v.clientID) {
		return nil, fmt.Errorf("%w: got %v", ErrWrongAudience, audience)
	}

	subject, _ := claims.GetSubject()
	if subject == "" {
		return nil, ErrMissingSubject
	}

	email, _ := claims["email"].(string)
	emailVerified, _ := claims["email_verified"].(bool)
	name, _ := claims["name"].(string)

	return &Identity{
		Issuer:        issuer,
		Subject:       subject,
		Email:         email,
		EmailVerified: emailVerified,
		Name:          name,
	}, nil
}

func containsAudience(audience []string, clientID string) bool {
	for _, a := range audience {
		if a == clientID {
			return true
		}
	}
	return false
}

// jwksCache caches a provider's RSA public keys by key id, refreshing on a
// TTL and serving a stale cache on refresh failure rather than hard-failing
// every verification while the provider's JWKS endpoint is unreachable.
type jwksCache struct {
	uri        string
	httpClient *http.Client
	ttl        time.Duration

	mu      sync.RWMutex
	keys    map[string]*rsa.PublicKey
	fetched time.Time
}

func newJWKSCache(uri string, client *http.Client, ttl time.Duration) *jwksCache {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &jwksCache{uri: uri, httpClient: client, ttl: ttl, keys: make(map[string]*rsa.PublicKey)}
}

func (c *jwksCache) getKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	key, ok := c.keys[kid]
	expired := time.Since(c.fetched) > c.ttl
	c.mu.RUnlock()

	if ok && !expired {
		return key, nil
	}

	keys, err := c.refresh(ctx)
	if err != nil {
		if ok {
			return key, nil
		}
		return nil, err
	}

	key, ok = keys[kid]
	if !ok {
		return nil, fmt.Errorf("identity: key %s not found in jwks", kid)
	}
	return key, nil
}

type jwksDocument struct {
	Keys []struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

func (c *jwksCache) refresh(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.fetched) < c.ttl && len(c.keys) > 0 {
		return c.keys, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.uri, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity: jwks fetch returned status %d", resp.StatusCode)
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("identity: decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pubKey, err := rsaPublicKeyFromJWK(k.N, k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = pubKey
	}

	c.keys = keys
	c.fetched = time.Now()
	return keys, nil
}

func rsaPublicKeyFromJWK(nEncoded, eEncoded string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nEncoded)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eEncoded)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)
	e := new(big.Int).SetBytes(eBytes)

	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}
