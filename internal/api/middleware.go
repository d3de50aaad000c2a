/**
 * @description
 * Authentication middleware for the subscription-service. Fans authenticate with a wallet
 * session JWT whose 'sub' claim is their Stellar address. Service-to-service calls use a
 * shared internal API key.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5: JWT parsing and RSA signature validation.
 */
package api

import (
	"context"
	"crypto/rsa"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const fanAddressContextKey = contextKey("fanAddress")

const jwksCacheTTL = 10 * time.Minute

// WalletAuthMiddleware validates the bearer token with keyFunc and injects the fan's address
// (the 'sub' claim) into the request context. A non-empty audience must match the 'aud' claim.
func WalletAuthMiddleware(keyFunc jwt.Keyfunc, audience string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				writeError(w, http.StatusUnauthorized, "Invalid Authorization header format")
				return
			}

			token, err := jwt.Parse(tokenString, keyFunc, jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}))
			if err != nil || !token.Valid {
				writeError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				writeError(w, http.StatusUnauthorized, "Invalid token claims")
				return
			}

			if audience != "" {
				if aud, ok := claims["aud"].(string); !ok || aud != audience {
					writeError(w, http.StatusUnauthorized, "Invalid audience")
					return
				}
			}

			address, _ := claims["sub"].(string)
			address = strings.TrimSpace(address)
			if address == "" {
				writeError(w, http.StatusUnauthorized, "Wallet address not found in token")
				return
			}

			ctx := context.WithValue(r.Context(), fanAddressContextKey, address)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// InternalAuthMiddleware checks the shared key on server-to-server calls. An empty key
// disables the check.
func InternalAuthMiddleware(requiredKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requiredKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get("X-Internal-API-Key")
			if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(requiredKey)) != 1 {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// FanFromContext returns the authenticated fan address.
func FanFromContext(ctx context.Context) (string, bool) {
	address, ok := ctx.Value(fanAddressContextKey).(string)
	return address, ok && address != ""
}

// JWKSKeySource resolves RSA verification keys by kid, caching the key set between fetches.
type JWKSKeySource struct {
	url    string
	client *http.Client
	ttl    time.Duration

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

func NewJWKSKeySource(jwksURL string) *JWKSKeySource {
	return &JWKSKeySource{
		url:    jwksURL,
		client: &http.Client{Timeout: 10 * time.Second},
		ttl:    jwksCacheTTL,
		keys:   make(map[string]*rsa.PublicKey),
	}
}

// Keyfunc implements jwt.Keyfunc. An unknown kid forces one refetch to pick up rotated keys.
func (s *JWKSKeySource) Keyfunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	kid, ok := token.Header["kid"].(string)
	if !ok {
		return nil, errors.New("kid not found in token header")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if key, ok := s.keys[kid]; ok && time.Since(s.fetchedAt) < s.ttl {
		return key, nil
	}
	if err := s.refreshLocked(); err != nil {
		return nil, fmt.Errorf("failed to fetch jwks: %w", err)
	}
	if key, ok := s.keys[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("key with kid %s not found", kid)
}

func (s *JWKSKeySource) refreshLocked() error {
	resp, err := s.client.Get(s.url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks endpoint returned %d", resp.StatusCode)
	}

	var jwks struct {
		Keys []struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return err
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Kty != "" && k.Kty != "RSA" {
			continue
		}
		pub, err := parseRSAPublicKey(k.N, k.E)
		if err != nil {
			return fmt.Errorf("kid %s: %w", k.Kid, err)
		}
		keys[k.Kid] = pub
	}

	s.keys = keys
	s.fetchedAt = time.Now()
	return nil
}

// parseRSAPublicKey parses an RSA public key from base64url modulus and exponent.
func parseRSAPublicKey(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}

	var exp uint64
	for _, b := range eb {
		exp = (exp << 8) | uint64(b)
	}
	if exp == 0 {
		return nil, errors.New("invalid exponent")
	}

	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: int(exp)}, nil
}
