package httpapi

import (
	"crypto/rsa"
	"fmt"
	"net/http"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// LoadPublicKey parses an RS256 public key from a PEM file, the companion
// web origin's signing key (spec.md §4.7: "a JWT signed by a known RS256
// public key").
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("httpapi: reading JWT public key %s: %w", path, err)
	}

	key, err := jwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("httpapi: parsing JWT public key %s: %w", path, err)
	}

	return key, nil
}

// verifyAndDecode runs the full route precondition chain spec.md §4.7
// specifies: referer check, "data" param presence, JWT signature/expiry
// verification. On any failure it writes 403 and returns ok=false; the
// caller must not proceed.
func (s *Server) verifyAndDecode(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	if !s.verifyReferer(r) {
		http.Error(w, "forbidden: referer mismatch", http.StatusForbidden)

		return nil, false
	}

	raw := dataParam(r)
	if raw == "" {
		http.Error(w, "forbidden: missing data parameter", http.StatusForbidden)

		return nil, false
	}

	claims, err := s.decodeJWT(raw)
	if err != nil {
		s.Logger.Warn("httpapi: JWT rejected", "error", err)
		http.Error(w, "forbidden: invalid token", http.StatusForbidden)

		return nil, false
	}

	return claims, true
}

// decodeJWT verifies raw's RS256 signature against s.PublicKey and expiry,
// then returns its claims as a plain map for the dispatcher's payload
// decoding helpers. Any other signing method is rejected (spec.md §4.7: "on
// any signature, expiry, decode, or referer mismatch → 403").
func (s *Server) decodeJWT(raw string) (map[string]any, error) {
	claims := jwt.MapClaims{}

	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("httpapi: unexpected signing method %v", t.Header["alg"])
		}

		return s.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		return nil, fmt.Errorf("httpapi: parsing JWT: %w", err)
	}

	return map[string]any(claims), nil
}
