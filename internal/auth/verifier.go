// Package auth verifies bearer tokens and enforces scopes on the HTTP API.
//
// Roles: viewer reads session and mission state and subscribes to telemetry;
// controller may also start and cancel missions.
package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Supported signing algorithms.
const (
	AlgorithmNone  = "none"
	AlgorithmHS256 = "HS256"
	AlgorithmRS256 = "RS256"
)

// VerifierConfig holds configuration for token verification.
type VerifierConfig struct {
	// Algorithm is "HS256" or "RS256".
	Algorithm string

	// SecretKey for HS256.
	SecretKey string

	// PublicKeyPEM for RS256, PKIX encoded.
	PublicKeyPEM string
}

// Verifier checks token signatures and extracts claims.
type Verifier struct {
	config    VerifierConfig
	publicKey *rsa.PublicKey
}

// NewVerifier creates a verifier for config.
func NewVerifier(config VerifierConfig) (*Verifier, error) {
	v := &Verifier{config: config}

	switch config.Algorithm {
	case AlgorithmRS256:
		if err := v.loadPublicKeyFromPEM(config.PublicKeyPEM); err != nil {
			return nil, fmt.Errorf("failed to load public key from PEM: %w", err)
		}
	case AlgorithmHS256:
		if config.SecretKey == "" {
			return nil, fmt.Errorf("HS256 requires secret key")
		}
	default:
		return nil, fmt.Errorf("unsupported algorithm: %s", config.Algorithm)
	}

	return v, nil
}

// VerifyToken verifies tokenString and returns its claims.
func (v *Verifier) VerifyToken(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("token cannot be empty")
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keyFunc,
		jwt.WithValidMethods([]string{v.config.Algorithm}))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return extractClaims(claims)
}

func (v *Verifier) keyFunc(token *jwt.Token) (interface{}, error) {
	switch v.config.Algorithm {
	case AlgorithmRS256:
		return v.publicKey, nil
	case AlgorithmHS256:
		return []byte(v.config.SecretKey), nil
	default:
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
}

// extractClaims reads sub, roles and scopes, rejecting unknown values.
func extractClaims(claims jwt.MapClaims) (*Claims, error) {
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("missing or invalid 'sub' claim")
	}

	roles, err := stringSlice(claims, "roles")
	if err != nil {
		return nil, fmt.Errorf("missing or invalid 'roles' claim: %w", err)
	}
	scopes, err := stringSlice(claims, "scopes")
	if err != nil {
		return nil, fmt.Errorf("missing or invalid 'scopes' claim: %w", err)
	}

	if !allValid(roles, validRoles) {
		return nil, fmt.Errorf("invalid roles: %v", roles)
	}
	if !allValid(scopes, validScopes) {
		return nil, fmt.Errorf("invalid scopes: %v", scopes)
	}

	return &Claims{Subject: sub, Roles: roles, Scopes: scopes}, nil
}

func stringSlice(claims jwt.MapClaims, key string) ([]string, error) {
	value, ok := claims[key]
	if !ok {
		return nil, fmt.Errorf("missing claim: %s", key)
	}

	items, ok := value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid %s claim: not a string array", key)
	}
	result := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("invalid %s claim: not a string", key)
		}
		result[i] = s
	}
	return result, nil
}

var (
	validRoles  = map[string]bool{RoleViewer: true, RoleController: true}
	validScopes = map[string]bool{ScopeRead: true, ScopeControl: true, ScopeTelemetry: true}
)

func allValid(values []string, valid map[string]bool) bool {
	for _, v := range values {
		if !valid[v] {
			return false
		}
	}
	return len(values) > 0
}

func (v *Verifier) loadPublicKeyFromPEM(pemData string) error {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return fmt.Errorf("failed to decode PEM block")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return fmt.Errorf("failed to parse public key: %w", err)
	}

	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("not an RSA public key")
	}
	v.publicKey = rsaPub
	return nil
}
