// Package authtoken implements the access-control contract described in
// spec.md §6: every API request carries a token via Authorization: Bearer,
// X-API-Token, or ?token= (for WS/SSE, which can't set headers), checked
// against a single operator-configured token. Localhost callers bypass the
// check. This package is transport-agnostic — it exposes a predicate a
// future HTTP layer calls per-request, not a middleware itself.
//
// It also issues short-lived signed tokens for out-of-band approval links
// (an email or Slack notification of a pending approval), grounded on
// internal/github/jwt.go's JWT-issuance pattern.
package authtoken

import (
	"crypto/subtle"
	"fmt"
	"net"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/vibe-kanban/attemptcore/internal/apperror"
)

// Validate checks the three places a request token can arrive against the
// configured token. configured == "" means token mode is disabled and every
// request passes. remoteHost is the request's remote IP (without port); a
// loopback address bypasses the check even when a token is configured.
//
// Exactly one of headerAuth ("Bearer <t>"), headerToken, or queryToken needs
// to match; an empty configured token should never be treated as a match
// even if every supplied value is also empty.
func Validate(headerAuth, headerToken, queryToken, configured, remoteHost string) error {
	if configured == "" {
		return nil
	}
	if isLoopback(remoteHost) {
		return nil
	}

	candidates := []string{headerToken, queryToken}
	if bearer, ok := parseBearer(headerAuth); ok {
		candidates = append(candidates, bearer)
	}

	for _, c := range candidates {
		if c == "" {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(c), []byte(configured)) == 1 {
			return nil
		}
	}
	return apperror.New(apperror.Unauthorized, "missing or invalid access token")
}

func parseBearer(headerAuth string) (string, bool) {
	const prefix = "Bearer "
	if len(headerAuth) <= len(prefix) || headerAuth[:len(prefix)] != prefix {
		return "", false
	}
	return headerAuth[len(prefix):], true
}

func isLoopback(host string) bool {
	if host == "" {
		return false
	}
	ip := net.ParseIP(host)
	if ip == nil {
		// net/http's RemoteAddr is host:port; callers that pass the raw
		// RemoteAddr value should split it first, but tolerate bare
		// "localhost" too since some callers (tests, CLI-local dialers)
		// pass it directly.
		return host == "localhost"
	}
	return ip.IsLoopback()
}

// Redact replaces a configured token with a fixed placeholder, so it never
// appears verbatim in system-info responses or logs.
func Redact(token string) string {
	if token == "" {
		return ""
	}
	return "[REDACTED]"
}

// approvalClaims carries the attempt and approval identifiers an
// out-of-band approval link resolves to.
type approvalClaims struct {
	jwt.RegisteredClaims
	AttemptID  string `json:"attempt_id"`
	ApprovalID string `json:"approval_id"`
}

// IssueApprovalToken signs a short-lived token identifying a pending
// approval, for embedding in an email or Slack notification link. The
// signing key is the same HMAC secret the operator configures for API
// token mode (config.AuthTokenConfig.SigningKeySecret) — a plain shared
// secret rather than an RSA keypair, since there's no GitHub App identity
// to assert here.
func IssueApprovalToken(signingKey []byte, attemptID, approvalID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := approvalClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		AttemptID:  attemptID,
		ApprovalID: approvalID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", fmt.Errorf("sign approval token: %w", err)
	}
	return signed, nil
}

// ParseApprovalToken verifies an approval token and returns the attempt and
// approval IDs it was issued for.
func ParseApprovalToken(signingKey []byte, tokenString string) (attemptID, approvalID string, err error) {
	claims := &approvalClaims{}
	_, err = jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return signingKey, nil
	})
	if err != nil {
		return "", "", apperror.Wrap(apperror.Unauthorized, err, "invalid approval token")
	}
	return claims.AttemptID, claims.ApprovalID, nil
}
