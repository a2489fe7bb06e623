// Package cdpauth builds short-lived CDP-style bearer tokens for the
// exchange REST API. Each token is bound to one HTTP method and path,
// so it cannot be replayed against a different endpoint.
package cdpauth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is the fixed platform identifier placed in the iss claim.
const Issuer = "cdp"

// TokenTTL is the token lifetime. The exchange rejects anything longer.
const TokenTTL = 60 * time.Second

// ErrInvalidKeyMaterial is returned when supplied credentials cannot be
// parsed. The signer fails closed: it never attempts to sign with
// malformed input.
var ErrInvalidKeyMaterial = errors.New("invalid key material")

// Signer produces a signed bearer token scoped to one method+path.
// Path must include any query string verbatim; the query is part of the
// signed content.
type Signer interface {
	Sign(method, host, path string) (string, error)
	Alg() string
}

// options holds injectable sources for deterministic tests.
type options struct {
	now   func() time.Time
	nonce func() (string, error)
}

// Option configures a signer.
type Option func(*options)

// WithClock sets the wall clock used for nbf/exp claims.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithNonceSource sets the per-token nonce source.
func WithNonceSource(nonce func() (string, error)) Option {
	return func(o *options) {
		o.nonce = nonce
	}
}

func newOptions(opts []Option) options {
	o := options{
		now:   time.Now,
		nonce: randomNonce,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// randomNonce returns 16 random bytes as 32 hex characters.
func randomNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read nonce bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// signToken assembles claims and header shared by both algorithms and
// signs with the supplied key.
func signToken(method jwt.SigningMethod, key interface{}, keyID, httpMethod, host, path string, o options) (string, error) {
	nonce, err := o.nonce()
	if err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	now := o.now()
	uri := fmt.Sprintf("%s %s%s", strings.ToUpper(httpMethod), host, path)

	claims := jwt.MapClaims{
		"iss": Issuer,
		"sub": keyID,
		"nbf": now.Unix(),
		"exp": now.Add(TokenTTL).Unix(),
		"uri": uri,
	}

	token := jwt.NewWithClaims(method, claims)
	token.Header["kid"] = keyID
	token.Header["nonce"] = nonce

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
