package cdpauth

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/golang-jwt/jwt/v5"
)

// EdDSASigner signs tokens with Ed25519. The raw unsigned-token bytes
// are signed directly, no digest pre-hash.
type EdDSASigner struct {
	keyID string
	key   ed25519.PrivateKey
	opts  options
}

// NewEdDSASigner parses base64-encoded Ed25519 key material: either a
// 32-byte seed or a 64-byte private||public concatenation. For the
// 64-byte form the embedded public half must be a valid curve point and
// must match the key derived from the seed. Returns
// ErrInvalidKeyMaterial otherwise.
func NewEdDSASigner(keyID, keyB64 string, opts ...Option) (*EdDSASigner, error) {
	raw, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		return nil, fmt.Errorf("%w: decode base64: %v", ErrInvalidKeyMaterial, err)
	}

	var key ed25519.PrivateKey
	switch len(raw) {
	case ed25519.SeedSize:
		key = ed25519.NewKeyFromSeed(raw)
	case ed25519.PrivateKeySize:
		if !isOnCurve(raw[ed25519.SeedSize:]) {
			return nil, fmt.Errorf("%w: public key is not a valid curve point", ErrInvalidKeyMaterial)
		}
		derived := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
		if !bytes.Equal(derived[ed25519.SeedSize:], raw[ed25519.SeedSize:]) {
			return nil, fmt.Errorf("%w: public key does not match seed", ErrInvalidKeyMaterial)
		}
		key = ed25519.PrivateKey(raw)
	default:
		return nil, fmt.Errorf("%w: ed25519 key must be %d or %d bytes, got %d",
			ErrInvalidKeyMaterial, ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}

	return &EdDSASigner{
		keyID: keyID,
		key:   key,
		opts:  newOptions(opts),
	}, nil
}

// Sign produces a token scoped to method+host+path.
func (s *EdDSASigner) Sign(method, host, path string) (string, error) {
	return signToken(jwt.SigningMethodEdDSA, s.key, s.keyID, method, host, path, s.opts)
}

// Alg returns the JWT algorithm name.
func (s *EdDSASigner) Alg() string {
	return jwt.SigningMethodEdDSA.Alg()
}

var _ Signer = (*EdDSASigner)(nil)

// isOnCurve reports whether point decodes as an ed25519 curve point.
func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
