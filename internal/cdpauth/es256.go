package cdpauth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ES256Signer signs tokens with ECDSA over P-256 and SHA-256.
// Signatures use the fixed-length IEEE-P1363 encoding (r||s, 64 bytes),
// never ASN.1 DER; the exchange rejects DER with a 401.
type ES256Signer struct {
	keyID string
	key   *ecdsa.PrivateKey
	opts  options
}

// NewES256Signer parses a PEM-encoded EC private key (SEC1 or PKCS#8)
// and returns a signer for it. Returns ErrInvalidKeyMaterial if the key
// does not parse or is not a P-256 key.
func NewES256Signer(keyID string, pemKey []byte, opts ...Option) (*ES256Signer, error) {
	key, err := parseECPrivateKey(pemKey)
	if err != nil {
		return nil, err
	}

	return &ES256Signer{
		keyID: keyID,
		key:   key,
		opts:  newOptions(opts),
	}, nil
}

// Sign produces a token scoped to method+host+path.
func (s *ES256Signer) Sign(method, host, path string) (string, error) {
	return signToken(jwt.SigningMethodES256, s.key, s.keyID, method, host, path, s.opts)
}

// Alg returns the JWT algorithm name.
func (s *ES256Signer) Alg() string {
	return jwt.SigningMethodES256.Alg()
}

var _ Signer = (*ES256Signer)(nil)

// parseECPrivateKey parses SEC1 or PKCS#8 PEM into a P-256 private key.
func parseECPrivateKey(pemKey []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrInvalidKeyMaterial)
	}

	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		if key.Curve != elliptic.P256() {
			return nil, fmt.Errorf("%w: curve %s is not P-256", ErrInvalidKeyMaterial, key.Curve.Params().Name)
		}
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parse EC key: %v", ErrInvalidKeyMaterial, err)
	}

	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: PKCS#8 key is not ECDSA", ErrInvalidKeyMaterial)
	}
	if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%w: curve %s is not P-256", ErrInvalidKeyMaterial, key.Curve.Params().Name)
	}
	return key, nil
}
