// internal/certificate/signature/keys.go
package signature

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "certificate-workers/internal/common/errors"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

const minRSABits = 2048

// ParsePublicKey accepts base64 DER SubjectPublicKeyInfo or a JWK JSON object.
func ParsePublicKey(encoded string) (*rsa.PublicKey, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, fmt.Errorf("%w: empty public key", apperrors.ErrKeyError)
	}

	if strings.HasPrefix(encoded, "{") {
		raw, err := exportJWK(encoded)
		if err != nil {
			return nil, err
		}
		switch k := raw.(type) {
		case *rsa.PublicKey:
			return k, nil
		case *rsa.PrivateKey:
			return &k.PublicKey, nil
		default:
			return nil, fmt.Errorf("%w: JWK is %T, want RSA", apperrors.ErrKeyError, raw)
		}
	}

	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: public key is not base64: %w", apperrors.ErrKeyError, err)
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: parse public key: %w", apperrors.ErrKeyError, err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported public key type %T", apperrors.ErrKeyError, parsed)
	}
	return pub, nil
}

// ParsePrivateKey accepts base64 DER PKCS#8 or a private JWK JSON object.
func ParsePrivateKey(encoded string) (*rsa.PrivateKey, error) {
	encoded = strings.TrimSpace(encoded)
	if strings.HasPrefix(encoded, "{") {
		raw, err := exportJWK(encoded)
		if err != nil {
			return nil, err
		}
		priv, ok := raw.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: JWK is %T, want RSA private key", apperrors.ErrKeyError, raw)
		}
		return priv, nil
	}

	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: private key is not base64: %w", apperrors.ErrKeyError, err)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: parse private key: %w", apperrors.ErrKeyError, err)
	}
	priv, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported private key type %T", apperrors.ErrKeyError, parsed)
	}
	return priv, nil
}

func exportJWK(encoded string) (any, error) {
	key, err := jwk.ParseKey([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: parse JWK: %w", apperrors.ErrKeyError, err)
	}
	var raw any
	if err := jwk.Export(key, &raw); err != nil {
		return nil, fmt.Errorf("%w: export JWK: %w", apperrors.ErrKeyError, err)
	}
	return raw, nil
}

// KeyPair is a freshly generated approver key in every supported encoding.
type KeyPair struct {
	PublicKey  string          `json:"publicKey"`  // base64 SubjectPublicKeyInfo
	PrivateKey string          `json:"privateKey"` // base64 PKCS#8
	PublicJWK  json.RawMessage `json:"publicJwk"`
}

// GenerateKeyPair creates an RSA key for an approver, tagged with keyID in its JWK form.
func GenerateKeyPair(bits int, keyID string) (*KeyPair, error) {
	if bits < minRSABits {
		return nil, fmt.Errorf("%w: key size %d below %d bits", apperrors.ErrKeyError, bits, minRSABits)
	}

	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generate RSA key: %w", err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, err
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, err
	}

	jwkJSON, err := PublicJWK(&priv.PublicKey, keyID)
	if err != nil {
		return nil, err
	}

	return &KeyPair{
		PublicKey:  base64.StdEncoding.EncodeToString(pubDER),
		PrivateKey: base64.StdEncoding.EncodeToString(privDER),
		PublicJWK:  jwkJSON,
	}, nil
}

// PublicJWK encodes pub as an RS256 signing JWK.
func PublicJWK(pub *rsa.PublicKey, keyID string) ([]byte, error) {
	key, err := jwk.Import(pub)
	if err != nil {
		return nil, fmt.Errorf("import public key: %w", err)
	}
	if keyID != "" {
		if err := key.Set(jwk.KeyIDKey, keyID); err != nil {
			return nil, fmt.Errorf("set kid: %w", err)
		}
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.RS256()); err != nil {
		return nil, fmt.Errorf("set alg: %w", err)
	}
	if err := key.Set(jwk.KeyUsageKey, jwk.ForSignature); err != nil {
		return nil, fmt.Errorf("set use: %w", err)
	}
	return json.Marshal(key)
}
