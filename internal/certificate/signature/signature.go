// Package signature verifies approver decisions signed with SHA256withRSA.
package signature

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"

	apperrors "certificate-workers/internal/common/errors"
)

// Directory resolves an approver's registered public key.
type Directory interface {
	SigningKey(ctx context.Context, approverID string) (string, error)
}

// Payload is the decision content an approver signs.
type Payload struct {
	ApplicationID string
	Action        string
	Comment       string
	ApproverID    string
	Timestamp     int64 // unix milliseconds chosen by the signing client
}

// Canonical renders the exact string that is signed. A nil comment is signed as empty.
func (p Payload) Canonical() string {
	return "applicationId=" + p.ApplicationID +
		"&action=" + p.Action +
		"&comment=" + p.Comment +
		"&approverId=" + p.ApproverID +
		"&timestamp=" + strconv.FormatInt(p.Timestamp, 10)
}

// Verify reports whether sig (standard base64) is a valid signature of payload under
// publicKey. Any mismatch, including an undecodable signature, yields false with a nil error.
// Only malformed or unsupported key material returns an error, wrapping ErrKeyError.
func Verify(payload, sig, publicKey string) (bool, error) {
	pub, err := ParsePublicKey(publicKey)
	if err != nil {
		return false, err
	}

	raw, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		return false, nil
	}

	digest := sha256.Sum256([]byte(payload))
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], raw); err != nil {
		return false, nil
	}
	return true, nil
}

// Sign produces the base64 SHA256withRSA signature of payload with a base64 PKCS#8 (or JWK)
// private key. Used by tooling and tests; the service itself never signs decisions.
func Sign(payload, privateKey string) (string, error) {
	priv, err := ParsePrivateKey(privateKey)
	if err != nil {
		return "", err
	}

	digest := sha256.Sum256([]byte(payload))
	raw, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("%w: sign: %w", apperrors.ErrKeyError, err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// HashSignature is the value persisted on an approval instead of the signature itself.
func HashSignature(sig string) string {
	sum := sha256.Sum256([]byte(sig))
	return hex.EncodeToString(sum[:])
}
