package auth

import (
	"crypto/ed25519"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/nacl/sign"
)

// Verifier checks that a request was signed by the claimed wallet over a
// fixed challenge. Wallets either return the combined signature||payload
// (base64) or a detached signature (base58); both are accepted.
type Verifier struct {
	challenge []byte
}

func NewVerifier(challenge string) *Verifier {
	return &Verifier{challenge: []byte(challenge)}
}

// decodePubKey converts a base58 wallet address to a raw 32-byte key.
func decodePubKey(addr string) (*[ed25519.PublicKeySize]byte, error) {
	raw, err := base58.Decode(addr)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key length: %d", len(raw))
	}
	var pk [ed25519.PublicKeySize]byte
	copy(pk[:], raw)
	return &pk, nil
}

// Verify reports whether signedMessage proves ownership of publicKey.
func (v *Verifier) Verify(signedMessage, publicKey string) bool {
	pk, err := decodePubKey(publicKey)
	if err != nil {
		return false
	}

	recovered, ok := v.open(signedMessage, pk)
	if !ok {
		return v.verifyDetached(signedMessage, pk)
	}
	// A recovered payload is final; a mismatch never falls back.
	return subtle.ConstantTimeCompare(recovered, v.challenge) == 1
}

// open recovers the payload of a combined signature. Input that is not
// base64 recovers nothing.
func (v *Verifier) open(signedMessage string, pk *[ed25519.PublicKeySize]byte) ([]byte, bool) {
	raw, err := base64.StdEncoding.DecodeString(signedMessage)
	if err != nil {
		return nil, false
	}
	return sign.Open(nil, raw, pk)
}

func (v *Verifier) verifyDetached(signedMessage string, pk *[ed25519.PublicKeySize]byte) bool {
	sig, err := base58.Decode(signedMessage)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pk[:]), v.challenge, sig)
}
