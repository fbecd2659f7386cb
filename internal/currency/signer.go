package currency

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

var b64 = base64.RawURLEncoding

// Signer issues and validates invite codes. A code is the signed payload
// "<id>-<name>-<symbol>-<nonce>" followed by ":" and the base64url HMAC-SHA256
// signature. The random nonce makes regeneration produce a new code, which is
// what invalidates the previous one.
type Signer struct {
	secret []byte
}

// NewSigner builds an invite signer from a shared secret.
func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret}
}

// Generate produces a fresh invite code binding the currency's identity.
func (s *Signer) Generate(id, name, symbol string) (string, error) {
	nonce := make([]byte, 8)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate invite nonce: %w", err)
	}

	payload := fmt.Sprintf("%s-%s-%s-%s", id, name, symbol, hex.EncodeToString(nonce))
	return payload + ":" + b64.EncodeToString(s.mac(payload)), nil
}

// Validate reports whether code carries a valid signature and binds the given
// currency identity. Malformed codes validate as false, never error.
func (s *Signer) Validate(id, name, symbol, code string) bool {
	sep := strings.LastIndex(code, ":")
	if sep < 0 {
		return false
	}
	payload, encodedSig := code[:sep], code[sep+1:]

	sig, err := b64.DecodeString(encodedSig)
	if err != nil {
		return false
	}
	if !hmac.Equal(sig, s.mac(payload)) {
		return false
	}

	return strings.HasPrefix(payload, fmt.Sprintf("%s-%s-%s-", id, name, symbol))
}

func (s *Signer) mac(payload string) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}
