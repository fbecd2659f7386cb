package keys

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
)

const rsaKeyBits = 2048

const (
	privatePEMType = "RSA PRIVATE KEY"
	publicPEMType  = "PUBLIC KEY"
)

// ErrInvalidKey indicates PEM material that does not decode to a usable key.
var ErrInvalidKey = errors.New("invalid key material")

// Manager generates wallet keypairs and signs and verifies transfer messages.
// Key storage is the caller's responsibility.
type Manager interface {
	Generate() (publicPEM, privatePEM string, err error)
	Sign(privatePEM, message string) (string, error)
	Verify(publicPEM, message, signature string) bool
}

// RSA implements Manager with 2048-bit RSA keys and PKCS1v15 signatures over
// SHA-256 digests. Signatures are hex encoded.
type RSA struct{}

// NewRSA builds an RSA key manager.
func NewRSA() *RSA {
	return &RSA{}
}

// Generate produces a fresh keypair, PEM encoded.
func (m *RSA) Generate() (string, string, error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return "", "", fmt.Errorf("generate rsa key: %w", err)
	}

	privBlock := &pem.Block{Type: privatePEMType, Bytes: x509.MarshalPKCS1PrivateKey(key)}

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", "", fmt.Errorf("encode public key: %w", err)
	}
	pubBlock := &pem.Block{Type: publicPEMType, Bytes: pubDER}

	return string(pem.EncodeToMemory(pubBlock)), string(pem.EncodeToMemory(privBlock)), nil
}

// Sign produces a hex-encoded PKCS1v15 signature over the SHA-256 digest of message.
func (m *RSA) Sign(privatePEM, message string) (string, error) {
	key, err := parsePrivateKey(privatePEM)
	if err != nil {
		return "", err
	}

	digest := sha256.Sum256([]byte(message))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("sign message: %w", err)
	}
	return hex.EncodeToString(sig), nil
}

// Verify reports whether signature is a valid signature of message under the
// given public key. Malformed keys or signatures verify as false, never panic
// or surface an error.
func (m *RSA) Verify(publicPEM, message, signature string) bool {
	key, err := parsePublicKey(publicPEM)
	if err != nil {
		return false
	}

	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	digest := sha256.Sum256([]byte(message))
	return rsa.VerifyPKCS1v15(key, crypto.SHA256, digest[:], sig) == nil
}

func parsePrivateKey(privatePEM string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(privatePEM))
	if block == nil {
		return nil, ErrInvalidKey
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, ErrInvalidKey
	}
	return key, nil
}

func parsePublicKey(publicPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(publicPEM))
	if block == nil {
		return nil, ErrInvalidKey
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, ErrInvalidKey
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, ErrInvalidKey
	}
	return key, nil
}
