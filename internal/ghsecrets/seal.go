// Package ghsecrets publishes values as GitHub Actions repository secrets.
//
// GitHub only accepts secrets encrypted to the repository's current
// Curve25519 public key using a libsodium sealed box. The key rotates on
// GitHub's side, so it is fetched for every run and the key id it came
// with is sent back alongside each ciphertext.
package ghsecrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/box"
)

// KeySize is the length of a Curve25519 key
const KeySize = 32

// ErrOpen is returned when a sealed box does not decrypt under the given key pair
var ErrOpen = errors.New("ghsecrets: sealed box could not be opened")

// PublicKey is a repository's secret-encryption key as returned by the API
type PublicKey struct {
	KeyID string
	// Key is the base64 encoded Curve25519 public key.
	Key string
}

// Decode returns the raw key bytes
func (k PublicKey) Decode() (*[KeySize]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(k.Key)
	if err != nil {
		return nil, fmt.Errorf("decode repository public key %s: %w", k.KeyID, err)
	}
	if len(raw) != KeySize {
		return nil, fmt.Errorf("repository public key %s is %d bytes, want %d", k.KeyID, len(raw), KeySize)
	}
	var out [KeySize]byte
	copy(out[:], raw)
	return &out, nil
}

// EncryptedSecret is a sealed value ready for upload
type EncryptedSecret struct {
	Name string
	// EncryptedValue is the base64 encoded sealed box.
	EncryptedValue string
	// KeyID identifies the public key the value was sealed to.
	KeyID string
}

// Sealer encrypts values for one repository public key
type Sealer struct {
	key       PublicKey
	recipient *[KeySize]byte
	rand      io.Reader
}

// NewSealer decodes key and prepares it for sealing
func NewSealer(key PublicKey) (*Sealer, error) {
	if key.KeyID == "" {
		return nil, fmt.Errorf("repository public key has no key id")
	}
	recipient, err := key.Decode()
	if err != nil {
		return nil, err
	}
	return &Sealer{key: key, recipient: recipient, rand: rand.Reader}, nil
}

// Seal encrypts plaintext with an anonymous sealed box. The ephemeral
// sender key is discarded, so only the repository can decrypt it.
func (s *Sealer) Seal(name string, plaintext []byte) (EncryptedSecret, error) {
	sealed, err := box.SealAnonymous(nil, plaintext, s.recipient, s.rand)
	if err != nil {
		return EncryptedSecret{}, fmt.Errorf("seal secret %s: %w", name, err)
	}
	return EncryptedSecret{
		Name:           name,
		EncryptedValue: base64.StdEncoding.EncodeToString(sealed),
		KeyID:          s.key.KeyID,
	}, nil
}

// Open reverses Seal for the holder of the private key.
func Open(encryptedValue string, publicKey, privateKey *[KeySize]byte) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(encryptedValue)
	if err != nil {
		return nil, fmt.Errorf("decode sealed value: %w", err)
	}
	plaintext, ok := box.OpenAnonymous(nil, sealed, publicKey, privateKey)
	if !ok {
		return nil, ErrOpen
	}
	return plaintext, nil
}
