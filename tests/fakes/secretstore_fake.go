package fakes

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sync"
	"testing"

	"github.com/systmms/awsops/internal/ghsecrets"
	"golang.org/x/crypto/nacl/box"
)

// FakeSecretStore stands in for a repository's Actions secrets. It owns a
// real Curve25519 key pair so uploaded values can be decrypted in tests.
type FakeSecretStore struct {
	mu sync.Mutex

	KeyID string

	// PublicKeyErr and PutErr inject failures.
	PublicKeyErr error
	PutErr       map[string]error

	public  *[32]byte
	private *[32]byte

	publicKeyCalls int
	puts           []ghsecrets.EncryptedSecret
}

// NewFakeSecretStore creates a store with a fresh key pair
func NewFakeSecretStore(t *testing.T) *FakeSecretStore {
	t.Helper()

	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	return &FakeSecretStore{
		KeyID:   "568250167242549743",
		PutErr:  make(map[string]error),
		public:  pub,
		private: priv,
	}
}

// PublicKey returns the store's public key
func (f *FakeSecretStore) PublicKey(ctx context.Context) (*ghsecrets.PublicKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.publicKeyCalls++
	if f.PublicKeyErr != nil {
		return nil, f.PublicKeyErr
	}
	return &ghsecrets.PublicKey{
		KeyID: f.KeyID,
		Key:   base64.StdEncoding.EncodeToString(f.public[:]),
	}, nil
}

// PutSecret records an upload
func (f *FakeSecretStore) PutSecret(ctx context.Context, secret ghsecrets.EncryptedSecret) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.PutErr[secret.Name]; err != nil {
		return err
	}
	f.puts = append(f.puts, secret)
	return nil
}

// PublicKeyCalls returns how often the public key was fetched
func (f *FakeSecretStore) PublicKeyCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.publicKeyCalls
}

// Puts returns every successful upload, in order
func (f *FakeSecretStore) Puts() []ghsecrets.EncryptedSecret {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]ghsecrets.EncryptedSecret(nil), f.puts...)
}

// Decrypt opens the latest upload of name. ok is false if there is none.
func (f *FakeSecretStore) Decrypt(name string) (plaintext string, ok bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := len(f.puts) - 1; i >= 0; i-- {
		if f.puts[i].Name != name {
			continue
		}
		raw, err := ghsecrets.Open(f.puts[i].EncryptedValue, f.public, f.private)
		if err != nil {
			return "", true, err
		}
		return string(raw), true, nil
	}
	return "", false, nil
}
