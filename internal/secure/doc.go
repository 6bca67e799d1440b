// Package secure keeps freshly minted credentials out of ordinary heap memory.
//
// A SecretAccessKey returned by IAM is only retrievable once, and it lives in
// the process from the CreateAccessKey response until it has been sealed for
// the repository's secret store. During that window it is held in a memguard
// enclave: encrypted at rest (XSalsa20Poly1305), excluded from core dumps and
// wiped when destroyed.
//
// Typical use:
//
//	buf, err := secure.NewSecureBuffer([]byte(secret))
//	if err != nil {
//	    return err
//	}
//	defer buf.Destroy()
//
//	err = buf.With(func(plaintext []byte) error {
//	    return seal(plaintext)
//	})
//
// If mlock is unavailable (RLIMIT_MEMLOCK on Linux) memguard falls back to
// ordinary memory; the enclave is still encrypted.
package secure
