package secure

import (
	"bytes"
	"errors"
	"sync"
	"testing"
)

func TestNewSecureBuffer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{
			name: "creates enclave from secret access key",
			data: []byte("wJalrXUtnFEMI/K7MDENG/bPxRfiCYEXAMPLEKEY"),
		},
		{
			name: "handles binary data",
			data: []byte{0x00, 0xFF, 0x10, 0x20},
		},
		{
			name:    "rejects empty data",
			data:    []byte{},
			wantErr: ErrEmpty,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			buf, err := NewSecureBuffer(tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NewSecureBuffer() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if buf == nil {
				t.Fatal("NewSecureBuffer() returned nil buffer")
			}
			buf.Destroy()
		})
	}
}

func TestSecureBuffer_With(t *testing.T) {
	t.Parallel()

	secretStr := "wJalrXUtnFEMI/K7MDENG/bPxRfiCYEXAMPLEKEY"

	buf, err := NewSecureString(secretStr)
	if err != nil {
		t.Fatalf("NewSecureString() error = %v", err)
	}
	defer buf.Destroy()

	// More than once: the enclave stays usable until destroyed.
	for i := 0; i < 3; i++ {
		err = buf.With(func(plaintext []byte) error {
			if string(plaintext) != secretStr {
				t.Errorf("With() iteration %d saw %q", i, plaintext)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("With() error = %v", err)
		}
	}
}

func TestSecureBuffer_WithPropagatesError(t *testing.T) {
	t.Parallel()

	buf, err := NewSecureString("value")
	if err != nil {
		t.Fatalf("NewSecureString() error = %v", err)
	}
	defer buf.Destroy()

	sentinel := errors.New("seal failed")
	if got := buf.With(func([]byte) error { return sentinel }); !errors.Is(got, sentinel) {
		t.Errorf("With() error = %v, want %v", got, sentinel)
	}
}

func TestSecureBuffer_Destroy(t *testing.T) {
	t.Parallel()

	buf, err := NewSecureBuffer([]byte("secret-to-destroy"))
	if err != nil {
		t.Fatalf("NewSecureBuffer() error = %v", err)
	}

	buf.Destroy()
	buf.Destroy()

	if _, err := buf.Open(); !errors.Is(err, ErrDestroyed) {
		t.Errorf("Open() after Destroy error = %v, want %v", err, ErrDestroyed)
	}
	if err := buf.With(func([]byte) error { return nil }); !errors.Is(err, ErrDestroyed) {
		t.Errorf("With() after Destroy error = %v, want %v", err, ErrDestroyed)
	}
}

func TestSecureBuffer_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	expected := []byte("concurrent-secret")
	buf, err := NewSecureBuffer([]byte("concurrent-secret"))
	if err != nil {
		t.Fatalf("NewSecureBuffer() error = %v", err)
	}
	defer buf.Destroy()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			locked, err := buf.Open()
			if err != nil {
				t.Errorf("Open() error = %v", err)
				return
			}
			defer locked.Destroy()

			if !bytes.Equal(locked.Bytes(), expected) {
				t.Error("Data mismatch in concurrent access")
			}
		}()
	}
	wg.Wait()
}
