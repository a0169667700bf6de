// Package secure provides memory-safe storage for credentials that must
// outlive the call that retrieved them, such as the admin password held
// between the secret lookup and the database connect.
package secure

import (
	"sync"

	"github.com/awnumar/memguard"
)

// Buffer holds a secret in a memguard enclave: encrypted at rest in memory,
// mlocked where the platform allows it.
type Buffer struct {
	enclave *memguard.Enclave

	mu        sync.RWMutex
	destroyed bool
}

// NewBuffer copies data into a protected memory region. The caller keeps
// ownership of the input slice and should zero it when possible.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{enclave: memguard.NewEnclave(data)}
}

// NewBufferFromString is NewBuffer for string-valued secrets.
func NewBufferFromString(s string) *Buffer {
	return NewBuffer([]byte(s))
}

// Open decrypts the secret into a locked buffer. The caller must call
// Destroy on the returned buffer to wipe the plaintext.
func (b *Buffer) Open() (*memguard.LockedBuffer, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.destroyed {
		return memguard.NewBufferFromBytes([]byte{}), nil
	}
	return b.enclave.Open()
}

// String decrypts the secret, copies it out as a string, and wipes the
// intermediate locked buffer. Use Open when the caller can work on bytes.
func (b *Buffer) String() (string, error) {
	locked, err := b.Open()
	if err != nil {
		return "", err
	}
	defer locked.Destroy()
	return string(locked.Bytes()), nil
}

// Destroy marks the buffer unusable. Idempotent; after Destroy, Open
// returns an empty buffer. The encrypted enclave itself needs no explicit
// teardown. Call memguard.Purge in main for whole-process cleanup.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.destroyed = true
}
