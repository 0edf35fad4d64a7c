package sda

import (
	"sync"
)

// KeyGenerator generates fresh key material of type K from a
// cryptographically secure source. It fails with ErrRandomnessUnavailable
// when the entropy source cannot be read.
type KeyGenerator[K any] interface {
	NewKey() (K, error)
}

var (
	_ KeyGenerator[EncryptionKeypair] = EncryptionKeyGenerator{}
	_ KeyGenerator[SignatureKeypair]  = SignatureKeyGenerator{}
)

// EncryptionKeyStorage stores encryption keypairs. Entries are write-once.
type EncryptionKeyStorage interface {
	// PutEncryptionKeypair fails with ErrDuplicateKey if id already has an
	// entry and with ErrStorageUnavailable on backend failure.
	PutEncryptionKeypair(id EncryptionKeyID, kp EncryptionKeypair) error
	// GetEncryptionKeypair reports absence with ok == false, not an error.
	GetEncryptionKeypair(id EncryptionKeyID) (kp EncryptionKeypair, ok bool, err error)
}

// SignatureKeyStorage stores signature keypairs. Entries are write-once.
type SignatureKeyStorage interface {
	PutSignatureKeypair(id VerificationKeyID, kp SignatureKeypair) error
	GetSignatureKeypair(id VerificationKeyID) (kp SignatureKeypair, ok bool, err error)
}

// Keystore is the capability union required by the crypto module: any
// backend must store both kinds of keys.
type Keystore interface {
	EncryptionKeyStorage
	SignatureKeyStorage
}

// memoryStore is a write-once map. Reads are lock-free and LoadOrStore gives
// exactly one winner among concurrent writers of the same id.
type memoryStore[ID comparable, K any] struct {
	entries sync.Map
	clone   func(K) K
}

func (s *memoryStore[ID, K]) put(id ID, key K) error {
	if _, loaded := s.entries.LoadOrStore(id, s.clone(key)); loaded {
		return ErrDuplicateKey
	}
	return nil
}

func (s *memoryStore[ID, K]) get(id ID) (K, bool) {
	v, ok := s.entries.Load(id)
	if !ok {
		var zero K
		return zero, false
	}
	return s.clone(v.(K)), true
}

func (s *memoryStore[ID, K]) len() int {
	n := 0
	s.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// MemoryKeystore is a process-local Keystore. It is safe for concurrent use;
// keypairs are deep-copied on the way in and out so callers can zeroize
// what they receive.
type MemoryKeystore struct {
	encryption memoryStore[EncryptionKeyID, EncryptionKeypair]
	signature  memoryStore[VerificationKeyID, SignatureKeypair]
}

var _ Keystore = (*MemoryKeystore)(nil)

// NewMemoryKeystore creates an empty in-memory keystore
func NewMemoryKeystore() *MemoryKeystore {
	return &MemoryKeystore{
		encryption: memoryStore[EncryptionKeyID, EncryptionKeypair]{clone: EncryptionKeypair.Clone},
		signature:  memoryStore[VerificationKeyID, SignatureKeypair]{clone: SignatureKeypair.Clone},
	}
}

func (m *MemoryKeystore) PutEncryptionKeypair(id EncryptionKeyID, kp EncryptionKeypair) error {
	if err := m.encryption.put(id, kp); err != nil {
		return ErrDuplicateKey.WithContext("encryption_key", id.String())
	}
	return nil
}

func (m *MemoryKeystore) GetEncryptionKeypair(id EncryptionKeyID) (EncryptionKeypair, bool, error) {
	kp, ok := m.encryption.get(id)
	return kp, ok, nil
}

func (m *MemoryKeystore) PutSignatureKeypair(id VerificationKeyID, kp SignatureKeypair) error {
	if err := m.signature.put(id, kp); err != nil {
		return ErrDuplicateKey.WithContext("verification_key", id.String())
	}
	return nil
}

func (m *MemoryKeystore) GetSignatureKeypair(id VerificationKeyID) (SignatureKeypair, bool, error) {
	kp, ok := m.signature.get(id)
	return kp, ok, nil
}

// Len returns the number of stored encryption and signature keypairs
func (m *MemoryKeystore) Len() (encryption, signature int) {
	return m.encryption.len(), m.signature.len()
}
