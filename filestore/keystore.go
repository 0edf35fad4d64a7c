package filestore

import (
	"github.com/sda-network/sda"
)

// Keystore is a durable sda.Keystore rooted at a directory. Private key
// documents are created with mode 0600 and are never cached in memory.
type Keystore struct {
	encryption *store
	signature  *store
}

var _ sda.Keystore = (*Keystore)(nil)

// NewKeystore opens or creates a keystore under root
func NewKeystore(root string) (*Keystore, error) {
	encryption, err := newStore(root, "encryption_keys")
	if err != nil {
		return nil, err
	}
	signature, err := newStore(root, "signature_keys")
	if err != nil {
		return nil, err
	}
	return &Keystore{encryption: encryption, signature: signature}, nil
}

func (k *Keystore) PutEncryptionKeypair(id sda.EncryptionKeyID, kp sda.EncryptionKeypair) error {
	return k.encryption.put(id.String(), kp)
}

func (k *Keystore) GetEncryptionKeypair(id sda.EncryptionKeyID) (sda.EncryptionKeypair, bool, error) {
	var kp sda.EncryptionKeypair
	ok, err := k.encryption.get(id.String(), &kp)
	if err != nil || !ok {
		return sda.EncryptionKeypair{}, false, err
	}
	return kp, true, nil
}

func (k *Keystore) PutSignatureKeypair(id sda.VerificationKeyID, kp sda.SignatureKeypair) error {
	return k.signature.put(id.String(), kp)
}

func (k *Keystore) GetSignatureKeypair(id sda.VerificationKeyID) (sda.SignatureKeypair, bool, error) {
	var kp sda.SignatureKeypair
	ok, err := k.signature.get(id.String(), &kp)
	if err != nil || !ok {
		return sda.SignatureKeypair{}, false, err
	}
	return kp, true, nil
}
