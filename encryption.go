package sda

import (
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// EncryptionKind selects the hybrid encryption suite
type EncryptionKind string

const (
	// EncryptionX25519 is X25519 ECDH + HKDF-SHA256 + XChaCha20-Poly1305
	EncryptionX25519 EncryptionKind = "x25519-chacha20poly1305"
	// EncryptionSecp256k1 is secp256k1 ECDH + HKDF-SHA256 + XChaCha20-Poly1305
	EncryptionSecp256k1 EncryptionKind = "secp256k1-chacha20poly1305"
)

const eciesDomain = "SDA_ECIES_v1"

// EncryptionKey is the public half of an encryption keypair
type EncryptionKey struct {
	ID     EncryptionKeyID `json:"id"`
	Kind   EncryptionKind  `json:"kind"`
	Public []byte          `json:"public"`
}

// SuitableFor reports whether fragments of scheme may be encrypted to this key
func (k EncryptionKey) SuitableFor(scheme *Scheme) bool {
	if scheme == nil || k.Kind != scheme.Encryption {
		return false
	}
	suite, err := lookupEncryptionSuite(k.Kind)
	if err != nil {
		return false
	}
	return suite.validatePublic(k.Public) == nil
}

// SigningBytes is the canonical, domain separated encoding signed by the owner
func (k EncryptionKey) SigningBytes() []byte {
	var buf bytes.Buffer
	buf.WriteString("SDA_ENCRYPTION_KEY_v1")
	buf.Write(k.ID[:])
	writeLengthPrefixed(&buf, []byte(k.Kind))
	writeLengthPrefixed(&buf, k.Public)
	return buf.Bytes()
}

// EncryptionKeypair is asymmetric encryption key material. The private half
// never leaves the keystore of the owning agent.
type EncryptionKeypair struct {
	Kind    EncryptionKind `json:"kind"`
	Public  []byte         `json:"public"`
	Private []byte         `json:"private"`
}

// PublicKey returns the public half labelled with id
func (kp EncryptionKeypair) PublicKey(id EncryptionKeyID) EncryptionKey {
	return EncryptionKey{ID: id, Kind: kp.Kind, Public: bytes.Clone(kp.Public)}
}

// SuitableFor reports whether the keypair can decrypt fragments of scheme
func (kp EncryptionKeypair) SuitableFor(scheme *Scheme) bool {
	return EncryptionKey{Kind: kp.Kind, Public: kp.Public}.SuitableFor(scheme)
}

// Clone returns a deep copy
func (kp EncryptionKeypair) Clone() EncryptionKeypair {
	return EncryptionKeypair{Kind: kp.Kind, Public: bytes.Clone(kp.Public), Private: bytes.Clone(kp.Private)}
}

// Zeroize clears the private key material
func (kp *EncryptionKeypair) Zeroize() {
	clear(kp.Private)
	kp.Private = nil
}

// String never prints private key material
func (kp EncryptionKeypair) String() string {
	return fmt.Sprintf("EncryptionKeypair{kind: %s, public: %x}", kp.Kind, kp.Public)
}

// EncryptionKeyGenerator generates encryption keypairs of one kind
type EncryptionKeyGenerator struct {
	Kind EncryptionKind
	Rand io.Reader
}

// NewKey generates a fresh keypair
func (g EncryptionKeyGenerator) NewKey() (EncryptionKeypair, error) {
	suite, err := lookupEncryptionSuite(g.Kind)
	if err != nil {
		return EncryptionKeypair{}, err
	}
	r := g.Rand
	if r == nil {
		r = rand.Reader
	}
	public, private, err := suite.generate(r)
	if err != nil {
		return EncryptionKeypair{}, err
	}
	return EncryptionKeypair{Kind: g.Kind, Public: public, Private: private}, nil
}

// Encryptor seals plaintexts to a single recipient key
type Encryptor struct {
	key   EncryptionKey
	suite encryptionSuite
	rand  io.Reader
}

// NewEncryptor creates an encryptor for key
func NewEncryptor(key EncryptionKey) (*Encryptor, error) {
	suite, err := lookupEncryptionSuite(key.Kind)
	if err != nil {
		return nil, err
	}
	if err := suite.validatePublic(key.Public); err != nil {
		return nil, ErrInvalidKey.WithCause(err)
	}
	return &Encryptor{
		key:   EncryptionKey{ID: key.ID, Kind: key.Kind, Public: bytes.Clone(key.Public)},
		suite: suite,
		rand:  rand.Reader,
	}, nil
}

// WithRand returns a copy drawing ephemeral keys and nonces from r
func (e *Encryptor) WithRand(r io.Reader) *Encryptor {
	c := *e
	c.rand = r
	return &c
}

// Key returns the recipient key
func (e *Encryptor) Key() EncryptionKey {
	return e.key
}

// Encrypt seals plaintext to the recipient. The ciphertext layout is
// ephemeral public key || nonce || sealed box.
func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	ephemeral, shared, err := e.suite.encapsulate(e.rand, e.key.Public)
	if err != nil {
		return nil, err
	}
	defer clear(shared)

	aead, err := newAEAD(e.key.Kind, shared, ephemeral, e.key.Public)
	if err != nil {
		return nil, ErrEncryptionFailed.WithCause(err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(e.rand, nonce); err != nil {
		return nil, ErrRandomnessUnavailable.WithCause(err)
	}

	out := make([]byte, 0, len(ephemeral)+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, ephemeral...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, e.key.ID[:]), nil
}

// Decrypt opens a ciphertext produced by an Encryptor for the key (id, kp).
// Any malformed input or authentication failure yields ErrDecryptionFailed
// and no plaintext.
func Decrypt(id EncryptionKeyID, kp EncryptionKeypair, ciphertext []byte) ([]byte, error) {
	suite, err := lookupEncryptionSuite(kp.Kind)
	if err != nil {
		return nil, ErrDecryptionFailed.WithCause(err)
	}

	ephSize := suite.publicKeySize()
	nonceSize := chacha20poly1305.NonceSizeX
	if len(ciphertext) < ephSize+nonceSize+chacha20poly1305.Overhead {
		return nil, ErrDecryptionFailed
	}
	ephemeral := ciphertext[:ephSize]
	nonce := ciphertext[ephSize : ephSize+nonceSize]
	sealed := ciphertext[ephSize+nonceSize:]

	shared, err := suite.decapsulate(kp.Private, ephemeral)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	defer clear(shared)

	aead, err := newAEAD(kp.Kind, shared, ephemeral, kp.Public)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	plaintext, err := aead.Open(nil, nonce, sealed, id[:])
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// Decryptor opens ciphertexts addressed to one stored key. It resolves the
// private key from the keystore on every call and clears it afterwards.
type Decryptor struct {
	store EncryptionKeyStorage
	id    EncryptionKeyID
}

// NewDecryptor binds a decryptor to the keypair stored under id
func NewDecryptor(store EncryptionKeyStorage, id EncryptionKeyID) *Decryptor {
	return &Decryptor{store: store, id: id}
}

// KeyID returns the id of the bound key
func (d *Decryptor) KeyID() EncryptionKeyID {
	return d.id
}

// Decrypt opens ciphertext with the bound private key
func (d *Decryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	kp, ok, err := d.store.GetEncryptionKeypair(d.id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrKeyNotFound.WithContext("encryption_key", d.id.String())
	}
	defer kp.Zeroize()
	return Decrypt(d.id, kp, ciphertext)
}

func newAEAD(kind EncryptionKind, shared, ephemeral, recipient []byte) (cipher.AEAD, error) {
	var info bytes.Buffer
	info.WriteString(eciesDomain)
	writeLengthPrefixed(&info, []byte(kind))
	writeLengthPrefixed(&info, ephemeral)
	writeLengthPrefixed(&info, recipient)

	key := make([]byte, chacha20poly1305.KeySize)
	defer clear(key)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, nil, info.Bytes()), key); err != nil {
		return nil, fmt.Errorf("failed to derive key from HKDF: %w", err)
	}
	return chacha20poly1305.NewX(key)
}

// encryptionSuite is the key agreement half of a hybrid encryption kind
type encryptionSuite interface {
	publicKeySize() int
	validatePublic(public []byte) error
	generate(r io.Reader) (public, private []byte, err error)
	encapsulate(r io.Reader, recipient []byte) (ephemeral, shared []byte, err error)
	decapsulate(private, ephemeral []byte) (shared []byte, err error)
}

func lookupEncryptionSuite(kind EncryptionKind) (encryptionSuite, error) {
	switch kind {
	case EncryptionX25519:
		return x25519Suite{}, nil
	case EncryptionSecp256k1:
		return secp256k1Suite{}, nil
	default:
		return nil, ErrUnsupportedKind.WithDetails("encryption kind %q", kind)
	}
}

type x25519Suite struct{}

func (x25519Suite) publicKeySize() int { return curve25519.PointSize }

func (x25519Suite) validatePublic(public []byte) error {
	if len(public) != curve25519.PointSize {
		return fmt.Errorf("x25519 public key must be %d bytes, got %d", curve25519.PointSize, len(public))
	}
	var zero [curve25519.PointSize]byte
	if subtle.ConstantTimeCompare(public, zero[:]) == 1 {
		return fmt.Errorf("x25519 public key is the zero point")
	}
	return nil
}

func (x25519Suite) generate(r io.Reader) ([]byte, []byte, error) {
	private := make([]byte, curve25519.ScalarSize)
	if _, err := io.ReadFull(r, private); err != nil {
		return nil, nil, ErrRandomnessUnavailable.WithCause(err)
	}
	public, err := curve25519.X25519(private, curve25519.Basepoint)
	if err != nil {
		clear(private)
		return nil, nil, ErrInvalidKey.WithCause(err)
	}
	return public, private, nil
}

func (s x25519Suite) encapsulate(r io.Reader, recipient []byte) ([]byte, []byte, error) {
	ephemeral, ephPrivate, err := s.generate(r)
	if err != nil {
		return nil, nil, err
	}
	defer clear(ephPrivate)
	shared, err := curve25519.X25519(ephPrivate, recipient)
	if err != nil {
		return nil, nil, ErrInvalidKey.WithCause(err)
	}
	return ephemeral, shared, nil
}

func (x25519Suite) decapsulate(private, ephemeral []byte) ([]byte, error) {
	// X25519 rejects low-order points with an all-zero output error
	return curve25519.X25519(private, ephemeral)
}

type secp256k1Suite struct{}

func (secp256k1Suite) publicKeySize() int { return btcec.PubKeyBytesLenCompressed }

func (secp256k1Suite) validatePublic(public []byte) error {
	if len(public) != btcec.PubKeyBytesLenCompressed {
		return fmt.Errorf("secp256k1 public key must be %d compressed bytes, got %d", btcec.PubKeyBytesLenCompressed, len(public))
	}
	_, err := btcec.ParsePubKey(public)
	return err
}

func (secp256k1Suite) generate(r io.Reader) ([]byte, []byte, error) {
	private, err := randomSecp256k1Scalar(r)
	if err != nil {
		return nil, nil, err
	}
	priv, pub := btcec.PrivKeyFromBytes(private)
	defer priv.Zero()
	return pub.SerializeCompressed(), private, nil
}

func (s secp256k1Suite) encapsulate(r io.Reader, recipient []byte) ([]byte, []byte, error) {
	recipientKey, err := btcec.ParsePubKey(recipient)
	if err != nil {
		return nil, nil, ErrInvalidKey.WithCause(err)
	}
	ephPrivate, err := randomSecp256k1Scalar(r)
	if err != nil {
		return nil, nil, err
	}
	defer clear(ephPrivate)

	priv, pub := btcec.PrivKeyFromBytes(ephPrivate)
	defer priv.Zero()
	return pub.SerializeCompressed(), btcec.GenerateSharedSecret(priv, recipientKey), nil
}

func (secp256k1Suite) decapsulate(private, ephemeral []byte) ([]byte, error) {
	ephKey, err := btcec.ParsePubKey(ephemeral)
	if err != nil {
		return nil, err
	}
	if len(private) != 32 {
		return nil, fmt.Errorf("secp256k1 private key must be 32 bytes")
	}
	priv, _ := btcec.PrivKeyFromBytes(private)
	defer priv.Zero()
	return btcec.GenerateSharedSecret(priv, ephKey), nil
}

// randomSecp256k1Scalar draws a non-zero scalar below the group order
func randomSecp256k1Scalar(r io.Reader) ([]byte, error) {
	for {
		candidate := make([]byte, 32)
		if _, err := io.ReadFull(r, candidate); err != nil {
			return nil, ErrRandomnessUnavailable.WithCause(err)
		}

		scalar := new(btcec.ModNScalar)
		overflow := scalar.SetBytes((*[32]byte)(candidate))
		if overflow == 0 && !scalar.IsZero() {
			scalar.Zero()
			return candidate, nil
		}
		// If overflow, try again with new random bytes
		clear(candidate)
	}
}
