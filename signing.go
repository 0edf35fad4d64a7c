package sda

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"

	"filippo.io/edwards25519"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"golang.org/x/crypto/sha3"
)

// SignatureKind selects the signature algorithm
type SignatureKind string

const (
	// SignatureEd25519 is RFC 8032 Ed25519
	SignatureEd25519 SignatureKind = "ed25519"
	// SignatureSecp256k1Schnorr is BIP-340 Schnorr over secp256k1
	SignatureSecp256k1Schnorr SignatureKind = "secp256k1-schnorr"
)

const schnorrDigestDomain = "SDA_SCHNORR_MESSAGE_v1"

// VerificationKey is the public half of a signature keypair
type VerificationKey struct {
	ID     VerificationKeyID `json:"id"`
	Kind   SignatureKind     `json:"kind"`
	Public []byte            `json:"public"`
}

// Signature is a signature produced by a SignatureKeypair
type Signature struct {
	Kind  SignatureKind `json:"kind"`
	Bytes []byte        `json:"bytes"`
}

// SignedEncryptionKey binds an encryption key to the agent that owns it. It is
// trusted only once VerifySignedEncryptionKey succeeds for the signer.
type SignedEncryptionKey struct {
	Body      EncryptionKey `json:"body"`
	Signer    AgentID       `json:"signer"`
	Signature Signature     `json:"signature"`
}

// SignatureKeypair is signing key material. The private half never leaves
// the keystore of the owning agent.
type SignatureKeypair struct {
	Kind    SignatureKind `json:"kind"`
	Public  []byte        `json:"public"`
	Private []byte        `json:"private"`
}

// VerificationKey returns the public half labelled with id
func (kp SignatureKeypair) VerificationKey(id VerificationKeyID) VerificationKey {
	return VerificationKey{ID: id, Kind: kp.Kind, Public: bytes.Clone(kp.Public)}
}

// Clone returns a deep copy
func (kp SignatureKeypair) Clone() SignatureKeypair {
	return SignatureKeypair{Kind: kp.Kind, Public: bytes.Clone(kp.Public), Private: bytes.Clone(kp.Private)}
}

// Zeroize clears the private key material
func (kp *SignatureKeypair) Zeroize() {
	clear(kp.Private)
	kp.Private = nil
}

// String never prints private key material
func (kp SignatureKeypair) String() string {
	return fmt.Sprintf("SignatureKeypair{kind: %s, public: %x}", kp.Kind, kp.Public)
}

// Sign signs msg with the private half
func (kp SignatureKeypair) Sign(msg []byte) (Signature, error) {
	switch kp.Kind {
	case SignatureEd25519:
		if len(kp.Private) != ed25519.SeedSize {
			return Signature{}, ErrInvalidKey.WithDetails("ed25519 seed must be %d bytes", ed25519.SeedSize)
		}
		private := ed25519.NewKeyFromSeed(kp.Private)
		defer clear(private)
		return Signature{Kind: kp.Kind, Bytes: ed25519.Sign(private, msg)}, nil

	case SignatureSecp256k1Schnorr:
		if len(kp.Private) != 32 {
			return Signature{}, ErrInvalidKey.WithDetails("secp256k1 private key must be 32 bytes")
		}
		priv, _ := btcec.PrivKeyFromBytes(kp.Private)
		defer priv.Zero()
		digest := schnorrDigest(msg)
		sig, err := schnorr.Sign(priv, digest[:])
		if err != nil {
			return Signature{}, NewError(ErrorCategorySigning, "SIGNING_FAILED", "schnorr signing failed", false).WithCause(err)
		}
		return Signature{Kind: kp.Kind, Bytes: sig.Serialize()}, nil

	default:
		return Signature{}, ErrUnsupportedKind.WithDetails("signature kind %q", kp.Kind)
	}
}

// SignatureKeyGenerator generates signature keypairs of one kind
type SignatureKeyGenerator struct {
	Kind SignatureKind
	Rand io.Reader
}

// NewKey generates a fresh keypair
func (g SignatureKeyGenerator) NewKey() (SignatureKeypair, error) {
	r := g.Rand
	if r == nil {
		r = rand.Reader
	}

	switch g.Kind {
	case SignatureEd25519:
		seed := make([]byte, ed25519.SeedSize)
		if _, err := io.ReadFull(r, seed); err != nil {
			return SignatureKeypair{}, ErrRandomnessUnavailable.WithCause(err)
		}
		private := ed25519.NewKeyFromSeed(seed)
		defer clear(private)
		public := bytes.Clone(private.Public().(ed25519.PublicKey))
		return SignatureKeypair{Kind: g.Kind, Public: public, Private: seed}, nil

	case SignatureSecp256k1Schnorr:
		private, err := randomSecp256k1Scalar(r)
		if err != nil {
			return SignatureKeypair{}, err
		}
		priv, pub := btcec.PrivKeyFromBytes(private)
		defer priv.Zero()
		return SignatureKeypair{Kind: g.Kind, Public: schnorr.SerializePubKey(pub), Private: private}, nil

	default:
		return SignatureKeypair{}, ErrUnsupportedKind.WithDetails("signature kind %q", g.Kind)
	}
}

// Verify reports whether sig is a valid signature of msg under vk. It never
// fails: malformed keys, malformed signatures and kind mismatches all return
// false, indistinguishable from a cryptographically invalid signature.
func Verify(vk VerificationKey, msg []byte, sig Signature) bool {
	if vk.Kind != sig.Kind {
		return false
	}

	switch vk.Kind {
	case SignatureEd25519:
		if len(vk.Public) != ed25519.PublicKeySize || len(sig.Bytes) != ed25519.SignatureSize {
			return false
		}
		if !validEd25519Point(vk.Public) {
			return false
		}
		return ed25519.Verify(ed25519.PublicKey(vk.Public), msg, sig.Bytes)

	case SignatureSecp256k1Schnorr:
		pub, err := schnorr.ParsePubKey(vk.Public)
		if err != nil {
			return false
		}
		parsed, err := schnorr.ParseSignature(sig.Bytes)
		if err != nil {
			return false
		}
		digest := schnorrDigest(msg)
		return parsed.Verify(digest[:], pub)

	default:
		return false
	}
}

// BIP-340 signs 32-byte messages; arbitrary messages are hashed first
func schnorrDigest(msg []byte) [32]byte {
	hasher := sha3.New256()
	hasher.Write([]byte(schnorrDigestDomain))
	hasher.Write(msg)
	var digest [32]byte
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// Signer signs with one stored signature keypair, resolving the private key
// from the keystore on every call.
type Signer struct {
	store SignatureKeyStorage
	id    VerificationKeyID
}

// NewSigner binds a signer to the keypair stored under id
func NewSigner(store SignatureKeyStorage, id VerificationKeyID) *Signer {
	return &Signer{store: store, id: id}
}

// KeyID returns the id of the bound key
func (s *Signer) KeyID() VerificationKeyID {
	return s.id
}

// Sign signs msg with the bound keypair
func (s *Signer) Sign(msg []byte) (Signature, error) {
	kp, err := s.keypair()
	if err != nil {
		return Signature{}, err
	}
	defer kp.Zeroize()
	return kp.Sign(msg)
}

// SignEncryptionKey signs key on behalf of signer, producing the record other
// agents verify before encrypting to the key.
func (s *Signer) SignEncryptionKey(signer AgentID, key EncryptionKey) (SignedEncryptionKey, error) {
	kp, err := s.keypair()
	if err != nil {
		return SignedEncryptionKey{}, err
	}
	defer kp.Zeroize()
	return SignEncryptionKey(signer, kp, key)
}

func (s *Signer) keypair() (SignatureKeypair, error) {
	kp, ok, err := s.store.GetSignatureKeypair(s.id)
	if err != nil {
		return SignatureKeypair{}, err
	}
	if !ok {
		return SignatureKeypair{}, ErrKeyNotFound.WithContext("verification_key", s.id.String())
	}
	return kp, nil
}

// Verifier checks signatures against one verification key
type Verifier struct {
	key VerificationKey
}

// NewVerifier binds a verifier to key
func NewVerifier(key VerificationKey) *Verifier {
	return &Verifier{key: VerificationKey{ID: key.ID, Kind: key.Kind, Public: bytes.Clone(key.Public)}}
}

// KeyID returns the id of the bound key
func (v *Verifier) KeyID() VerificationKeyID {
	return v.key.ID
}

// Verify reports whether sig is a valid signature of msg under the bound key
func (v *Verifier) Verify(msg []byte, sig Signature) bool {
	return Verify(v.key, msg, sig)
}

// SignEncryptionKey signs the canonical encoding of key with kp
func SignEncryptionKey(signer AgentID, kp SignatureKeypair, key EncryptionKey) (SignedEncryptionKey, error) {
	sig, err := kp.Sign(key.SigningBytes())
	if err != nil {
		return SignedEncryptionKey{}, err
	}
	return SignedEncryptionKey{
		Body:      EncryptionKey{ID: key.ID, Kind: key.Kind, Public: bytes.Clone(key.Public)},
		Signer:    signer,
		Signature: sig,
	}, nil
}

// validEd25519Point reports whether b decodes to a curve point other than
// the identity and is that point's canonical encoding. SetBytes alone
// accepts y coordinates at or above the field prime.
func validEd25519Point(b []byte) bool {
	point, err := new(edwards25519.Point).SetBytes(b)
	if err != nil || point.Equal(edwards25519.NewIdentityPoint()) == 1 {
		return false
	}
	return bytes.Equal(point.Bytes(), b)
}

// VerifySignedEncryptionKey applies the trust-chain rule: the key must be
// signed by agent, and the signature must verify against the agent's
// registered verification key.
func VerifySignedEncryptionKey(agent Agent, sek SignedEncryptionKey) bool {
	if sek.Signer != agent.ID {
		return false
	}
	return Verify(agent.VerificationKey, sek.Body.SigningBytes(), sek.Signature)
}
