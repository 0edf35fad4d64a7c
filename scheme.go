package sda

import (
	"encoding/binary"
	"encoding/hex"
	"io"
	"math/big"

	"golang.org/x/crypto/blake2b"
)

// SharingKind selects the linear secret sharing construction of a scheme
type SharingKind string

const (
	// SharingShamir is (t, n) polynomial sharing over a prime field
	SharingShamir SharingKind = "shamir"
	// SharingAdditive is n-of-n additive sharing over any modulus
	SharingAdditive SharingKind = "additive"
)

// MaxShareCount bounds the committee size; share indices are encoded as uint32
// but larger committees make Lagrange reconstruction needlessly slow.
const MaxShareCount = 255

// Suitable is implemented by anything that must be checked against a scheme
// before it is combined with material governed by that scheme.
type Suitable[S any] interface {
	SuitableFor(scheme S) bool
}

// Scheme is the parameter set governing compatibility of shares, masks and
// keys. It is always passed explicitly to engine constructors.
type Scheme struct {
	Sharing    SharingKind    `json:"sharing"`
	Modulus    int64          `json:"modulus"`
	Threshold  int            `json:"threshold"`
	ShareCount int            `json:"share_count"`
	Encryption EncryptionKind `json:"encryption"`
}

// NewShamirScheme creates a Shamir scheme with x25519 encryption
func NewShamirScheme(modulus int64, threshold, shareCount int) *Scheme {
	return &Scheme{
		Sharing:    SharingShamir,
		Modulus:    modulus,
		Threshold:  threshold,
		ShareCount: shareCount,
		Encryption: EncryptionX25519,
	}
}

// NewAdditiveScheme creates an n-of-n additive scheme with x25519 encryption
func NewAdditiveScheme(modulus int64, shareCount int) *Scheme {
	return &Scheme{
		Sharing:    SharingAdditive,
		Modulus:    modulus,
		Threshold:  shareCount,
		ShareCount: shareCount,
		Encryption: EncryptionX25519,
	}
}

// Ring returns the ring defined by the scheme modulus
func (s *Scheme) Ring() Ring {
	return Ring{Modulus: s.Modulus}
}

// Validate checks the scheme parameters
func (s *Scheme) Validate() error {
	if s == nil {
		return ErrInvalidScheme.WithDetails("nil scheme")
	}
	if s.Modulus < 2 {
		return ErrInvalidScheme.WithDetails("modulus %d must be at least 2", s.Modulus)
	}
	if s.ShareCount < 1 || s.ShareCount > MaxShareCount {
		return ErrInvalidThreshold.WithDetails("share count %d outside [1, %d]", s.ShareCount, MaxShareCount)
	}
	if s.Threshold < 1 || s.Threshold > s.ShareCount {
		return ErrInvalidThreshold.WithDetails("threshold %d outside [1, %d]", s.Threshold, s.ShareCount)
	}

	switch s.Sharing {
	case SharingShamir:
		// share indices 1..n must be distinct non-zero field elements and their
		// differences invertible
		if s.Modulus <= int64(s.ShareCount) {
			return ErrInvalidScheme.WithDetails("modulus %d must exceed share count %d", s.Modulus, s.ShareCount)
		}
		if !big.NewInt(s.Modulus).ProbablyPrime(32) {
			return ErrInvalidScheme.WithDetails("shamir sharing requires a prime modulus, got %d", s.Modulus)
		}
	case SharingAdditive:
		if s.Threshold != s.ShareCount {
			return ErrInvalidThreshold.WithDetails("additive sharing requires threshold == share count (%d != %d)", s.Threshold, s.ShareCount)
		}
	default:
		return ErrInvalidScheme.WithDetails("unknown sharing kind %q", s.Sharing)
	}

	if _, err := lookupEncryptionSuite(s.Encryption); err != nil {
		return ErrInvalidScheme.WithDetails("unknown encryption kind %q", s.Encryption)
	}
	return nil
}

// ID returns the scheme fingerprint: a 16-byte BLAKE2b digest of the
// canonical parameter encoding. Equal parameters always give equal ids.
func (s *Scheme) ID() string {
	hasher, err := blake2b.New(16, nil)
	if err != nil {
		// only fails for invalid sizes or keys
		panic(err)
	}
	hasher.Write([]byte("SDA_SCHEME_v1"))
	writeLengthPrefixed(hasher, []byte(s.Sharing))
	writeLengthPrefixed(hasher, []byte(s.Encryption))

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(s.Modulus))
	hasher.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(s.Threshold))
	hasher.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(s.ShareCount))
	hasher.Write(buf[:])

	return hex.EncodeToString(hasher.Sum(nil))
}

// SuitableFor reports whether two schemes are interchangeable: every
// parameter must match exactly.
func (s *Scheme) SuitableFor(other *Scheme) bool {
	if s == nil || other == nil {
		return false
	}
	return *s == *other
}

func writeLengthPrefixed(w io.Writer, data []byte) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(data)))
	w.Write(length[:])
	w.Write(data)
}
