package sda

import (
	"encoding/binary"
	"io"
	"math/bits"
)

// Ring is the ring of integers modulo Modulus. Every value produced by a Ring
// method lies in [0, Modulus).
type Ring struct {
	Modulus int64
}

// NewRing creates a ring for the given modulus
func NewRing(modulus int64) (Ring, error) {
	if modulus < 2 {
		return Ring{}, ErrInvalidScheme.WithDetails("modulus %d must be at least 2", modulus)
	}
	return Ring{Modulus: modulus}, nil
}

// Contains reports whether v is a canonical ring element
func (r Ring) Contains(v int64) bool {
	return v >= 0 && v < r.Modulus
}

// Reduce maps any int64 into [0, Modulus)
func (r Ring) Reduce(v int64) int64 {
	v %= r.Modulus
	if v < 0 {
		v += r.Modulus
	}
	return v
}

// Add returns a + b mod M without overflowing int64
func (r Ring) Add(a, b int64) int64 {
	a, b = r.Reduce(a), r.Reduce(b)
	// a, b < M <= 2^63-1, so the sum fits in a uint64
	s := uint64(a) + uint64(b)
	m := uint64(r.Modulus)
	if s >= m {
		s -= m
	}
	return int64(s)
}

// Sub returns a - b mod M
func (r Ring) Sub(a, b int64) int64 {
	return r.Add(a, r.Neg(b))
}

// Neg returns -a mod M
func (r Ring) Neg(a int64) int64 {
	a = r.Reduce(a)
	if a == 0 {
		return 0
	}
	return r.Modulus - a
}

// Mul returns a * b mod M using a 128-bit intermediate product
func (r Ring) Mul(a, b int64) int64 {
	a, b = r.Reduce(a), r.Reduce(b)
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	// hi < M holds because a, b < M, so Rem64 cannot panic
	return int64(bits.Rem64(hi, lo, uint64(r.Modulus)))
}

// Inv returns the multiplicative inverse of a, if it exists
func (r Ring) Inv(a int64) (int64, error) {
	a = r.Reduce(a)
	if a == 0 {
		return 0, ErrNotInvertible
	}

	// Extended Euclid on (a, M); coefficients are tracked modulo M through Ring
	// arithmetic so they never overflow.
	oldR, cur := r.Modulus, a
	oldS, s := int64(0), int64(1)
	for cur != 0 {
		q := oldR / cur
		oldR, cur = cur, oldR-q*cur
		oldS, s = s, r.Sub(oldS, r.Mul(q, s))
	}
	if oldR != 1 {
		return 0, ErrNotInvertible
	}
	return r.Reduce(oldS), nil
}

// Sum adds all values mod M
func (r Ring) Sum(values ...int64) int64 {
	var acc int64
	for _, v := range values {
		acc = r.Add(acc, v)
	}
	return acc
}

// Random draws a uniform ring element from rand by rejection sampling
func (r Ring) Random(rand io.Reader) (int64, error) {
	m := uint64(r.Modulus)
	// Largest multiple of M that fits in 64 bits; values at or above it are
	// rejected to keep the distribution unbiased.
	limit := (^uint64(0) / m) * m

	buf := make([]byte, 8)
	defer clear(buf)
	for {
		if _, err := io.ReadFull(rand, buf); err != nil {
			return 0, ErrRandomnessUnavailable.WithCause(err)
		}
		v := binary.BigEndian.Uint64(buf)
		if v < limit {
			return int64(v % m), nil
		}
	}
}
