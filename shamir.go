package sda

import (
	"crypto/rand"
	"io"
)

// ShamirSecretSharing implements Shamir's (t, n) secret sharing over the
// scheme's prime field.
type ShamirSecretSharing struct {
	scheme   Scheme
	schemeID string
	ring     Ring
	rand     io.Reader
}

// NewShamirSecretSharing creates a new Shamir secret sharing instance
func NewShamirSecretSharing(scheme *Scheme) (*ShamirSecretSharing, error) {
	if err := scheme.Validate(); err != nil {
		return nil, err
	}
	if scheme.Sharing != SharingShamir {
		return nil, ErrSchemeMismatch.WithDetails("scheme uses %s sharing", scheme.Sharing)
	}
	return &ShamirSecretSharing{
		scheme:   *scheme,
		schemeID: scheme.ID(),
		ring:     scheme.Ring(),
		rand:     rand.Reader,
	}, nil
}

// WithRand returns a copy drawing polynomial coefficients from r
func (sss *ShamirSecretSharing) WithRand(r io.Reader) *ShamirSecretSharing {
	c := *sss
	c.rand = r
	return &c
}

// GenerateShares splits value into n shares, any t of which reconstruct it
func (sss *ShamirSecretSharing) GenerateShares(value int64) ([]Share, error) {
	polynomial, err := NewRandomPolynomial(sss.ring, sss.scheme.Threshold-1, value, sss.rand)
	if err != nil {
		return nil, err
	}
	defer polynomial.Zeroize()

	// 1-based indices; x = 0 is the secret itself
	shares := make([]Share, sss.scheme.ShareCount)
	for i := range shares {
		index := uint32(i + 1)
		shares[i] = Share{
			Index:    index,
			Value:    polynomial.Evaluate(int64(index)),
			SchemeID: sss.schemeID,
		}
	}
	return shares, nil
}

// Combine reconstructs the shared value by Lagrange interpolation at x = 0
// over the first t distinct shares.
func (sss *ShamirSecretSharing) Combine(shares []Share) (int64, error) {
	selected, err := selectShares(&sss.scheme, sss.schemeID, shares)
	if err != nil {
		return 0, err
	}

	r := sss.ring
	var secret int64
	for i, share := range selected {
		numerator, denominator := int64(1), int64(1)
		xi := int64(share.Index)

		for j, other := range selected {
			if i == j {
				continue
			}
			xj := int64(other.Index)
			// numerator *= (0 - x_j), denominator *= (x_i - x_j)
			numerator = r.Mul(numerator, r.Neg(xj))
			denominator = r.Mul(denominator, r.Sub(xi, xj))
		}

		denomInv, err := r.Inv(denominator)
		if err != nil {
			return 0, ErrSchemeMismatch.WithCause(err).WithDetails("lagrange denominator not invertible")
		}

		coefficient := r.Mul(numerator, denomInv)
		secret = r.Add(secret, r.Mul(share.Value, coefficient))
	}
	return secret, nil
}

// selectShares validates shares against the scheme and returns the first
// threshold of them. Suitability is checked first, then duplicate indices,
// then the count.
func selectShares(scheme *Scheme, schemeID string, shares []Share) ([]Share, error) {
	seen := make(map[uint32]struct{}, len(shares))
	for _, share := range shares {
		if share.SchemeID != schemeID || !share.SuitableFor(scheme) {
			return nil, ErrSchemeMismatch.WithContext("index", share.Index)
		}
		if _, ok := seen[share.Index]; ok {
			return nil, ErrDuplicateShareIndex.WithContext("index", share.Index)
		}
		seen[share.Index] = struct{}{}
	}

	if len(shares) < scheme.Threshold {
		return nil, ErrInsufficientShares.WithDetails("need %d, got %d", scheme.Threshold, len(shares))
	}
	return shares[:scheme.Threshold], nil
}
