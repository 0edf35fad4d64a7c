package sda

import (
	"crypto/rand"
	"io"
)

// AdditiveSecretSharing implements n-of-n additive sharing: the shares are
// uniform ring elements summing to the value.
type AdditiveSecretSharing struct {
	scheme   Scheme
	schemeID string
	ring     Ring
	rand     io.Reader
}

// NewAdditiveSecretSharing creates a new additive sharing instance
func NewAdditiveSecretSharing(scheme *Scheme) (*AdditiveSecretSharing, error) {
	if err := scheme.Validate(); err != nil {
		return nil, err
	}
	if scheme.Sharing != SharingAdditive {
		return nil, ErrSchemeMismatch.WithDetails("scheme uses %s sharing", scheme.Sharing)
	}
	return &AdditiveSecretSharing{
		scheme:   *scheme,
		schemeID: scheme.ID(),
		ring:     scheme.Ring(),
		rand:     rand.Reader,
	}, nil
}

// WithRand returns a copy drawing shares from r
func (ass *AdditiveSecretSharing) WithRand(r io.Reader) *AdditiveSecretSharing {
	c := *ass
	c.rand = r
	return &c
}

// GenerateShares splits value into n shares that sum to it
func (ass *AdditiveSecretSharing) GenerateShares(value int64) ([]Share, error) {
	n := ass.scheme.ShareCount
	shares := make([]Share, n)
	last := ass.ring.Reduce(value)
	for i := 0; i < n-1; i++ {
		v, err := ass.ring.Random(ass.rand)
		if err != nil {
			clear(shares)
			return nil, err
		}
		shares[i] = Share{Index: uint32(i + 1), Value: v, SchemeID: ass.schemeID}
		last = ass.ring.Sub(last, v)
	}
	shares[n-1] = Share{Index: uint32(n), Value: last, SchemeID: ass.schemeID}
	return shares, nil
}

// Combine sums all n shares
func (ass *AdditiveSecretSharing) Combine(shares []Share) (int64, error) {
	selected, err := selectShares(&ass.scheme, ass.schemeID, shares)
	if err != nil {
		return 0, err
	}
	var sum int64
	for _, share := range selected {
		sum = ass.ring.Add(sum, share.Value)
	}
	return sum, nil
}
