package sda

import (
	"io"
	"sort"
)

// Secret is a contributor's private input, an element of the scheme ring
type Secret int64

// Mask is a random blinding value, freshly drawn per contribution
type Mask int64

// MaskedSecret is Secret + Mask mod M
type MaskedSecret int64

// ShareGenerator splits a value into ShareCount shares
type ShareGenerator interface {
	GenerateShares(value int64) ([]Share, error)
}

// ShareCombiner recovers the shared value from at least Threshold distinct shares
type ShareCombiner interface {
	Combine(shares []Share) (int64, error)
}

// linearSharing is implemented by both sharing constructions
type linearSharing interface {
	ShareGenerator
	ShareCombiner
}

func newLinearSharing(scheme *Scheme, rand io.Reader) (linearSharing, error) {
	if err := scheme.Validate(); err != nil {
		return nil, err
	}
	switch scheme.Sharing {
	case SharingShamir:
		sss, err := NewShamirSecretSharing(scheme)
		if err != nil {
			return nil, err
		}
		if rand != nil {
			sss = sss.WithRand(rand)
		}
		return sss, nil
	case SharingAdditive:
		ass, err := NewAdditiveSecretSharing(scheme)
		if err != nil {
			return nil, err
		}
		if rand != nil {
			ass = ass.WithRand(rand)
		}
		return ass, nil
	default:
		return nil, ErrInvalidScheme.WithDetails("unknown sharing kind %q", scheme.Sharing)
	}
}

// NewShareGenerator returns the share generator for the scheme's sharing kind
func NewShareGenerator(scheme *Scheme) (ShareGenerator, error) {
	return newLinearSharing(scheme, nil)
}

// NewShareCombiner returns the share combiner for the scheme's sharing kind
func NewShareCombiner(scheme *Scheme) (ShareCombiner, error) {
	return newLinearSharing(scheme, nil)
}

// SecretReconstructor types the combiner output according to the call site
type SecretReconstructor struct {
	combiner ShareCombiner
}

// NewSecretReconstructor creates a reconstructor for the scheme
func NewSecretReconstructor(scheme *Scheme) (*SecretReconstructor, error) {
	combiner, err := NewShareCombiner(scheme)
	if err != nil {
		return nil, err
	}
	return &SecretReconstructor{combiner: combiner}, nil
}

// ReconstructSecret combines shares of a secret
func (sr *SecretReconstructor) ReconstructSecret(shares []Share) (Secret, error) {
	v, err := sr.combiner.Combine(shares)
	if err != nil {
		return 0, err
	}
	return Secret(v), nil
}

// ReconstructMask combines shares of a mask
func (sr *SecretReconstructor) ReconstructMask(shares []Share) (Mask, error) {
	v, err := sr.combiner.Combine(shares)
	if err != nil {
		return 0, err
	}
	return Mask(v), nil
}

// SumShares adds same-index shares received from different contributors into
// a single share of the sum. Both sharing constructions are linear, so the
// result is a valid share of the sum of the shared values.
func SumShares(scheme *Scheme, shares []Share) (Share, error) {
	if err := scheme.Validate(); err != nil {
		return Share{}, err
	}
	if len(shares) == 0 {
		return Share{}, ErrInsufficientShares.WithDetails("no shares to sum")
	}

	ring := scheme.Ring()
	index := shares[0].Index
	sum := Share{Index: index, SchemeID: scheme.ID()}
	for _, share := range shares {
		if !share.SuitableFor(scheme) {
			return Share{}, ErrSchemeMismatch.WithContext("index", share.Index)
		}
		if share.Index != index {
			return Share{}, ErrSchemeMismatch.WithDetails("cannot sum shares at indices %d and %d", index, share.Index)
		}
		sum.Value = ring.Add(sum.Value, share.Value)
	}
	return sum, nil
}

// sortShares orders shares by index, which keeps reconstruction deterministic
func sortShares(shares []Share) {
	sort.Slice(shares, func(i, j int) bool { return shares[i].Index < shares[j].Index })
}
