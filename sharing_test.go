package sda

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShamirConcreteScenario(t *testing.T) {
	scheme := NewShamirScheme(97, 2, 3)
	sss, err := NewShamirSecretSharing(scheme)
	require.NoError(t, err)

	shares, err := sss.WithRand(testRand(2)).GenerateShares(42)
	require.NoError(t, err)
	require.Len(t, shares, 3)
	for i, share := range shares {
		require.Equal(t, uint32(i+1), share.Index)
		require.True(t, share.SuitableFor(scheme))
	}

	v, err := sss.Combine([]Share{shares[0], shares[2]})
	require.NoError(t, err)
	require.Equal(t, int64(42), v)

	_, err = sss.Combine([]Share{shares[1]})
	require.ErrorIs(t, err, ErrInsufficientShares)
}

func TestShamirRoundTrip(t *testing.T) {
	const modulus = 2147483647
	rand := testRand(3)

	for n := 1; n <= 32; n += 3 {
		for _, t0 := range []int{1, (n + 1) / 2, n} {
			scheme := NewShamirScheme(modulus, t0, n)
			t.Run(fmt.Sprintf("t=%d,n=%d", t0, n), func(t *testing.T) {
				sss, err := NewShamirSecretSharing(scheme)
				require.NoError(t, err)
				sss = sss.WithRand(rand)

				value, err := scheme.Ring().Random(rand)
				require.NoError(t, err)
				shares, err := sss.GenerateShares(value)
				require.NoError(t, err)

				// every window of t consecutive shares reconstructs
				for start := 0; start+t0 <= n; start++ {
					got, err := sss.Combine(shares[start : start+t0])
					require.NoError(t, err)
					require.Equal(t, value, got)
				}

				// all n shares reconstruct as well
				got, err := sss.Combine(shares)
				require.NoError(t, err)
				require.Equal(t, value, got)

				if t0 > 1 {
					_, err = sss.Combine(shares[:t0-1])
					require.ErrorIs(t, err, ErrInsufficientShares)
				}
			})
		}
	}
}

func TestShamirRejectsMalformedInput(t *testing.T) {
	scheme := NewShamirScheme(97, 2, 3)
	sss, err := NewShamirSecretSharing(scheme)
	require.NoError(t, err)
	shares, err := sss.GenerateShares(7)
	require.NoError(t, err)

	t.Run("DuplicateIndex", func(t *testing.T) {
		_, err := sss.Combine([]Share{shares[0], shares[0]})
		require.ErrorIs(t, err, ErrDuplicateShareIndex)
	})

	t.Run("IndexOutOfRange", func(t *testing.T) {
		bad := shares[0]
		bad.Index = 4
		_, err := sss.Combine([]Share{bad, shares[1]})
		require.ErrorIs(t, err, ErrSchemeMismatch)

		bad.Index = 0
		_, err = sss.Combine([]Share{bad, shares[1]})
		require.ErrorIs(t, err, ErrSchemeMismatch)
	})

	t.Run("ValueOutsideRing", func(t *testing.T) {
		bad := shares[0]
		bad.Value = 97
		_, err := sss.Combine([]Share{bad, shares[1]})
		require.ErrorIs(t, err, ErrSchemeMismatch)
	})

	t.Run("WrongSharingKind", func(t *testing.T) {
		_, err := NewShamirSecretSharing(NewAdditiveScheme(97, 3))
		require.ErrorIs(t, err, ErrSchemeMismatch)
	})
}

func TestSchemeIsolation(t *testing.T) {
	schemeA := NewShamirScheme(97, 2, 3)
	schemeB := NewShamirScheme(101, 2, 3)

	generator, err := NewShareGenerator(schemeA)
	require.NoError(t, err)
	shares, err := generator.GenerateShares(42)
	require.NoError(t, err)

	combiner, err := NewShareCombiner(schemeB)
	require.NoError(t, err)
	v, err := combiner.Combine(shares)
	require.ErrorIs(t, err, ErrSchemeMismatch)
	require.Zero(t, v)

	t.Run("SameModulusDifferentThreshold", func(t *testing.T) {
		combiner, err := NewShareCombiner(NewShamirScheme(97, 3, 3))
		require.NoError(t, err)
		_, err = combiner.Combine(shares)
		require.ErrorIs(t, err, ErrSchemeMismatch)
	})

	t.Run("SharingKind", func(t *testing.T) {
		additive := NewAdditiveScheme(97, 3)
		combiner, err := NewShareCombiner(additive)
		require.NoError(t, err)
		_, err = combiner.Combine(shares)
		require.ErrorIs(t, err, ErrSchemeMismatch)
	})
}

func TestAdditiveSharing(t *testing.T) {
	scheme := NewAdditiveScheme(1000, 4)
	ass, err := NewAdditiveSecretSharing(scheme)
	require.NoError(t, err)
	ass = ass.WithRand(testRand(4))

	shares, err := ass.GenerateShares(-5)
	require.NoError(t, err)
	require.Len(t, shares, 4)

	v, err := ass.Combine(shares)
	require.NoError(t, err)
	require.Equal(t, int64(995), v)

	_, err = ass.Combine(shares[:3])
	require.ErrorIs(t, err, ErrInsufficientShares)

	_, err = ass.WithRand(failingReader{}).GenerateShares(1)
	require.ErrorIs(t, err, ErrRandomnessUnavailable)
}

func TestInvalidThreshold(t *testing.T) {
	for _, scheme := range []*Scheme{
		NewShamirScheme(97, 0, 3),
		NewShamirScheme(97, 4, 3),
		NewShamirScheme(97, 1, 0),
		{Sharing: SharingAdditive, Modulus: 97, Threshold: 2, ShareCount: 3, Encryption: EncryptionX25519},
	} {
		_, err := NewShareGenerator(scheme)
		require.ErrorIs(t, err, ErrInvalidThreshold, "scheme %+v", *scheme)
		require.False(t, IsRetriable(err))
	}
}

func TestSecretReconstructor(t *testing.T) {
	scheme := NewShamirScheme(97, 3, 5)
	generator, err := NewShareGenerator(scheme)
	require.NoError(t, err)
	shares, err := generator.GenerateShares(13)
	require.NoError(t, err)

	sr, err := NewSecretReconstructor(scheme)
	require.NoError(t, err)

	secret, err := sr.ReconstructSecret([]Share{shares[4], shares[0], shares[2]})
	require.NoError(t, err)
	require.Equal(t, Secret(13), secret)

	mask, err := sr.ReconstructMask(shares[1:4])
	require.NoError(t, err)
	require.Equal(t, Mask(13), mask)
}

func TestSumShares(t *testing.T) {
	scheme := NewShamirScheme(97, 2, 3)
	generator, err := NewShareGenerator(scheme)
	require.NoError(t, err)

	a, err := generator.GenerateShares(40)
	require.NoError(t, err)
	b, err := generator.GenerateShares(70)
	require.NoError(t, err)

	// each index holder sums locally; the sums are shares of 40 + 70
	sums := make([]Share, 3)
	for i := range sums {
		sums[i], err = SumShares(scheme, []Share{a[i], b[i]})
		require.NoError(t, err)
	}

	combiner, err := NewShareCombiner(scheme)
	require.NoError(t, err)
	v, err := combiner.Combine(sums[1:])
	require.NoError(t, err)
	require.Equal(t, int64(13), v)

	_, err = SumShares(scheme, []Share{a[0], b[1]})
	require.ErrorIs(t, err, ErrSchemeMismatch)

	_, err = SumShares(scheme, nil)
	require.ErrorIs(t, err, ErrInsufficientShares)
}

func TestShareBinaryEncoding(t *testing.T) {
	scheme := NewShamirScheme(2147483647, 2, 3)
	share := Share{Index: 3, Value: 1234567890, SchemeID: scheme.ID()}

	data, err := share.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, encodedShareSize)

	var decoded Share
	require.NoError(t, decoded.UnmarshalBinary(data))
	require.Equal(t, share, decoded)

	require.Error(t, decoded.UnmarshalBinary(data[:10]))

	_, err = Share{Index: 1, SchemeID: "zz"}.MarshalBinary()
	require.ErrorIs(t, err, ErrSchemeMismatch)

	require.NotContains(t, share.String(), "1234567890")
}

func TestPolynomial(t *testing.T) {
	r := Ring{Modulus: 97}
	p, err := NewRandomPolynomial(r, 2, 42, testRand(5))
	require.NoError(t, err)
	require.Equal(t, 2, p.Degree())
	require.Equal(t, int64(42), p.Evaluate(0))

	p.Zeroize()
	require.Equal(t, int64(0), p.Evaluate(5))
}
