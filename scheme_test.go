package sda

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSchemeValidate(t *testing.T) {
	valid := []*Scheme{
		NewShamirScheme(97, 2, 3),
		NewShamirScheme(2147483647, 1, 1),
		NewAdditiveScheme(1<<40, 5),
		{Sharing: SharingShamir, Modulus: 257, Threshold: 3, ShareCount: 5, Encryption: EncryptionSecp256k1},
	}
	for _, scheme := range valid {
		require.NoError(t, scheme.Validate(), "scheme %+v", *scheme)
	}

	invalid := map[string]*Scheme{
		"composite shamir modulus": NewShamirScheme(100, 2, 3),
		"modulus not above n":      NewShamirScheme(3, 2, 3),
		"modulus too small":        NewAdditiveScheme(1, 2),
		"unknown sharing":          {Sharing: "xor", Modulus: 97, Threshold: 1, ShareCount: 1, Encryption: EncryptionX25519},
		"unknown encryption":       {Sharing: SharingShamir, Modulus: 97, Threshold: 1, ShareCount: 1, Encryption: "rot13"},
		"nil":                      nil,
	}
	for name, scheme := range invalid {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, scheme.Validate(), ErrInvalidScheme)
		})
	}

	require.ErrorIs(t, NewShamirScheme(97, 2, MaxShareCount+1).Validate(), ErrInvalidThreshold)
}

func TestSchemeID(t *testing.T) {
	a := NewShamirScheme(97, 2, 3)
	b := NewShamirScheme(97, 2, 3)
	require.Equal(t, a.ID(), b.ID())
	require.Len(t, a.ID(), 32)

	variants := []*Scheme{
		NewShamirScheme(101, 2, 3),
		NewShamirScheme(97, 3, 3),
		NewShamirScheme(97, 2, 4),
		NewAdditiveScheme(97, 3),
		{Sharing: SharingShamir, Modulus: 97, Threshold: 2, ShareCount: 3, Encryption: EncryptionSecp256k1},
	}
	seen := map[string]bool{a.ID(): true}
	for _, v := range variants {
		require.False(t, seen[v.ID()], "scheme %+v collides", *v)
		seen[v.ID()] = true
		require.False(t, a.SuitableFor(v))
	}
	require.True(t, a.SuitableFor(b))
	require.False(t, a.SuitableFor(nil))
}

func TestSuitablePredicate(t *testing.T) {
	scheme := NewShamirScheme(97, 2, 3)
	kp, err := EncryptionKeyGenerator{Kind: EncryptionX25519, Rand: testRand(6)}.NewKey()
	require.NoError(t, err)
	key := kp.PublicKey(EncryptionKeyID{1})

	// every operand type implements the same predicate
	operands := []Suitable[*Scheme]{
		Share{Index: 1, Value: 5, SchemeID: scheme.ID()},
		key,
		kp,
		NewShamirScheme(97, 2, 3),
	}
	for _, operand := range operands {
		require.True(t, operand.SuitableFor(scheme), "%T", operand)
	}

	t.Run("ModulusMismatch", func(t *testing.T) {
		other := NewShamirScheme(101, 2, 3)
		require.False(t, operands[0].SuitableFor(other))
		require.False(t, operands[3].SuitableFor(other))

		// keys carry no modulus and only bind the encryption kind
		require.True(t, key.SuitableFor(other))
		require.True(t, kp.SuitableFor(other))
	})

	t.Run("KeyKindMismatch", func(t *testing.T) {
		other := *scheme
		other.Encryption = EncryptionSecp256k1
		require.False(t, key.SuitableFor(&other))
	})

	t.Run("MalformedKey", func(t *testing.T) {
		bad := key
		bad.Public = bad.Public[:10]
		require.False(t, bad.SuitableFor(scheme))
	})
}

func TestAssessScheme(t *testing.T) {
	t.Run("Majority", func(t *testing.T) {
		result := AssessScheme(NewShamirScheme(2147483647, 3, 5))
		require.True(t, result.Valid)
		require.Equal(t, SecurityLevelHigh, result.SecurityLevel)
		require.Equal(t, 2, result.FaultTolerance)
		require.Equal(t, 3, result.CollusionBound)
	})

	t.Run("SingleClerk", func(t *testing.T) {
		result := AssessScheme(NewShamirScheme(2147483647, 1, 5))
		require.True(t, result.Valid)
		require.Equal(t, SecurityLevelLow, result.SecurityLevel)
		require.NotEmpty(t, result.Warnings)
	})

	t.Run("NoFaultTolerance", func(t *testing.T) {
		result := AssessScheme(NewAdditiveScheme(1<<40, 4))
		require.True(t, result.Valid)
		require.Zero(t, result.FaultTolerance)
		require.Contains(t, result.Warnings, "threshold equals committee size - no fault tolerance")
	})

	t.Run("SmallModulus", func(t *testing.T) {
		result := AssessScheme(NewShamirScheme(97, 2, 3))
		require.True(t, result.Valid)
		require.NotEmpty(t, result.Warnings)
	})

	t.Run("Invalid", func(t *testing.T) {
		result := AssessScheme(NewShamirScheme(100, 2, 3))
		require.False(t, result.Valid)
		require.NotEmpty(t, result.Errors)
	})
}
