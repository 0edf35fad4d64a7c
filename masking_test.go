package sda

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// clerkShares runs every committee member over the fragments addressed to it
// and returns the resulting shares in committee order.
func clerkShares(t *testing.T, scheme *Scheme, committee []Recipient, clerks map[AgentID]testClerk, contributions [][]EncryptedShare) []Share {
	t.Helper()
	shares := make([]Share, len(committee))
	for i, member := range committee {
		var fragments []EncryptedShare
		for _, fragmentsOf := range contributions {
			require.Equal(t, member.Agent.ID, fragmentsOf[i].Recipient)
			fragments = append(fragments, fragmentsOf[i])
		}
		c := clerks[member.Agent.ID]
		clerk, err := c.module.NewClerk(scheme, c.key)
		require.NoError(t, err)
		shares[i], err = clerk.Combine(fragments)
		require.NoError(t, err)
	}
	return shares
}

func TestMaskingConcreteScenario(t *testing.T) {
	scheme := NewShamirScheme(97, 2, 3)
	committee, clerks := newTestCommittee(t, scheme, SignatureEd25519)

	masker, err := NewSecretMasker(scheme, committee)
	require.NoError(t, err)
	masker = masker.WithRand(testRand(50))

	masked1, fragments1, err := masker.maskWith(10, 5)
	require.NoError(t, err)
	masked2, fragments2, err := masker.maskWith(20, 8)
	require.NoError(t, err)
	require.Equal(t, MaskedSecret(15), masked1)
	require.Equal(t, MaskedSecret(28), masked2)
	require.Len(t, fragments1, 3)

	sum, err := SumMaskedSecrets(scheme, []MaskedSecret{masked1, masked2})
	require.NoError(t, err)
	require.Equal(t, MaskedSecret(43), sum)

	shares := clerkShares(t, scheme, committee, clerks, [][]EncryptedShare{fragments1, fragments2})

	combiner, err := NewMaskCombiner(scheme)
	require.NoError(t, err)
	require.NoError(t, combiner.Add(shares[2]))
	require.False(t, combiner.Ready())
	_, err = combiner.Combine()
	require.ErrorIs(t, err, ErrInsufficientShares)

	require.NoError(t, combiner.Add(shares[0]))
	require.True(t, combiner.Ready())
	mask, err := combiner.Combine()
	require.NoError(t, err)
	require.Equal(t, Mask(13), mask)

	unmasker, err := NewSecretUnmasker(scheme)
	require.NoError(t, err)
	require.Equal(t, Secret(30), unmasker.Unmask(sum, mask))
}

func TestMaskingAggregation(t *testing.T) {
	schemes := []*Scheme{
		NewShamirScheme(2147483647, 3, 5),
		NewAdditiveScheme(1<<40, 4),
		{Sharing: SharingShamir, Modulus: 2147483647, Threshold: 2, ShareCount: 3, Encryption: EncryptionSecp256k1},
	}
	secrets := []Secret{1000, 2345, 17, 0}

	for _, scheme := range schemes {
		for _, kind := range signatureKinds {
			t.Run(fmt.Sprintf("%s/%s/%s", scheme.Sharing, scheme.Encryption, kind), func(t *testing.T) {
				committee, clerks := newTestCommittee(t, scheme, kind)

				var (
					masked        []MaskedSecret
					contributions [][]EncryptedShare
				)
				for i, secret := range secrets {
					masker, err := NewSecretMasker(scheme, committee)
					require.NoError(t, err)
					value, fragments, err := masker.WithRand(testRand(byte(60 + i))).Mask(secret)
					require.NoError(t, err)
					masked = append(masked, value)
					contributions = append(contributions, fragments)
				}

				sum, err := SumMaskedSecrets(scheme, masked)
				require.NoError(t, err)

				shares := clerkShares(t, scheme, committee, clerks, contributions)
				mask, err := CombineMask(scheme, shares[len(shares)-scheme.Threshold:])
				require.NoError(t, err)

				unmasker, err := NewSecretUnmasker(scheme)
				require.NoError(t, err)
				require.Equal(t, Secret(3362), unmasker.Unmask(sum, mask))
			})
		}
	}
}

func TestSecretMaskerRejectsCommittee(t *testing.T) {
	scheme := NewShamirScheme(97, 2, 3)
	committee, _ := newTestCommittee(t, scheme, SignatureEd25519)

	t.Run("WrongSize", func(t *testing.T) {
		_, err := NewSecretMasker(scheme, committee[:2])
		require.ErrorIs(t, err, ErrSchemeMismatch)
	})

	t.Run("DuplicateAgent", func(t *testing.T) {
		_, err := NewSecretMasker(scheme, []Recipient{committee[0], committee[1], committee[0]})
		require.ErrorIs(t, err, ErrSchemeMismatch)
	})

	t.Run("UntrustedKey", func(t *testing.T) {
		forged := append([]Recipient(nil), committee...)
		// member 2 claims member 1's key
		forged[2] = Recipient{Agent: committee[2].Agent, Key: committee[1].Key}
		_, err := NewSecretMasker(scheme, forged)
		require.ErrorIs(t, err, ErrUntrustedKey)
	})

	t.Run("UnsuitableKey", func(t *testing.T) {
		secp := *scheme
		secp.Encryption = EncryptionSecp256k1
		_, err := NewSecretMasker(&secp, committee)
		require.ErrorIs(t, err, ErrSchemeMismatch)
	})

	t.Run("InvalidScheme", func(t *testing.T) {
		_, err := NewSecretMasker(NewShamirScheme(97, 4, 3), committee)
		require.ErrorIs(t, err, ErrInvalidThreshold)
	})

	t.Run("RandomnessUnavailable", func(t *testing.T) {
		masker, err := NewSecretMasker(scheme, committee)
		require.NoError(t, err)
		_, _, err = masker.WithRand(failingReader{}).Mask(1)
		require.ErrorIs(t, err, ErrRandomnessUnavailable)
		require.True(t, IsRetriable(err))
	})
}

func TestClerkRejectsFragments(t *testing.T) {
	scheme := NewShamirScheme(97, 2, 3)
	committee, clerks := newTestCommittee(t, scheme, SignatureEd25519)
	masker, err := NewSecretMasker(scheme, committee)
	require.NoError(t, err)
	_, fragments, err := masker.Mask(3)
	require.NoError(t, err)

	member := clerks[committee[0].Agent.ID]
	audit := &recordingAuditHandler{}
	clerk, err := member.module.WithAuditHandler(audit).NewClerk(scheme, member.key)
	require.NoError(t, err)

	t.Run("Empty", func(t *testing.T) {
		_, err := clerk.Combine(nil)
		require.ErrorIs(t, err, ErrInsufficientShares)
	})

	t.Run("AddressedElsewhere", func(t *testing.T) {
		_, err := clerk.Combine([]EncryptedShare{fragments[0], fragments[1]})
		require.ErrorIs(t, err, ErrDecryptionFailed)
	})

	t.Run("Tampered", func(t *testing.T) {
		tampered := fragments[0]
		tampered.Ciphertext = append([]byte(nil), fragments[0].Ciphertext...)
		tampered.Ciphertext[len(tampered.Ciphertext)-1] ^= 0x80
		_, err := clerk.Combine([]EncryptedShare{tampered})
		require.ErrorIs(t, err, ErrDecryptionFailed)
		require.Len(t, audit.errors, 1)
		require.Equal(t, AuditEventDecryptionFailure, audit.errors[0].EventType)
	})

	t.Run("OtherScheme", func(t *testing.T) {
		other := NewShamirScheme(101, 2, 3)
		otherClerk, err := member.module.NewClerk(other, member.key)
		require.NoError(t, err)
		_, err = otherClerk.Combine(fragments[:1])
		require.ErrorIs(t, err, ErrSchemeMismatch)
	})

	t.Run("UnsuitableKey", func(t *testing.T) {
		secp := *scheme
		secp.Encryption = EncryptionSecp256k1
		_, err := member.module.NewClerk(&secp, member.key)
		require.ErrorIs(t, err, ErrSchemeMismatch)
	})

	share, err := clerk.Combine(fragments[:1])
	require.NoError(t, err)
	require.Equal(t, uint32(1), share.Index)
}

func TestMaskCombinerValidation(t *testing.T) {
	scheme := NewShamirScheme(97, 2, 3)
	generator, err := NewShareGenerator(scheme)
	require.NoError(t, err)
	shares, err := generator.GenerateShares(13)
	require.NoError(t, err)

	combiner, err := NewMaskCombiner(scheme)
	require.NoError(t, err)
	require.NoError(t, combiner.Add(shares[1]))
	require.ErrorIs(t, combiner.Add(shares[1]), ErrDuplicateShareIndex)
	require.Equal(t, 1, combiner.Len())

	foreign := shares[0]
	foreign.SchemeID = NewShamirScheme(101, 2, 3).ID()
	require.ErrorIs(t, combiner.Add(foreign), ErrSchemeMismatch)

	_, err = CombineMask(scheme, []Share{shares[0], shares[0]})
	require.ErrorIs(t, err, ErrDuplicateShareIndex)

	mask, err := CombineMask(scheme, shares)
	require.NoError(t, err)
	require.Equal(t, Mask(13), mask)

	t.Run("SetAuditHandler", func(t *testing.T) {
		audit := &recordingAuditHandler{}
		combiner.SetAuditHandler(audit)
		require.NoError(t, combiner.Add(shares[2]))

		mask, err := combiner.Combine()
		require.NoError(t, err)
		require.Equal(t, Mask(13), mask)
		require.Equal(t, []AuditEventType{AuditEventMaskCombination}, audit.sharingTypes())
	})
}

func TestSumMaskedSecrets(t *testing.T) {
	scheme := NewShamirScheme(97, 2, 3)

	sum, err := SumMaskedSecrets(scheme, []MaskedSecret{90, 10, 5})
	require.NoError(t, err)
	require.Equal(t, MaskedSecret(8), sum)

	sum, err = SumMaskedSecrets(scheme, nil)
	require.NoError(t, err)
	require.Zero(t, sum)

	_, err = SumMaskedSecrets(scheme, []MaskedSecret{97})
	require.ErrorIs(t, err, ErrSchemeMismatch)
	_, err = SumMaskedSecrets(scheme, []MaskedSecret{-1})
	require.ErrorIs(t, err, ErrSchemeMismatch)

	unmasker, err := NewSecretUnmasker(scheme)
	require.NoError(t, err)
	require.Equal(t, Secret(95), unmasker.Unmask(3, 5))
}
