package sda

import (
	"crypto/rand"
	"io"
	"sync"
	"time"
)

// SecretMasker blinds secrets for the aggregator and distributes the mask to
// the committee as encrypted shares.
type SecretMasker struct {
	scheme     Scheme
	ring       Ring
	sharing    linearSharing
	recipients []maskRecipient
	rand       io.Reader
	audit      AuditEventHandler
}

type maskRecipient struct {
	agent     AgentID
	encryptor *Encryptor
}

// NewSecretMasker creates a masker for scheme whose fragment i is encrypted to
// recipients[i]. Every recipient key must verify against its agent and be
// suitable for the scheme, and there must be exactly ShareCount recipients.
func NewSecretMasker(scheme *Scheme, recipients []Recipient) (*SecretMasker, error) {
	sharing, err := newLinearSharing(scheme, nil)
	if err != nil {
		return nil, err
	}
	if len(recipients) != scheme.ShareCount {
		return nil, ErrSchemeMismatch.WithDetails("scheme needs %d recipients, got %d", scheme.ShareCount, len(recipients))
	}

	resolved := make([]maskRecipient, len(recipients))
	seen := make(map[AgentID]struct{}, len(recipients))
	for i, recipient := range recipients {
		if _, dup := seen[recipient.Agent.ID]; dup {
			return nil, ErrSchemeMismatch.WithDetails("agent %s appears twice in the committee", recipient.Agent.ID)
		}
		seen[recipient.Agent.ID] = struct{}{}

		if !VerifySignedEncryptionKey(recipient.Agent, recipient.Key) {
			return nil, ErrUntrustedKey.WithContext("agent", recipient.Agent.ID.String())
		}
		if !recipient.Key.Body.SuitableFor(scheme) {
			return nil, ErrSchemeMismatch.WithContext("encryption_key", recipient.Key.Body.ID.String())
		}
		encryptor, err := NewEncryptor(recipient.Key.Body)
		if err != nil {
			return nil, err
		}
		resolved[i] = maskRecipient{agent: recipient.Agent.ID, encryptor: encryptor}
	}

	return &SecretMasker{
		scheme:     *scheme,
		ring:       scheme.Ring(),
		sharing:    sharing,
		recipients: resolved,
		rand:       rand.Reader,
		audit:      &NullAuditHandler{},
	}, nil
}

// WithRand returns a copy drawing masks, shares and encryption randomness from r
func (sm *SecretMasker) WithRand(r io.Reader) *SecretMasker {
	c := *sm
	c.rand = r
	c.sharing, _ = newLinearSharing(&c.scheme, r)
	c.recipients = make([]maskRecipient, len(sm.recipients))
	for i, recipient := range sm.recipients {
		c.recipients[i] = maskRecipient{agent: recipient.agent, encryptor: recipient.encryptor.WithRand(r)}
	}
	return &c
}

// Mask draws a fresh mask, returns secret + mask and one encrypted mask share
// per committee member, in committee order.
func (sm *SecretMasker) Mask(secret Secret) (MaskedSecret, []EncryptedShare, error) {
	mask, err := sm.ring.Random(sm.rand)
	if err != nil {
		return 0, nil, err
	}
	return sm.maskWith(secret, Mask(mask))
}

// WithAuditHandler returns a copy reporting to handler
func (sm *SecretMasker) WithAuditHandler(handler AuditEventHandler) *SecretMasker {
	c := *sm
	c.audit = handler
	return &c
}

func (sm *SecretMasker) maskWith(secret Secret, mask Mask) (MaskedSecret, []EncryptedShare, error) {
	start := time.Now()
	masked := MaskedSecret(sm.ring.Add(int64(secret), int64(mask)))

	shares, err := sm.sharing.GenerateShares(int64(mask))
	if err != nil {
		return 0, nil, err
	}
	defer clear(shares)

	fragments := make([]EncryptedShare, len(shares))
	for i, share := range shares {
		plaintext, err := share.MarshalBinary()
		if err != nil {
			return 0, nil, err
		}
		recipient := sm.recipients[i]
		ciphertext, err := recipient.encryptor.Encrypt(plaintext)
		clear(plaintext)
		if err != nil {
			return 0, nil, err
		}
		fragments[i] = EncryptedShare{
			Recipient:  recipient.agent,
			Key:        recipient.encryptor.Key().ID,
			Ciphertext: ciphertext,
		}
	}

	sm.audit.OnSharing(NewAuditEventBuilder(AuditEventMasking, ReasonContribution).
		WithScheme(&sm.scheme).
		BuildSharing(&sm.scheme, time.Since(start)))
	return masked, fragments, nil
}

// Clerk decrypts the mask fragments addressed to one committee member and
// sums them into that member's share of the combined mask.
type Clerk struct {
	scheme    Scheme
	decryptor *Decryptor
	audit     AuditEventHandler
}

// NewClerk creates a clerk for scheme that decrypts with decryptor
func NewClerk(scheme *Scheme, decryptor *Decryptor) (*Clerk, error) {
	if err := scheme.Validate(); err != nil {
		return nil, err
	}
	return &Clerk{scheme: *scheme, decryptor: decryptor, audit: &NullAuditHandler{}}, nil
}

// WithAuditHandler returns a copy reporting to handler
func (c *Clerk) WithAuditHandler(handler AuditEventHandler) *Clerk {
	cp := *c
	cp.audit = handler
	return &cp
}

// Combine opens every fragment and returns the sum of the contained shares.
// Fragments must all be addressed to the clerk's key.
func (c *Clerk) Combine(fragments []EncryptedShare) (Share, error) {
	if len(fragments) == 0 {
		return Share{}, ErrInsufficientShares.WithDetails("no fragments to combine")
	}

	start := time.Now()
	shares := make([]Share, 0, len(fragments))
	defer clear(shares)
	for _, fragment := range fragments {
		if fragment.Key != c.decryptor.KeyID() {
			return Share{}, ErrDecryptionFailed.WithContext("encryption_key", fragment.Key.String())
		}
		plaintext, err := c.decryptor.Decrypt(fragment.Ciphertext)
		if err != nil {
			c.audit.OnError(NewAuditEventBuilder(AuditEventDecryptionFailure, ReasonCiphertextInvalid).
				WithKey(fragment.Key, string(c.scheme.Encryption)).
				WithError(err).
				Build())
			return Share{}, err
		}
		var share Share
		err = share.UnmarshalBinary(plaintext)
		clear(plaintext)
		if err != nil {
			return Share{}, ErrDecryptionFailed.WithCause(err)
		}
		if !share.SuitableFor(&c.scheme) {
			return Share{}, ErrSchemeMismatch.WithContext("index", share.Index)
		}
		shares = append(shares, share)
	}
	sum, err := SumShares(&c.scheme, shares)
	if err != nil {
		return Share{}, err
	}
	c.audit.OnSharing(NewAuditEventBuilder(AuditEventClerking, ReasonAggregation).
		WithScheme(&c.scheme).
		WithShareCount(len(shares)).
		WithMetadata("index", sum.Index).
		BuildSharing(&c.scheme, time.Since(start)))
	return sum, nil
}

// MaskCombiner accumulates clerk shares of the combined mask as they arrive
// and reconstructs the mask once the threshold is reached. It is safe for
// concurrent use.
type MaskCombiner struct {
	mu       sync.Mutex
	scheme   Scheme
	combiner ShareCombiner
	shares   map[uint32]Share
	audit    AuditEventHandler
}

// NewMaskCombiner creates an empty combiner for scheme
func NewMaskCombiner(scheme *Scheme) (*MaskCombiner, error) {
	combiner, err := NewShareCombiner(scheme)
	if err != nil {
		return nil, err
	}
	return &MaskCombiner{
		scheme:   *scheme,
		combiner: combiner,
		shares:   make(map[uint32]Share),
		audit:    &NullAuditHandler{},
	}, nil
}

// SetAuditHandler replaces, in place, the handler notified on Combine
func (mc *MaskCombiner) SetAuditHandler(handler AuditEventHandler) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.audit = handler
}

// Add records one clerk share. A second share for the same index fails with
// ErrDuplicateShareIndex.
func (mc *MaskCombiner) Add(share Share) error {
	if !share.SuitableFor(&mc.scheme) {
		return ErrSchemeMismatch.WithContext("index", share.Index)
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()
	if _, ok := mc.shares[share.Index]; ok {
		return ErrDuplicateShareIndex.WithContext("index", share.Index)
	}
	mc.shares[share.Index] = share
	return nil
}

// Len returns the number of distinct shares collected so far
func (mc *MaskCombiner) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return len(mc.shares)
}

// Ready reports whether the threshold has been reached
func (mc *MaskCombiner) Ready() bool {
	return mc.Len() >= mc.scheme.Threshold
}

// Combine reconstructs the combined mask. Below the threshold it fails with
// ErrInsufficientShares and never guesses.
func (mc *MaskCombiner) Combine() (Mask, error) {
	start := time.Now()
	mc.mu.Lock()
	shares := make([]Share, 0, len(mc.shares))
	for _, share := range mc.shares {
		shares = append(shares, share)
	}
	audit := mc.audit
	mc.mu.Unlock()
	defer clear(shares)

	sortShares(shares)
	v, err := mc.combiner.Combine(shares)
	if err != nil {
		return 0, err
	}
	audit.OnSharing(NewAuditEventBuilder(AuditEventMaskCombination, ReasonAggregation).
		WithScheme(&mc.scheme).
		WithShareCount(len(shares)).
		BuildSharing(&mc.scheme, time.Since(start)))
	return Mask(v), nil
}

// CombineMask reconstructs a mask from clerk shares in one call
func CombineMask(scheme *Scheme, shares []Share) (Mask, error) {
	mc, err := NewMaskCombiner(scheme)
	if err != nil {
		return 0, err
	}
	for _, share := range shares {
		if err := mc.Add(share); err != nil {
			return 0, err
		}
	}
	return mc.Combine()
}

// SecretUnmasker removes a combined mask from an aggregate of masked secrets
type SecretUnmasker struct {
	ring Ring
}

// NewSecretUnmasker creates an unmasker for scheme
func NewSecretUnmasker(scheme *Scheme) (*SecretUnmasker, error) {
	if err := scheme.Validate(); err != nil {
		return nil, err
	}
	return &SecretUnmasker{ring: scheme.Ring()}, nil
}

// Unmask returns sum - mask mod M. It is meant for the sum of all
// contributors' masked secrets together with the matching combined mask,
// never for a single contribution.
func (su *SecretUnmasker) Unmask(sum MaskedSecret, mask Mask) Secret {
	return Secret(su.ring.Sub(int64(sum), int64(mask)))
}

// SumMaskedSecrets is the aggregator step: it adds masked secrets mod M
func SumMaskedSecrets(scheme *Scheme, values []MaskedSecret) (MaskedSecret, error) {
	if err := scheme.Validate(); err != nil {
		return 0, err
	}
	ring := scheme.Ring()
	var sum int64
	for i, v := range values {
		if !ring.Contains(int64(v)) {
			return 0, ErrSchemeMismatch.WithDetails("masked value %d is outside the ring", i)
		}
		sum = ring.Add(sum, int64(v))
	}
	return MaskedSecret(sum), nil
}
