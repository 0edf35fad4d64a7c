package sda

import (
	"crypto/rand"
	"io"
	"time"
)

// CryptoModule is the single entry point an agent uses for cryptographic
// work. It owns the keystore binding and hands out engines that resolve key
// material from the keystore on demand.
type CryptoModule struct {
	keystore Keystore
	rand     io.Reader
	audit    AuditEventHandler
}

// NewCryptoModule binds a crypto module to keystore
func NewCryptoModule(keystore Keystore) *CryptoModule {
	return &CryptoModule{
		keystore: keystore,
		rand:     rand.Reader,
		audit:    &NullAuditHandler{},
	}
}

// WithRand returns a copy drawing all randomness from r
func (m *CryptoModule) WithRand(r io.Reader) *CryptoModule {
	c := *m
	c.rand = r
	return &c
}

// WithAuditHandler returns a copy reporting to handler
func (m *CryptoModule) WithAuditHandler(handler AuditEventHandler) *CryptoModule {
	c := *m
	if handler == nil {
		handler = &NullAuditHandler{}
	}
	c.audit = handler
	return &c
}

// Keystore returns the bound keystore
func (m *CryptoModule) Keystore() Keystore {
	return m.keystore
}

// NewEncryptionKey generates an encryption keypair, stores it under a fresh
// id and returns the id.
func (m *CryptoModule) NewEncryptionKey(kind EncryptionKind) (EncryptionKeyID, error) {
	kp, err := EncryptionKeyGenerator{Kind: kind, Rand: m.rand}.NewKey()
	if err != nil {
		m.keyGenerationFailed(string(kind), err)
		return EncryptionKeyID{}, err
	}
	defer kp.Zeroize()

	raw, err := randomID(m.rand)
	if err != nil {
		return EncryptionKeyID{}, err
	}
	id := EncryptionKeyID(raw)
	if err := m.keystore.PutEncryptionKeypair(id, kp); err != nil {
		m.keyGenerationFailed(string(kind), err)
		return EncryptionKeyID{}, err
	}

	m.audit.OnKeyGeneration(NewAuditEventBuilder(AuditEventKeyGeneration, ReasonRequested).
		WithKey(id, string(kind)).
		Build())
	return id, nil
}

// NewSignatureKey generates a signature keypair, stores it under a fresh id
// and returns the id.
func (m *CryptoModule) NewSignatureKey(kind SignatureKind) (VerificationKeyID, error) {
	kp, err := SignatureKeyGenerator{Kind: kind, Rand: m.rand}.NewKey()
	if err != nil {
		m.keyGenerationFailed(string(kind), err)
		return VerificationKeyID{}, err
	}
	defer kp.Zeroize()

	raw, err := randomID(m.rand)
	if err != nil {
		return VerificationKeyID{}, err
	}
	id := VerificationKeyID(raw)
	if err := m.keystore.PutSignatureKeypair(id, kp); err != nil {
		m.keyGenerationFailed(string(kind), err)
		return VerificationKeyID{}, err
	}

	m.audit.OnKeyGeneration(NewAuditEventBuilder(AuditEventKeyGeneration, ReasonRequested).
		WithKey(id, string(kind)).
		Build())
	return id, nil
}

// VerificationKey returns the public half of the signature keypair id
func (m *CryptoModule) VerificationKey(id VerificationKeyID) (VerificationKey, error) {
	kp, ok, err := m.keystore.GetSignatureKeypair(id)
	if err != nil {
		return VerificationKey{}, err
	}
	if !ok {
		return VerificationKey{}, ErrKeyNotFound.WithContext("verification_key", id.String())
	}
	defer kp.Zeroize()
	return kp.VerificationKey(id), nil
}

// EncryptionKey returns the public half of the encryption keypair id
func (m *CryptoModule) EncryptionKey(id EncryptionKeyID) (EncryptionKey, error) {
	kp, ok, err := m.keystore.GetEncryptionKeypair(id)
	if err != nil {
		return EncryptionKey{}, err
	}
	if !ok {
		return EncryptionKey{}, ErrKeyNotFound.WithContext("encryption_key", id.String())
	}
	defer kp.Zeroize()
	return kp.PublicKey(id), nil
}

// SignEncryptionKey signs the public half of ekID with vkID on behalf of
// signer, producing the record that other agents verify before use.
func (m *CryptoModule) SignEncryptionKey(signer AgentID, vkID VerificationKeyID, ekID EncryptionKeyID) (SignedEncryptionKey, error) {
	key, err := m.EncryptionKey(ekID)
	if err != nil {
		return SignedEncryptionKey{}, err
	}
	sek, err := NewSigner(m.keystore, vkID).SignEncryptionKey(signer, key)
	if err != nil {
		return SignedEncryptionKey{}, err
	}

	m.audit.OnKeyGeneration(NewAuditEventBuilder(AuditEventKeySigned, ReasonRequested).
		WithKey(ekID, string(key.Kind)).
		WithMetadata("signer", signer.String()).
		WithMetadata("verification_key", vkID.String()).
		Build())
	return sek, nil
}

// NewSigner returns a signer bound to the stored keypair vkID
func (m *CryptoModule) NewSigner(vkID VerificationKeyID) (*Signer, error) {
	if _, err := m.VerificationKey(vkID); err != nil {
		return nil, err
	}
	return NewSigner(m.keystore, vkID), nil
}

// NewVerifier returns a verifier for the public half of the stored keypair vkID
func (m *CryptoModule) NewVerifier(vkID VerificationKeyID) (*Verifier, error) {
	vk, err := m.VerificationKey(vkID)
	if err != nil {
		return nil, err
	}
	return NewVerifier(vk), nil
}

// NewEncryptor returns an encryptor for the recipient's key. The key is
// accepted only if it verifies against the recipient agent.
func (m *CryptoModule) NewEncryptor(recipient Recipient) (*Encryptor, error) {
	if err := m.verifyRecipient(recipient); err != nil {
		return nil, err
	}
	encryptor, err := NewEncryptor(recipient.Key.Body)
	if err != nil {
		return nil, err
	}
	return encryptor.WithRand(m.rand), nil
}

// NewDecryptor returns a decryptor bound to the stored keypair ekID
func (m *CryptoModule) NewDecryptor(ekID EncryptionKeyID) (*Decryptor, error) {
	if _, err := m.EncryptionKey(ekID); err != nil {
		return nil, err
	}
	return NewDecryptor(m.keystore, ekID), nil
}

// NewShareGenerator returns a share generator for scheme
func (m *CryptoModule) NewShareGenerator(scheme *Scheme) (ShareGenerator, error) {
	sharing, err := m.sharing(scheme)
	if err != nil {
		return nil, err
	}
	return &auditedSharing{linearSharing: sharing, scheme: *scheme, audit: m.audit}, nil
}

// NewShareCombiner returns a share combiner for scheme
func (m *CryptoModule) NewShareCombiner(scheme *Scheme) (ShareCombiner, error) {
	sharing, err := m.sharing(scheme)
	if err != nil {
		return nil, err
	}
	return &auditedSharing{linearSharing: sharing, scheme: *scheme, audit: m.audit}, nil
}

// NewSecretReconstructor returns a reconstructor for scheme
func (m *CryptoModule) NewSecretReconstructor(scheme *Scheme) (*SecretReconstructor, error) {
	combiner, err := m.NewShareCombiner(scheme)
	if err != nil {
		return nil, err
	}
	return &SecretReconstructor{combiner: combiner}, nil
}

// NewSecretMasker returns a masker encrypting fragment i to recipients[i].
// Every recipient key must verify and suit the scheme.
func (m *CryptoModule) NewSecretMasker(scheme *Scheme, recipients []Recipient) (*SecretMasker, error) {
	if err := m.validateScheme(scheme); err != nil {
		return nil, err
	}
	for _, recipient := range recipients {
		if err := m.verifyRecipient(recipient); err != nil {
			return nil, err
		}
		if !recipient.Key.Body.SuitableFor(scheme) {
			err := ErrSchemeMismatch.WithContext("encryption_key", recipient.Key.Body.ID.String())
			m.audit.OnValidationFailure(NewAuditEventBuilder(AuditEventValidationFailure, ReasonSchemeMismatch).
				WithScheme(scheme).
				WithKey(recipient.Key.Body.ID, string(recipient.Key.Body.Kind)).
				WithError(err).
				BuildValidationFailure("key", "encryption key does not suit scheme", nil))
			return nil, err
		}
	}

	masker, err := NewSecretMasker(scheme, recipients)
	if err != nil {
		return nil, err
	}
	return masker.WithRand(m.rand).WithAuditHandler(m.audit), nil
}

// NewMaskCombiner returns an empty mask combiner for scheme
func (m *CryptoModule) NewMaskCombiner(scheme *Scheme) (*MaskCombiner, error) {
	if err := m.validateScheme(scheme); err != nil {
		return nil, err
	}
	mc, err := NewMaskCombiner(scheme)
	if err != nil {
		return nil, err
	}
	mc.SetAuditHandler(m.audit)
	return mc, nil
}

// NewSecretUnmasker returns an unmasker for scheme
func (m *CryptoModule) NewSecretUnmasker(scheme *Scheme) (*SecretUnmasker, error) {
	if err := m.validateScheme(scheme); err != nil {
		return nil, err
	}
	return NewSecretUnmasker(scheme)
}

// NewClerk returns a clerk for scheme decrypting with the stored keypair ekID.
// The key must suit the scheme.
func (m *CryptoModule) NewClerk(scheme *Scheme, ekID EncryptionKeyID) (*Clerk, error) {
	if err := m.validateScheme(scheme); err != nil {
		return nil, err
	}
	key, err := m.EncryptionKey(ekID)
	if err != nil {
		return nil, err
	}
	if !key.SuitableFor(scheme) {
		return nil, ErrSchemeMismatch.WithContext("encryption_key", ekID.String())
	}
	clerk, err := NewClerk(scheme, NewDecryptor(m.keystore, ekID))
	if err != nil {
		return nil, err
	}
	return clerk.WithAuditHandler(m.audit), nil
}

func (m *CryptoModule) sharing(scheme *Scheme) (linearSharing, error) {
	if err := m.validateScheme(scheme); err != nil {
		return nil, err
	}
	return newLinearSharing(scheme, m.rand)
}

func (m *CryptoModule) validateScheme(scheme *Scheme) error {
	err := scheme.Validate()
	if err == nil {
		return nil
	}
	var inputs map[string]interface{}
	if scheme != nil {
		inputs = map[string]interface{}{
			"sharing":     string(scheme.Sharing),
			"modulus":     scheme.Modulus,
			"threshold":   scheme.Threshold,
			"share_count": scheme.ShareCount,
			"encryption":  string(scheme.Encryption),
		}
	}
	m.audit.OnValidationFailure(NewAuditEventBuilder(AuditEventValidationFailure, ReasonValidationError).
		WithError(err).
		BuildValidationFailure("scheme", "invalid scheme parameters", inputs))
	return err
}

func (m *CryptoModule) verifyRecipient(recipient Recipient) error {
	if VerifySignedEncryptionKey(recipient.Agent, recipient.Key) {
		return nil
	}
	err := ErrUntrustedKey.WithContext("agent", recipient.Agent.ID.String())
	m.audit.OnTrustFailure(NewAuditEventBuilder(AuditEventTrustFailure, ReasonUnverifiedKey).
		WithKey(recipient.Key.Body.ID, string(recipient.Key.Body.Kind)).
		WithMetadata("agent", recipient.Agent.ID.String()).
		WithMetadata("signer", recipient.Key.Signer.String()).
		WithError(err).
		Build())
	return err
}

func (m *CryptoModule) keyGenerationFailed(kind string, err error) {
	m.audit.OnError(NewAuditEventBuilder(AuditEventKeyGeneration, ReasonRequested).
		WithMetadata("kind", kind).
		WithError(err).
		Build())
}

// auditedSharing reports share generation and reconstruction to the audit
// handler. Share values never reach the handler.
type auditedSharing struct {
	linearSharing
	scheme Scheme
	audit  AuditEventHandler
}

func (a *auditedSharing) GenerateShares(value int64) ([]Share, error) {
	start := time.Now()
	shares, err := a.linearSharing.GenerateShares(value)
	if err != nil {
		return nil, err
	}
	a.audit.OnSharing(NewAuditEventBuilder(AuditEventShareGeneration, ReasonRequested).
		WithScheme(&a.scheme).
		BuildSharing(&a.scheme, time.Since(start)))
	return shares, nil
}

func (a *auditedSharing) Combine(shares []Share) (int64, error) {
	start := time.Now()
	v, err := a.linearSharing.Combine(shares)
	if err != nil {
		a.audit.OnValidationFailure(NewAuditEventBuilder(AuditEventValidationFailure, ReasonValidationError).
			WithScheme(&a.scheme).
			WithShareCount(len(shares)).
			WithError(err).
			BuildValidationFailure("share", "reconstruction rejected", nil))
		return 0, err
	}
	a.audit.OnSharing(NewAuditEventBuilder(AuditEventReconstruction, ReasonRequested).
		WithScheme(&a.scheme).
		WithShareCount(len(shares)).
		BuildSharing(&a.scheme, time.Since(start)))
	return v, nil
}
