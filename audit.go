package sda

import (
	"crypto/rand"
	"fmt"
	"time"
)

// AuditEventType represents the type of audit event
type AuditEventType string

const (
	// Key material events
	AuditEventKeyGeneration AuditEventType = "key_generation"
	AuditEventKeySigned     AuditEventType = "key_signed"

	// Sharing events
	AuditEventShareGeneration AuditEventType = "share_generation"
	AuditEventReconstruction  AuditEventType = "reconstruction"
	AuditEventMasking         AuditEventType = "masking"
	AuditEventMaskCombination AuditEventType = "mask_combination"
	AuditEventClerking        AuditEventType = "clerking"

	// Failure events
	AuditEventValidationFailure AuditEventType = "validation_failure"
	AuditEventTrustFailure      AuditEventType = "trust_failure"
	AuditEventDecryptionFailure AuditEventType = "decryption_failure"
)

// AuditEventReason represents why an event occurred
type AuditEventReason string

const (
	ReasonRequested         AuditEventReason = "requested"
	ReasonContribution      AuditEventReason = "contribution"
	ReasonAggregation       AuditEventReason = "aggregation"
	ReasonUnverifiedKey     AuditEventReason = "unverified_key"
	ReasonSchemeMismatch    AuditEventReason = "scheme_mismatch"
	ReasonValidationError   AuditEventReason = "validation_error"
	ReasonCiphertextInvalid AuditEventReason = "ciphertext_invalid"
)

// AuditEvent is a single audit record. It carries ids, kinds and counts only,
// never secrets, masks, share values or private keys.
type AuditEvent struct {
	EventID   string           `json:"event_id"`
	Timestamp time.Time        `json:"timestamp"`
	EventType AuditEventType   `json:"event_type"`
	Reason    AuditEventReason `json:"reason"`

	SchemeID   string `json:"scheme_id,omitempty"`
	KeyID      string `json:"key_id,omitempty"`
	KeyKind    string `json:"key_kind,omitempty"`
	ShareCount int    `json:"share_count,omitempty"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// SharingEvent describes a sharing, masking or reconstruction step
type SharingEvent struct {
	AuditEvent

	Sharing   SharingKind   `json:"sharing"`
	Threshold int           `json:"threshold"`
	Duration  time.Duration `json:"duration"`
}

// ValidationFailureEvent contains details about rejected inputs
type ValidationFailureEvent struct {
	AuditEvent

	ValidationType string                 `json:"validation_type"` // "scheme", "share", "key"
	FailureReason  string                 `json:"failure_reason"`
	InputValues    map[string]interface{} `json:"input_values,omitempty"`
}

// AuditEventHandler receives audit events from the crypto module.
// Implementations must not block for long; they run on the caller's goroutine.
type AuditEventHandler interface {
	// OnKeyGeneration is called when a keypair is created or a key is signed
	OnKeyGeneration(event *AuditEvent)

	// OnSharing is called after share generation, masking, clerking,
	// mask combination and reconstruction
	OnSharing(event *SharingEvent)

	// OnValidationFailure is called when a scheme, share or key is rejected
	OnValidationFailure(event *ValidationFailureEvent)

	// OnTrustFailure is called when a signed encryption key does not verify
	OnTrustFailure(event *AuditEvent)

	// OnError is called for other failures, including decryption failures
	OnError(event *AuditEvent)
}

// NullAuditHandler is a no-op implementation of AuditEventHandler
type NullAuditHandler struct{}

func (n *NullAuditHandler) OnKeyGeneration(event *AuditEvent) {}
func (n *NullAuditHandler) OnSharing(event *SharingEvent) {}
func (n *NullAuditHandler) OnValidationFailure(event *ValidationFailureEvent) {}
func (n *NullAuditHandler) OnTrustFailure(event *AuditEvent) {}
func (n *NullAuditHandler) OnError(event *AuditEvent) {}

// AuditEventBuilder helps construct audit events with proper defaults
type AuditEventBuilder struct {
	event *AuditEvent
}

// NewAuditEventBuilder creates a new audit event builder
func NewAuditEventBuilder(eventType AuditEventType, reason AuditEventReason) *AuditEventBuilder {
	return &AuditEventBuilder{
		event: &AuditEvent{
			EventID:   generateEventID(),
			Timestamp: time.Now(),
			EventType: eventType,
			Reason:    reason,
			Success:   true,
			Metadata:  make(map[string]interface{}),
		},
	}
}

// WithScheme records the scheme fingerprint and share count
func (b *AuditEventBuilder) WithScheme(scheme *Scheme) *AuditEventBuilder {
	b.event.SchemeID = scheme.ID()
	b.event.ShareCount = scheme.ShareCount
	return b
}

// WithKey records a key id and its kind
func (b *AuditEventBuilder) WithKey(id fmt.Stringer, kind string) *AuditEventBuilder {
	b.event.KeyID = id.String()
	b.event.KeyKind = kind
	return b
}

// WithShareCount overrides the number of shares involved
func (b *AuditEventBuilder) WithShareCount(n int) *AuditEventBuilder {
	b.event.ShareCount = n
	return b
}

// WithError marks the event as failed and sets error information
func (b *AuditEventBuilder) WithError(err error) *AuditEventBuilder {
	b.event.Success = false
	if err != nil {
		b.event.Error = err.Error()
	}
	return b
}

// WithMetadata adds metadata to the event
func (b *AuditEventBuilder) WithMetadata(key string, value interface{}) *AuditEventBuilder {
	b.event.Metadata[key] = value
	return b
}

// Build returns the constructed audit event
func (b *AuditEventBuilder) Build() *AuditEvent {
	return b.event
}

// BuildSharing returns a SharingEvent for scheme
func (b *AuditEventBuilder) BuildSharing(scheme *Scheme, duration time.Duration) *SharingEvent {
	return &SharingEvent{
		AuditEvent: *b.event,
		Sharing:    scheme.Sharing,
		Threshold:  scheme.Threshold,
		Duration:   duration,
	}
}

// BuildValidationFailure returns a ValidationFailureEvent
func (b *AuditEventBuilder) BuildValidationFailure(validationType, failureReason string, inputValues map[string]interface{}) *ValidationFailureEvent {
	b.event.Success = false
	return &ValidationFailureEvent{
		AuditEvent:     *b.event,
		ValidationType: validationType,
		FailureReason:  failureReason,
		InputValues:    inputValues,
	}
}

// generateEventID combines a timestamp with random bytes so events created in
// the same microsecond stay distinct
func generateEventID() string {
	timestamp := time.Now().Format("20060102150405.000000")

	randomBytes := make([]byte, 4)
	if _, err := rand.Read(randomBytes); err != nil {
		return fmt.Sprintf("%s.%d", timestamp, time.Now().UnixNano()%10000)
	}

	return fmt.Sprintf("%s.%x", timestamp, randomBytes)
}
