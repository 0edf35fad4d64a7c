package sda

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapAuditHandler writes every audit event as a structured log line
type ZapAuditHandler struct {
	logger *zap.Logger
}

var _ AuditEventHandler = (*ZapAuditHandler)(nil)

// NewZapAuditHandler logs audit events to logger under the "audit" name
func NewZapAuditHandler(logger *zap.Logger) *ZapAuditHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapAuditHandler{logger: logger.Named("audit")}
}

func (h *ZapAuditHandler) OnKeyGeneration(event *AuditEvent) {
	h.log(zapcore.InfoLevel, event)
}

func (h *ZapAuditHandler) OnSharing(event *SharingEvent) {
	h.log(zapcore.DebugLevel, &event.AuditEvent,
		zap.String("sharing", string(event.Sharing)),
		zap.Int("threshold", event.Threshold),
		zap.Duration("duration", event.Duration))
}

func (h *ZapAuditHandler) OnValidationFailure(event *ValidationFailureEvent) {
	h.log(zapcore.WarnLevel, &event.AuditEvent,
		zap.String("validation_type", event.ValidationType),
		zap.String("failure_reason", event.FailureReason),
		zap.Any("input", event.InputValues))
}

func (h *ZapAuditHandler) OnTrustFailure(event *AuditEvent) {
	h.log(zapcore.WarnLevel, event)
}

func (h *ZapAuditHandler) OnError(event *AuditEvent) {
	h.log(zapcore.ErrorLevel, event)
}

func (h *ZapAuditHandler) log(level zapcore.Level, event *AuditEvent, extra ...zap.Field) {
	ce := h.logger.Check(level, string(event.EventType))
	if ce == nil {
		return
	}

	fields := []zap.Field{
		zap.String("event_id", event.EventID),
		zap.Time("timestamp", event.Timestamp),
		zap.String("reason", string(event.Reason)),
		zap.Bool("success", event.Success),
	}
	if event.SchemeID != "" {
		fields = append(fields, zap.String("scheme_id", event.SchemeID))
	}
	if event.KeyID != "" {
		fields = append(fields, zap.String("key_id", event.KeyID), zap.String("key_kind", event.KeyKind))
	}
	if event.ShareCount > 0 {
		fields = append(fields, zap.Int("share_count", event.ShareCount))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	if len(event.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", event.Metadata))
	}
	ce.Write(append(fields, extra...)...)
}
