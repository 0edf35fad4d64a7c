package sda

import (
	"errors"
	"io"
	mrand "math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

// deterministic stream for reproducible keys, masks and nonces
func testRand(seed byte) io.Reader {
	var s [32]byte
	s[0] = seed
	return mrand.NewChaCha8(s)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy source closed")
}

// recordingAuditHandler keeps every event it receives
type recordingAuditHandler struct {
	keyGenerations     []*AuditEvent
	sharing            []*SharingEvent
	validationFailures []*ValidationFailureEvent
	trustFailures      []*AuditEvent
	errors             []*AuditEvent
}

func (h *recordingAuditHandler) OnKeyGeneration(event *AuditEvent) {
	h.keyGenerations = append(h.keyGenerations, event)
}

func (h *recordingAuditHandler) OnSharing(event *SharingEvent) {
	h.sharing = append(h.sharing, event)
}

func (h *recordingAuditHandler) OnValidationFailure(event *ValidationFailureEvent) {
	h.validationFailures = append(h.validationFailures, event)
}

func (h *recordingAuditHandler) OnTrustFailure(event *AuditEvent) {
	h.trustFailures = append(h.trustFailures, event)
}

func (h *recordingAuditHandler) OnError(event *AuditEvent) {
	h.errors = append(h.errors, event)
}

func (h *recordingAuditHandler) sharingTypes() []AuditEventType {
	types := make([]AuditEventType, len(h.sharing))
	for i, event := range h.sharing {
		types[i] = event.EventType
	}
	return types
}

type testClerk struct {
	agent  Agent
	module *CryptoModule
	key    EncryptionKeyID
}

// newTestClerk registers one agent with a signed encryption key in dir
func newTestClerk(t *testing.T, dir Directory, scheme *Scheme, kind SignatureKind, seed byte) testClerk {
	t.Helper()
	module := NewCryptoModule(NewMemoryKeystore()).WithRand(testRand(seed))

	vkID, err := module.NewSignatureKey(kind)
	require.NoError(t, err)
	vk, err := module.VerificationKey(vkID)
	require.NoError(t, err)

	agentID, err := NewAgentID()
	require.NoError(t, err)
	agent := Agent{ID: agentID, VerificationKey: vk}
	require.NoError(t, dir.CreateAgent(agent))

	ekID, err := module.NewEncryptionKey(scheme.Encryption)
	require.NoError(t, err)
	signed, err := module.SignEncryptionKey(agentID, vkID, ekID)
	require.NoError(t, err)
	require.NoError(t, dir.CreateEncryptionKey(signed))

	return testClerk{agent: agent, module: module, key: ekID}
}

// newTestCommittee registers n clerks and resolves them as recipients
func newTestCommittee(t *testing.T, scheme *Scheme, kind SignatureKind) ([]Recipient, map[AgentID]testClerk) {
	t.Helper()
	dir := NewMemoryDirectory()
	clerks := make(map[AgentID]testClerk, scheme.ShareCount)
	for i := 0; i < scheme.ShareCount; i++ {
		clerk := newTestClerk(t, dir, scheme, kind, byte(100+i))
		clerks[clerk.agent.ID] = clerk
	}

	candidates, err := dir.SuggestCommittee()
	require.NoError(t, err)
	committee, err := ResolveCommittee(dir, scheme, candidates, scheme.ShareCount)
	require.NoError(t, err)
	return committee, clerks
}
