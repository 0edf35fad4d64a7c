package sda

import (
	"bytes"
	"sort"
	"sync"
)

// Directory is the public registry of agents and their signed encryption
// keys. Implementations only hold public material.
type Directory interface {
	// CreateAgent registers an agent. Ids are write-once.
	CreateAgent(agent Agent) error
	GetAgent(id AgentID) (Agent, bool, error)

	// CreateEncryptionKey stores a signed key. The signer must be registered
	// and the signature must verify, otherwise ErrUntrustedKey.
	CreateEncryptionKey(key SignedEncryptionKey) error
	GetEncryptionKey(id EncryptionKeyID) (SignedEncryptionKey, bool, error)

	// SuggestCommittee groups every stored key by signer, ordered by signer id
	SuggestCommittee() ([]ClerkCandidate, error)
}

// MemoryDirectory is a process-local Directory, safe for concurrent use
type MemoryDirectory struct {
	mu     sync.RWMutex
	agents map[AgentID]Agent
	keys   map[EncryptionKeyID]SignedEncryptionKey
}

var _ Directory = (*MemoryDirectory)(nil)

// NewMemoryDirectory creates an empty directory
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		agents: make(map[AgentID]Agent),
		keys:   make(map[EncryptionKeyID]SignedEncryptionKey),
	}
}

func (d *MemoryDirectory) CreateAgent(agent Agent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.agents[agent.ID]; ok {
		return ErrDuplicateKey.WithContext("agent", agent.ID.String())
	}
	d.agents[agent.ID] = agent
	return nil
}

func (d *MemoryDirectory) GetAgent(id AgentID) (Agent, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	agent, ok := d.agents[id]
	return agent, ok, nil
}

func (d *MemoryDirectory) CreateEncryptionKey(key SignedEncryptionKey) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	agent, ok := d.agents[key.Signer]
	if !ok {
		return ErrAgentNotFound.WithContext("agent", key.Signer.String())
	}
	if !VerifySignedEncryptionKey(agent, key) {
		return ErrUntrustedKey.WithContext("agent", key.Signer.String())
	}
	if _, ok := d.keys[key.Body.ID]; ok {
		return ErrDuplicateKey.WithContext("encryption_key", key.Body.ID.String())
	}
	d.keys[key.Body.ID] = key
	return nil
}

func (d *MemoryDirectory) GetEncryptionKey(id EncryptionKeyID) (SignedEncryptionKey, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	key, ok := d.keys[id]
	return key, ok, nil
}

func (d *MemoryDirectory) SuggestCommittee() ([]ClerkCandidate, error) {
	d.mu.RLock()
	keys := make([]SignedEncryptionKey, 0, len(d.keys))
	for _, key := range d.keys {
		keys = append(keys, key)
	}
	d.mu.RUnlock()
	return GroupCandidates(keys), nil
}

// GroupCandidates groups signed keys by signer. Candidates are ordered by
// signer id and each candidate's keys by key id.
func GroupCandidates(keys []SignedEncryptionKey) []ClerkCandidate {
	sort.Slice(keys, func(i, j int) bool {
		if c := bytes.Compare(keys[i].Signer[:], keys[j].Signer[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(keys[i].Body.ID[:], keys[j].Body.ID[:]) < 0
	})

	var candidates []ClerkCandidate
	for _, key := range keys {
		if n := len(candidates); n > 0 && candidates[n-1].ID == key.Signer {
			candidates[n-1].Keys = append(candidates[n-1].Keys, key.Body.ID)
			continue
		}
		candidates = append(candidates, ClerkCandidate{ID: key.Signer, Keys: []EncryptionKeyID{key.Body.ID}})
	}
	return candidates
}

// ResolveCommittee turns candidates into n recipients for scheme, in
// candidate order. For each candidate the first key that verifies against
// the registered agent and suits the scheme is used; candidates without such
// a key are skipped.
func ResolveCommittee(dir Directory, scheme *Scheme, candidates []ClerkCandidate, n int) ([]Recipient, error) {
	if n < 1 {
		return nil, ErrCommitteeTooSmall.WithContext("requested", n)
	}
	recipients := make([]Recipient, 0, n)
	for _, candidate := range candidates {
		if len(recipients) == n {
			break
		}
		agent, ok, err := dir.GetAgent(candidate.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		for _, keyID := range candidate.Keys {
			key, ok, err := dir.GetEncryptionKey(keyID)
			if err != nil {
				return nil, err
			}
			if !ok || !VerifySignedEncryptionKey(agent, key) || !key.Body.SuitableFor(scheme) {
				continue
			}
			recipients = append(recipients, Recipient{Agent: agent, Key: key})
			break
		}
	}
	if len(recipients) < n {
		return nil, ErrCommitteeTooSmall.WithDetails("need %d members, found %d", n, len(recipients))
	}
	return recipients, nil
}
