package sda

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

const idSize = 16

// AgentID identifies a participant (contributor, clerk or aggregator)
type AgentID [idSize]byte

// EncryptionKeyID identifies an encryption keypair
type EncryptionKeyID [idSize]byte

// VerificationKeyID identifies a signature keypair and its verification key
type VerificationKeyID [idSize]byte

func randomID(r io.Reader) ([idSize]byte, error) {
	var id [idSize]byte
	if _, err := io.ReadFull(r, id[:]); err != nil {
		return id, ErrRandomnessUnavailable.WithCause(err)
	}
	return id, nil
}

func parseID(s string) ([idSize]byte, error) {
	var id [idSize]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid id %q: %w", s, err)
	}
	if len(b) != idSize {
		return id, fmt.Errorf("invalid id %q: want %d bytes, got %d", s, idSize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// NewAgentID draws a random agent id
func NewAgentID() (AgentID, error) {
	id, err := randomID(rand.Reader)
	return AgentID(id), err
}

// ParseAgentID parses the hex form produced by String
func ParseAgentID(s string) (AgentID, error) {
	id, err := parseID(s)
	return AgentID(id), err
}

func (id AgentID) String() string { return hex.EncodeToString(id[:]) }

// IsZero reports whether the id is unset
func (id AgentID) IsZero() bool { return id == AgentID{} }

func (id AgentID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *AgentID) UnmarshalText(text []byte) error {
	parsed, err := parseID(string(text))
	if err != nil {
		return err
	}
	*id = AgentID(parsed)
	return nil
}

// NewEncryptionKeyID draws a random encryption key id
func NewEncryptionKeyID() (EncryptionKeyID, error) {
	id, err := randomID(rand.Reader)
	return EncryptionKeyID(id), err
}

// ParseEncryptionKeyID parses the hex form produced by String
func ParseEncryptionKeyID(s string) (EncryptionKeyID, error) {
	id, err := parseID(s)
	return EncryptionKeyID(id), err
}

func (id EncryptionKeyID) String() string { return hex.EncodeToString(id[:]) }

func (id EncryptionKeyID) IsZero() bool { return id == EncryptionKeyID{} }

func (id EncryptionKeyID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *EncryptionKeyID) UnmarshalText(text []byte) error {
	parsed, err := parseID(string(text))
	if err != nil {
		return err
	}
	*id = EncryptionKeyID(parsed)
	return nil
}

// NewVerificationKeyID draws a random verification key id
func NewVerificationKeyID() (VerificationKeyID, error) {
	id, err := randomID(rand.Reader)
	return VerificationKeyID(id), err
}

// ParseVerificationKeyID parses the hex form produced by String
func ParseVerificationKeyID(s string) (VerificationKeyID, error) {
	id, err := parseID(s)
	return VerificationKeyID(id), err
}

func (id VerificationKeyID) String() string { return hex.EncodeToString(id[:]) }

func (id VerificationKeyID) IsZero() bool { return id == VerificationKeyID{} }

func (id VerificationKeyID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *VerificationKeyID) UnmarshalText(text []byte) error {
	parsed, err := parseID(string(text))
	if err != nil {
		return err
	}
	*id = VerificationKeyID(parsed)
	return nil
}

// Agent is an identified participant with a registered verification key
type Agent struct {
	ID              AgentID         `json:"id"`
	VerificationKey VerificationKey `json:"verification_key"`
}

// ClerkCandidate is an agent together with the encryption keys it has signed
type ClerkCandidate struct {
	ID   AgentID           `json:"id"`
	Keys []EncryptionKeyID `json:"keys"`
}

// Recipient is a committee member: the agent and the signed encryption key
// its fragments are encrypted to.
type Recipient struct {
	Agent Agent               `json:"agent"`
	Key   SignedEncryptionKey `json:"key"`
}

// EncryptedShare is a share fragment sealed to one committee member
type EncryptedShare struct {
	Recipient  AgentID         `json:"recipient"`
	Key        EncryptionKeyID `json:"key"`
	Ciphertext []byte          `json:"ciphertext"`
}
