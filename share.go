package sda

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Share is one fragment of a value under threshold sharing
type Share struct {
	Index    uint32 `json:"index"`     // evaluation point, 1..n
	Value    int64  `json:"value"`     // ring element
	SchemeID string `json:"scheme_id"` // fingerprint of the generating scheme
}

// SuitableFor reports whether the share was produced under scheme and is a
// well-formed element of its ring.
func (s Share) SuitableFor(scheme *Scheme) bool {
	if scheme == nil {
		return false
	}
	if s.SchemeID != scheme.ID() {
		return false
	}
	if s.Index < 1 || int(s.Index) > scheme.ShareCount {
		return false
	}
	return scheme.Ring().Contains(s.Value)
}

// String never prints the share value
func (s Share) String() string {
	return fmt.Sprintf("Share{index: %d, scheme: %s}", s.Index, s.SchemeID)
}

const (
	schemeIDSize     = 16
	encodedShareSize = 4 + 8 + schemeIDSize
)

// MarshalBinary encodes the share as index u32 | value i64 | scheme id (16 bytes)
func (s Share) MarshalBinary() ([]byte, error) {
	id, err := hex.DecodeString(s.SchemeID)
	if err != nil || len(id) != schemeIDSize {
		return nil, ErrSchemeMismatch.WithDetails("malformed scheme id")
	}

	buf := make([]byte, encodedShareSize)
	binary.BigEndian.PutUint32(buf[0:4], s.Index)
	binary.BigEndian.PutUint64(buf[4:12], uint64(s.Value))
	copy(buf[12:], id)
	return buf, nil
}

// UnmarshalBinary decodes a share produced by MarshalBinary
func (s *Share) UnmarshalBinary(data []byte) error {
	if len(data) != encodedShareSize {
		return fmt.Errorf("encoded share must be %d bytes, got %d", encodedShareSize, len(data))
	}
	s.Index = binary.BigEndian.Uint32(data[0:4])
	s.Value = int64(binary.BigEndian.Uint64(data[4:12]))
	s.SchemeID = hex.EncodeToString(data[12:])
	return nil
}
