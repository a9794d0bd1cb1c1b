package entity

import (
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by repositories and the payload resolver when the
// referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// Kind identifies which store an entity reference points into.
type Kind string

const (
	KindUser      Kind = "USER"
	KindCommunity Kind = "COMMUNITY"
)

func (k Kind) Valid() bool {
	switch k {
	case KindUser, KindCommunity:
		return true
	}
	return false
}

// Ref is an unresolved pointer to an external record.
type Ref struct {
	Kind Kind
	ID   string
}

// Payload is a denormalised snapshot of an entity, embedded into notifications
// so they render without further lookups.
type Payload struct {
	ID      string          `json:"id"`
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}
