// Package models defines the queued-mutation record shared by the
// dispatcher, the sync engine and the durable store.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Kind identifies which remote operation a queued mutation replays.
// The set is closed: the sync engine matches on it exhaustively.
type Kind string

const (
	KindCreateRecord Kind = "create_record"
	KindUpdateRecord Kind = "update_record"
	KindDeleteRecord Kind = "delete_record"
	KindUpdateUser   Kind = "update_user"
)

// RecordPayload is the input snapshot of a row-level operation. Data is
// opaque to the queue; only the remote store interprets it.
type RecordPayload struct {
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// UserPayload is the input snapshot of a user update.
type UserPayload struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// QueuedMutation is one pending write captured at the moment the original
// call failed for lack of connectivity. Exactly one payload field is set,
// and which one is determined by Kind.
type QueuedMutation struct {
	ID         string         `json:"id"`
	Kind       Kind           `json:"kind"`
	Record     *RecordPayload `json:"record,omitempty"`
	User       *UserPayload   `json:"user,omitempty"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
	RetryCount int            `json:"retry_count"`
}

var ErrMalformedMutation = errors.New("malformed mutation")

// NewCreateRecord builds an unenqueued create-record mutation. The id and
// enqueue timestamp are assigned by the dispatcher at enqueue time.
func NewCreateRecord(collection, id string, data json.RawMessage) QueuedMutation {
	return QueuedMutation{
		Kind:   KindCreateRecord,
		Record: &RecordPayload{Collection: collection, ID: id, Data: data},
	}
}

func NewUpdateRecord(collection, id string, data json.RawMessage) QueuedMutation {
	return QueuedMutation{
		Kind:   KindUpdateRecord,
		Record: &RecordPayload{Collection: collection, ID: id, Data: data},
	}
}

func NewDeleteRecord(collection, id string) QueuedMutation {
	return QueuedMutation{
		Kind:   KindDeleteRecord,
		Record: &RecordPayload{Collection: collection, ID: id},
	}
}

func NewUpdateUser(id string, data json.RawMessage) QueuedMutation {
	return QueuedMutation{
		Kind: KindUpdateUser,
		User: &UserPayload{ID: id, Data: data},
	}
}

// Validate checks that the payload matches the kind. A mutation loaded from
// a hand-edited database can violate this; the sync engine drops such items
// instead of replaying them.
func (m *QueuedMutation) Validate() error {
	switch m.Kind {
	case KindCreateRecord, KindUpdateRecord, KindDeleteRecord:
		if m.Record == nil || m.User != nil {
			return fmt.Errorf("%w: kind %q requires a record payload", ErrMalformedMutation, m.Kind)
		}
	case KindUpdateUser:
		if m.User == nil || m.Record != nil {
			return fmt.Errorf("%w: kind %q requires a user payload", ErrMalformedMutation, m.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrMalformedMutation, m.Kind)
	}
	return nil
}

// Describe returns a short human-readable form used in the queue listing
// and in log lines.
func (m *QueuedMutation) Describe() string {
	switch m.Kind {
	case KindCreateRecord, KindUpdateRecord, KindDeleteRecord:
		if m.Record != nil {
			return fmt.Sprintf("%s %s/%s", m.Kind, m.Record.Collection, m.Record.ID)
		}
	case KindUpdateUser:
		if m.User != nil {
			return fmt.Sprintf("%s %s", m.Kind, m.User.ID)
		}
	}
	return string(m.Kind)
}
