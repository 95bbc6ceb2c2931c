package text

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/brunokim/cotext/clock"
)

// Operation is the wire representation of an edit, produced by local
// mutations and consumed by ApplyRemote on other replicas. Exactly one of
// Insert and Delete is set.
//
// Operations are self-describing: an insert carries the synthesized locator
// of its run, so it can be applied by any replica regardless of delivery
// order. All fields round-trip exactly through JSON (integers only, no
// floating point), preserving ordering semantics across the wire.
type Operation struct {
	// ID identifies the operation across all replicas.
	ID clock.OperationID `json:"id"`
	// Buffer is the identity of the document the operation belongs to.
	Buffer uuid.UUID `json:"buffer"`

	Insert *InsertOp `json:"insert,omitempty"`
	Delete *DeleteOp `json:"delete,omitempty"`
}

// InsertOp inserts a run of text at the position given by its locator.
type InsertOp struct {
	// Loc is the base locator of the inserted run.
	Loc Locator `json:"loc"`
	// Text is the inserted content.
	Text string `json:"text"`
}

// DeleteOp tombstones one or more sub-ranges of previously inserted runs.
type DeleteOp struct {
	Targets []Target `json:"targets"`
}

// Target addresses the sub-range [Start, End) of the insertion run whose
// base locator is Loc. Run coordinates are stable: they are unaffected by
// the fragment splits each replica performs locally.
//
// Insertion identifies the operation that created the run. A receiver uses
// it to tell a run that hasn't arrived yet (the target is buffered) from a
// run whose tombstones were already compacted away (the target is vacuous).
type Target struct {
	Loc       Locator           `json:"loc"`
	Insertion clock.OperationID `json:"insertion"`
	Start     int               `json:"start"`
	End       int               `json:"end"`
}

// ErrMalformedOperation reports an operation that doesn't have exactly one
// valid payload.
var ErrMalformedOperation = errors.New("malformed operation")

func (op Operation) validate() error {
	if op.ID.IsZero() {
		return fmt.Errorf("%w: zero operation id", ErrMalformedOperation)
	}
	switch {
	case op.Insert != nil && op.Delete != nil:
		return fmt.Errorf("%w: both insert and delete set", ErrMalformedOperation)
	case op.Insert != nil:
		if len(op.Insert.Loc) == 0 || op.Insert.Text == "" {
			return fmt.Errorf("%w: empty insert", ErrMalformedOperation)
		}
	case op.Delete != nil:
		if len(op.Delete.Targets) == 0 {
			return fmt.Errorf("%w: delete without targets", ErrMalformedOperation)
		}
		for _, t := range op.Delete.Targets {
			if len(t.Loc) == 0 || t.Insertion.IsZero() || t.Start < 0 || t.Start >= t.End {
				return fmt.Errorf("%w: invalid delete target", ErrMalformedOperation)
			}
		}
	default:
		return fmt.Errorf("%w: neither insert nor delete set", ErrMalformedOperation)
	}
	return nil
}

func (op Operation) String() string {
	switch {
	case op.Insert != nil:
		return fmt.Sprintf("Operation(%v, insert %q at %v)", op.ID, op.Insert.Text, op.Insert.Loc)
	case op.Delete != nil:
		return fmt.Sprintf("Operation(%v, delete %d targets)", op.ID, len(op.Delete.Targets))
	default:
		return fmt.Sprintf("Operation(%v, empty)", op.ID)
	}
}

// EncodeOperations serializes a batch of operations for the transport
// layer.
func EncodeOperations(ops []Operation) ([]byte, error) {
	return json.Marshal(ops)
}

// DecodeOperations deserializes a batch of operations received from the
// transport layer.
func DecodeOperations(data []byte) ([]Operation, error) {
	var ops []Operation
	if err := json.Unmarshal(data, &ops); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOperation, err)
	}
	return ops, nil
}
