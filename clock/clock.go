/*
Package clock provides the logical-time primitives used to order operations
across replicas of a shared text buffer.

Every replica owns a Lamport clock that stamps each local operation with a
fresh OperationID. Versions summarize the set of operations a replica has
observed, and support the partial-order queries (Contains, Join, Meet,
Compare) that the merge machinery is built on.
*/
package clock

import (
	"errors"
	"fmt"
	"math"
)

// ReplicaID identifies a participant in a collaborative session.
//
// IDs are assigned externally (e.g., by the session server) and must be
// unique within a session. This allows for 64K replicas.
type ReplicaID uint16

// LamportTime is a logical timestamp. Time 0 is considered invalid: it is
// reserved for the zero OperationID.
type LamportTime uint32

// OperationID is the unique identifier of an operation across all replicas.
type OperationID struct {
	// Replica is the replica that created the operation.
	Replica ReplicaID `json:"replica"`
	// Time is the replica's Lamport timestamp when the operation was created.
	Time LamportTime `json:"time"`
}

// IsZero reports whether the ID is the invalid zero value.
func (id OperationID) IsZero() bool {
	return id.Time == 0
}

func (id OperationID) String() string {
	return fmt.Sprintf("R%d@T%02d", id.Replica, id.Time)
}

// Compare returns the relative order between operation IDs.
//
// IDs are ordered ascending by timestamp (older first) and, for concurrent
// operations with the same timestamp, descending by replica (younger first).
// This is a total order used for display and tie-breaking; causal order is
// tracked by Version.
func (id OperationID) Compare(other OperationID) int {
	if id.Time < other.Time {
		return -1
	}
	if id.Time > other.Time {
		return +1
	}
	if id.Replica > other.Replica {
		return -1
	}
	if id.Replica < other.Replica {
		return +1
	}
	return 0
}

// ErrTimeExhausted is returned when a replica's Lamport clock overflows.
var ErrTimeExhausted = errors.New("reached limit of operations: 2³² (4.294.967.296)")

// Lamport is a replica's logical clock. It is owned by a single buffer and
// is not safe for concurrent use; the buffer serializes access to it.
//
// Times are contiguous: the n-th operation a replica produces has time n.
// This makes a Version's per-replica maximum an exact summary of the
// operations it contains, which integration relies on to detect duplicates
// under out-of-order delivery. Causal ordering across replicas is tracked
// by Version, not by comparing times.
type Lamport struct {
	// Replica is the owning replica.
	Replica ReplicaID
	// Time is the latest timestamp produced.
	Time LamportTime
}

// Tick advances the clock and returns a fresh OperationID for a local
// operation.
func (c *Lamport) Tick() (OperationID, error) {
	if c.Time == math.MaxUint32 {
		return OperationID{}, ErrTimeExhausted
	}
	c.Time++
	return OperationID{Replica: c.Replica, Time: c.Time}, nil
}
