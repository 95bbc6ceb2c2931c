package clock

import (
	"fmt"
	"sort"
	"strings"
)

// Ordering is the result of comparing two versions under the partial order
// induced by operation containment.
type Ordering int

const (
	Equal Ordering = iota
	Less
	Greater
	Incomparable
)

func (o Ordering) String() string {
	switch o {
	case Equal:
		return "Equal"
	case Less:
		return "Less"
	case Greater:
		return "Greater"
	case Incomparable:
		return "Incomparable"
	default:
		return fmt.Sprintf("Ordering(%d)", int(o))
	}
}

// Version records, per replica, the highest Lamport time observed from it.
//
// A version contains an operation iff the operation's time is at or below
// the entry for its replica; since replica times are contiguous, the entry
// determines the exact set of observed operations. Versions form a lattice:
// Join is the least upper bound and Meet the greatest lower bound.
//
// The zero value (nil) is a valid empty version, but must be Cloned before
// observing operations.
type Version map[ReplicaID]LamportTime

// NewVersion creates an empty version.
func NewVersion() Version {
	return make(Version)
}

// Observe records an operation as seen. Observing an already-contained
// operation is a no-op.
func (v Version) Observe(id OperationID) {
	if id.Time > v[id.Replica] {
		v[id.Replica] = id.Time
	}
}

// Contains reports whether the operation has been observed.
func (v Version) Contains(id OperationID) bool {
	return id.Time <= v[id.Replica]
}

// Clone returns an independent copy of the version.
func (v Version) Clone() Version {
	w := make(Version, len(v))
	for r, t := range v {
		w[r] = t
	}
	return w
}

// Join returns the least upper bound of two versions: the per-replica
// maximum. The result contains an operation iff either input does.
func Join(a, b Version) Version {
	v := a.Clone()
	for r, t := range b {
		if t > v[r] {
			v[r] = t
		}
	}
	return v
}

// Meet returns the greatest lower bound of two versions: the per-replica
// minimum. The result contains an operation iff both inputs do, and is the
// latest version that both sides are guaranteed to have seen.
func Meet(a, b Version) Version {
	v := make(Version)
	for r, t := range a {
		if u := b[r]; u < t {
			t = u
		}
		if t > 0 {
			v[r] = t
		}
	}
	return v
}

// Compare returns the partial order between two versions.
//
// Versions are Equal when they contain the same operations, Less/Greater
// when one's operations are a proper subset of the other's, and
// Incomparable when each contains operations the other doesn't.
func (v Version) Compare(other Version) Ordering {
	var hasLess, hasGreater bool
	for r, t := range v {
		u := other[r]
		if t < u {
			hasLess = true
		} else if t > u {
			hasGreater = true
		}
	}
	for r, u := range other {
		if t := v[r]; t < u {
			hasLess = true
		}
	}
	switch {
	case hasLess && hasGreater:
		return Incomparable
	case hasLess:
		return Less
	case hasGreater:
		return Greater
	default:
		return Equal
	}
}

func (v Version) String() string {
	replicas := make([]ReplicaID, 0, len(v))
	for r := range v {
		replicas = append(replicas, r)
	}
	sort.Slice(replicas, func(i, j int) bool { return replicas[i] < replicas[j] })
	var sb strings.Builder
	sb.WriteByte('{')
	for i, r := range replicas {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "R%d:T%d", r, v[r])
	}
	sb.WriteByte('}')
	return sb.String()
}
