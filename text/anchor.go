package text

import (
	"fmt"
	"math"

	"github.com/brunokim/cotext/clock"
)

// Bias determines which side of an insertion an anchor sticks to when text
// is inserted exactly at its position.
type Bias int

const (
	// Left keeps the anchor before text inserted at its position.
	Left Bias = iota
	// Right keeps the anchor after text inserted at its position.
	Right
)

func (b Bias) String() string {
	switch b {
	case Left:
		return "Left"
	case Right:
		return "Right"
	default:
		return fmt.Sprintf("Bias(%d)", int(b))
	}
}

// An Anchor is a stable logical reference to a document position. It records
// a byte offset interpreted at a specific version, plus a bias; resolving it
// against any later snapshot yields a position that is unaffected by edits
// made elsewhere in the document, and that sticks to the chosen side of
// concurrent insertions at the same point.
//
// Anchors are immutable. They never become invalid: resolving against a much
// later snapshot may only require a longer history traversal.
type Anchor struct {
	// Offset is the visible byte offset at Version.
	Offset int
	// Bias is the side the anchor sticks to.
	Bias Bias
	// Version is the version the offset is interpreted at. A nil version
	// marks the min/max sentinels, which resolve against any snapshot.
	Version clock.Version
}

// AnchorMin returns the sentinel anchoring the start of any document.
func AnchorMin() Anchor {
	return Anchor{Offset: 0, Bias: Left}
}

// AnchorMax returns the sentinel anchoring the end of any document.
func AnchorMax() Anchor {
	return Anchor{Offset: math.MaxInt, Bias: Right}
}

func clamp(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Resolve returns the anchor's byte offset in the given snapshot.
//
// The snapshot must contain every operation the anchor's version has
// observed; resolving an anchor from a version the snapshot has never seen
// indicates a protocol violation upstream, and panics.
func (a Anchor) Resolve(s *Snapshot) int {
	if a.Version == nil {
		return clamp(a.Offset, 0, s.Len())
	}
	switch a.Version.Compare(s.version) {
	case clock.Equal:
		return clamp(a.Offset, 0, s.Len())
	case clock.Less:
		// Resolved below by walking the fragments.
	default:
		panic(fmt.Sprintf("anchor version %v is not contained in snapshot version %v", a.Version, s.version))
	}
	need := a.Offset
	if need <= 0 && a.Bias == Left {
		return 0
	}
	now := 0
	it := iterAll(s.root)
	for f := it.next(); f != nil; f = it.next() {
		if f.VisibleAt(a.Version) {
			then := f.Len()
			if need < then || (need == then && a.Bias == Left) {
				// The anchor lands in this fragment. If the fragment has
				// since been deleted, clamp to its current position.
				d := need
				if v := f.visibleLen(); d > v {
					d = v
				}
				return now + d
			}
			need -= then
		}
		now += f.visibleLen()
	}
	return now
}

// Cmp returns the relative order of two anchors, resolved against the given
// snapshot. Anchors from the same version with equal offsets are ordered by
// bias alone (Left < Right); otherwise both are resolved to document offsets
// and compared numerically, falling back to bias on exact ties.
func (a Anchor) Cmp(b Anchor, s *Snapshot) int {
	if a.Offset == b.Offset && sameVersion(a.Version, b.Version) {
		return int(a.Bias) - int(b.Bias)
	}
	x, y := a.Resolve(s), b.Resolve(s)
	if x != y {
		if x < y {
			return -1
		}
		return +1
	}
	return int(a.Bias) - int(b.Bias)
}

func sameVersion(a, b clock.Version) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Compare(b) == clock.Equal
}

// BiasLeft returns an anchor at the same position that sticks to the text
// before it, materialized against the given snapshot.
func (a Anchor) BiasLeft(s *Snapshot) Anchor {
	if a.Bias == Left {
		return a
	}
	return s.AnchorBefore(a.Resolve(s))
}

// BiasRight returns an anchor at the same position that sticks to the text
// after it, materialized against the given snapshot.
func (a Anchor) BiasRight(s *Snapshot) Anchor {
	if a.Bias == Right {
		return a
	}
	return s.AnchorAfter(a.Resolve(s))
}

// A Range is a pair of anchors delimiting a span of the document.
type Range struct {
	Start, End Anchor
}

// Cmp orders ranges by their start anchors and, on equal starts, by their
// end anchors in reverse, so that a longer range sorts before a shorter one
// sharing the same start. This is the convention used to stably order
// overlapping selections and decorations.
func (r Range) Cmp(other Range, s *Snapshot) int {
	if c := r.Start.Cmp(other.Start, s); c != 0 {
		return c
	}
	return other.End.Cmp(r.End, s)
}

// Offsets resolves both endpoints against the given snapshot.
func (r Range) Offsets(s *Snapshot) (start, end int) {
	return r.Start.Resolve(s), r.End.Resolve(s)
}
