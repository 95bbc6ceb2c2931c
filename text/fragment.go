package text

import (
	"fmt"
	"strings"

	"github.com/brunokim/cotext/clock"
)

// Fragment is a contiguous run of text tagged with the operation that
// inserted it and the operations (if any) that deleted it.
//
// An insert operation creates a single fragment covering its whole run.
// Edits that land in a fragment's interior split it into pieces; each piece
// keeps the run's base locator and remembers which sub-range [Start, End) of
// the original run it carries, so pieces stay addressable by every replica
// without the splits ever being communicated.
//
// Deleted fragments are not removed: they are tombstoned by recording the
// deleting operation, because concurrent operations and anchors may still
// reference them.
//
// Fragments are treated as immutable; mutations go through copies.
type Fragment struct {
	// Loc is the fragment's position in the document order: the implicit
	// locator of the first character it carries.
	Loc Locator
	// Base is the locator carried by the insert operation that created the
	// run this fragment belongs to.
	Base Locator
	// Insertion is the operation that inserted the run.
	Insertion clock.OperationID
	// Start and End delimit the sub-range of the run's text carried by this
	// fragment.
	Start, End int
	// Text is the fragment's content, len(Text) == End-Start.
	Text string
	// Deletions are the operations that deleted this fragment, if any.
	Deletions []clock.OperationID
}

func newFragment(base Locator, insertion clock.OperationID, text string) *Fragment {
	return &Fragment{
		Loc:       base,
		Base:      base,
		Insertion: insertion,
		Start:     0,
		End:       len(text),
		Text:      text,
	}
}

// Len returns the fragment's byte length, whether or not it is visible.
func (f *Fragment) Len() int {
	return f.End - f.Start
}

// Visible reports whether the fragment is part of the current document
// content, i.e. it has not been tombstoned.
func (f *Fragment) Visible() bool {
	return len(f.Deletions) == 0
}

// VisibleAt reports whether the fragment is part of the document content at
// the given version: its insertion has been observed and none of its
// deletions have.
func (f *Fragment) VisibleAt(v clock.Version) bool {
	if !v.Contains(f.Insertion) {
		return false
	}
	for _, d := range f.Deletions {
		if v.Contains(d) {
			return false
		}
	}
	return true
}

// visibleLen returns the fragment's contribution to the current document
// length.
func (f *Fragment) visibleLen() int {
	if !f.Visible() {
		return 0
	}
	return f.Len()
}

// split returns two pieces of the fragment, cut at run offset i
// (f.Start < i < f.End). Both pieces share the run's base locator; the right
// piece's position is the implicit locator of character i.
func (f *Fragment) split(i int) (*Fragment, *Fragment) {
	if i <= f.Start || i >= f.End {
		panic(fmt.Sprintf("split: offset %d outside fragment (%d, %d)", i, f.Start, f.End))
	}
	left := *f
	right := *f
	left.End = i
	left.Text = f.Text[:i-f.Start]
	right.Loc = charLocator(f.Base, i, f.Insertion.Replica)
	right.Start = i
	right.Text = f.Text[i-f.Start:]
	return &left, &right
}

// withDeletion returns a copy of the fragment tombstoned by the given
// operation. Recording the same deletion twice is a no-op.
func (f *Fragment) withDeletion(id clock.OperationID) *Fragment {
	for _, d := range f.Deletions {
		if d == id {
			return f
		}
	}
	g := *f
	g.Deletions = make([]clock.OperationID, len(f.Deletions)+1)
	copy(g.Deletions, f.Deletions)
	g.Deletions[len(f.Deletions)] = id
	return &g
}

// charLoc returns the implicit locator of the character at run offset j,
// f.Start <= j <= f.End. Offset f.End addresses the position just past the
// fragment, used as an exclusive bound.
func (f *Fragment) charLoc(j int) Locator {
	return charLocator(f.Base, j, f.Insertion.Replica)
}

func (f *Fragment) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Fragment(%v, %v, [%d:%d) %q", f.Loc, f.Insertion, f.Start, f.End, f.Text)
	if !f.Visible() {
		sb.WriteString(", deleted")
	}
	sb.WriteByte(')')
	return sb.String()
}
