package text

import (
	"strings"

	"github.com/google/uuid"

	"github.com/brunokim/cotext/clock"
)

// Point is a zero-based row/column position. Column is a byte offset within
// the row.
type Point struct {
	Row, Column int
}

// TextSummary aggregates statistics over a span of visible text.
type TextSummary struct {
	// Bytes is the span's length.
	Bytes int
	// Lines is the number of newlines in the span.
	Lines int
}

// A Snapshot is an immutable, self-consistent view of a buffer: the fragment
// tree plus the version it was observed at. Snapshots are cheap handles that
// structurally share the tree; taking one never copies text, and holding one
// never blocks writers.
type Snapshot struct {
	id      uuid.UUID
	root    *node
	version clock.Version
}

// ID returns the identity of the buffer the snapshot was taken from.
func (s *Snapshot) ID() uuid.UUID {
	return s.id
}

// Version returns the snapshot's version. The returned map is shared and
// must not be mutated.
func (s *Snapshot) Version() clock.Version {
	return s.version
}

// Len returns the visible byte length of the document.
func (s *Snapshot) Len() int {
	return subSummary(s.root).visibleBytes
}

// LineCount returns the number of lines in the document. An empty document
// has one line.
func (s *Snapshot) LineCount() int {
	return subSummary(s.root).visibleNewlines + 1
}

// String returns the visible document content.
func (s *Snapshot) String() string {
	var sb strings.Builder
	sb.Grow(s.Len())
	it := iterAll(s.root)
	for f := it.next(); f != nil; f = it.next() {
		if f.Visible() {
			sb.WriteString(f.Text)
		}
	}
	return sb.String()
}

// TextRange returns the visible content in [start, end). Offsets are
// clamped to the document.
func (s *Snapshot) TextRange(start, end int) string {
	start = clamp(start, 0, s.Len())
	end = clamp(end, start, s.Len())
	if start == end {
		return ""
	}
	var sb strings.Builder
	sb.Grow(end - start)
	f, fragStart := fragAtVisibleOffset(s.root, start)
	it := iterFrom(s.root, f.Loc)
	off := fragStart
	for f = it.next(); f != nil && off < end; f = it.next() {
		if !f.Visible() {
			continue
		}
		lo := clamp(start-off, 0, f.Len())
		hi := clamp(end-off, 0, f.Len())
		sb.WriteString(f.Text[lo:hi])
		off += f.Len()
	}
	return sb.String()
}

// FragmentAt returns the fragment containing the given visible offset, and
// the offset at which it starts. At a fragment boundary, bias selects which
// side is returned: Left the fragment ending there, Right the one starting
// there. Returns nil at the document boundaries where no fragment is on the
// chosen side.
func (s *Snapshot) FragmentAt(off int, bias Bias) (*Fragment, int) {
	off = clamp(off, 0, s.Len())
	if bias == Left {
		if off == 0 {
			return nil, 0
		}
		f, start := fragAtVisibleOffset(s.root, off-1)
		return f, start
	}
	if off == s.Len() {
		return nil, off
	}
	return fragAtVisibleOffset(s.root, off)
}

// OffsetForLocator returns the visible byte offset of the fragment with the
// given locator. Tombstoned fragments resolve to the offset where their
// content would be.
func (s *Snapshot) OffsetForLocator(loc Locator) int {
	return visibleOffsetOf(s.root, loc)
}

// RangeSummary returns byte and line statistics for the span [start, end).
func (s *Snapshot) RangeSummary(start, end int) TextSummary {
	start = clamp(start, 0, s.Len())
	end = clamp(end, start, s.Len())
	return TextSummary{
		Bytes: end - start,
		Lines: newlinesBeforeOffset(s.root, end) - newlinesBeforeOffset(s.root, start),
	}
}

// OffsetToPoint converts a visible byte offset to a row/column position.
func (s *Snapshot) OffsetToPoint(off int) Point {
	off = clamp(off, 0, s.Len())
	row := newlinesBeforeOffset(s.root, off)
	return Point{Row: row, Column: off - offsetOfRow(s.root, row)}
}

// PointToOffset converts a row/column position to a visible byte offset.
// Positions past the end of a row clamp to the row's last column.
func (s *Snapshot) PointToOffset(p Point) int {
	lastRow := subSummary(s.root).visibleNewlines
	if p.Row > lastRow {
		return s.Len()
	}
	if p.Row < 0 {
		return 0
	}
	start := offsetOfRow(s.root, p.Row)
	end := s.Len()
	if p.Row < lastRow {
		// Exclude the row's newline.
		end = offsetOfRow(s.root, p.Row+1) - 1
	}
	return start + clamp(p.Column, 0, end-start)
}

// AnchorAt returns an anchor at the given offset with the given bias,
// interpreted at this snapshot's version.
func (s *Snapshot) AnchorAt(off int, bias Bias) Anchor {
	return Anchor{Offset: clamp(off, 0, s.Len()), Bias: bias, Version: s.version}
}

// AnchorBefore returns a left-biased anchor at the given offset.
func (s *Snapshot) AnchorBefore(off int) Anchor {
	return s.AnchorAt(off, Left)
}

// AnchorAfter returns a right-biased anchor at the given offset.
func (s *Snapshot) AnchorAfter(off int) Anchor {
	return s.AnchorAt(off, Right)
}

// AnchorRange returns a range spanning [start, end), with a left-biased
// start and right-biased end so the range absorbs concurrent insertions at
// its boundaries.
func (s *Snapshot) AnchorRange(start, end int) Range {
	return Range{Start: s.AnchorBefore(start), End: s.AnchorAfter(end)}
}
