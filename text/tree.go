package text

import (
	"math/rand"
	"strings"
)

// The fragment tree is an ordered sum-tree keyed by locator: a treap whose
// nodes aggregate the byte and line counts of their subtrees, so that
// offset<->locator conversion and line lookups run in O(log n).
//
// Nodes are immutable: every mutation copies the path from the root down to
// the change and leaves the rest of the tree shared. A snapshot is therefore
// just a root pointer, and readers are never blocked by writers.
//
// The treap keeps the heap invariant pri(parent) <= pri(children) over
// random priorities, which balances the tree in expectation regardless of
// key distribution.

// summary aggregates the statistics of a subtree.
type summary struct {
	// frags is the number of fragments, tombstones included.
	frags int
	// bytes is the total byte count, tombstones included.
	bytes int
	// visibleBytes counts only non-tombstoned fragments.
	visibleBytes int
	// newlines and visibleNewlines count '\n' bytes, with the same split.
	newlines        int
	visibleNewlines int
}

func (s summary) add(o summary) summary {
	return summary{
		frags:           s.frags + o.frags,
		bytes:           s.bytes + o.bytes,
		visibleBytes:    s.visibleBytes + o.visibleBytes,
		newlines:        s.newlines + o.newlines,
		visibleNewlines: s.visibleNewlines + o.visibleNewlines,
	}
}

func fragSummary(f *Fragment) summary {
	n := strings.Count(f.Text, "\n")
	s := summary{frags: 1, bytes: f.Len(), newlines: n}
	if f.Visible() {
		s.visibleBytes = f.Len()
		s.visibleNewlines = n
	}
	return s
}

type node struct {
	frag        *Fragment
	pri         uint64
	left, right *node
	sum         summary
}

func subSummary(n *node) summary {
	if n == nil {
		return summary{}
	}
	return n.sum
}

// mk builds a node from parts, recomputing its summary.
func mk(f *Fragment, pri uint64, left, right *node) *node {
	n := &node{frag: f, pri: pri, left: left, right: right}
	n.sum = subSummary(left).add(fragSummary(f)).add(subSummary(right))
	return n
}

func newLeaf(f *Fragment) *node {
	return mk(f, rand.Uint64(), nil, nil)
}

// merge joins two trees where every key of a precedes every key of b.
func merge(a, b *node) *node {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if a.pri <= b.pri {
		return mk(a.frag, a.pri, a.left, merge(a.right, b))
	}
	return mk(b.frag, b.pri, merge(a, b.left), b.right)
}

// splitLoc splits the tree into fragments with locator < loc and >= loc.
func splitLoc(n *node, loc Locator) (*node, *node) {
	if n == nil {
		return nil, nil
	}
	if n.frag.Loc.Compare(loc) < 0 {
		l, r := splitLoc(n.right, loc)
		return mk(n.frag, n.pri, n.left, l), r
	}
	l, r := splitLoc(n.left, loc)
	return l, mk(n.frag, n.pri, r, n.right)
}

// insertNode splices a fragment into the tree. The fragment's locator must
// not already be present.
func insertNode(n *node, f *Fragment) *node {
	l, r := splitLoc(n, f.Loc)
	return merge(merge(l, newLeaf(f)), r)
}

// seekBefore returns the fragment with the greatest locator < loc, or nil.
func seekBefore(n *node, loc Locator) *Fragment {
	var best *Fragment
	for n != nil {
		if n.frag.Loc.Compare(loc) < 0 {
			best = n.frag
			n = n.right
		} else {
			n = n.left
		}
	}
	return best
}

// seekAtOrBefore returns the fragment with the greatest locator <= loc, or
// nil.
func seekAtOrBefore(n *node, loc Locator) *Fragment {
	var best *Fragment
	for n != nil {
		if n.frag.Loc.Compare(loc) <= 0 {
			best = n.frag
			n = n.right
		} else {
			n = n.left
		}
	}
	return best
}

// lastFragment returns the fragment with the greatest locator, or nil.
func lastFragment(n *node) *Fragment {
	if n == nil {
		return nil
	}
	for n.right != nil {
		n = n.right
	}
	return n.frag
}

// popMin removes and returns the tree's first fragment.
func popMin(n *node) (*Fragment, *node) {
	if n.left == nil {
		return n.frag, n.right
	}
	f, l := popMin(n.left)
	return f, mk(n.frag, n.pri, l, n.right)
}

// replaceFragment substitutes a fragment by the given pieces, which must
// occupy the same span of the key space.
func replaceFragment(n *node, f *Fragment, pieces ...*Fragment) *node {
	left, rest := splitLoc(n, f.Loc)
	removed, rest := popMin(rest)
	if removed != f {
		panic("replaceFragment: fragment not in tree")
	}
	var mid *node
	for _, piece := range pieces {
		mid = merge(mid, newLeaf(piece))
	}
	return merge(merge(left, mid), rest)
}

// visibleOffsetOf returns the visible byte offset of the fragment with the
// given locator, i.e. the visible length of everything ordered before it.
func visibleOffsetOf(n *node, loc Locator) int {
	off := 0
	for n != nil {
		switch c := loc.Compare(n.frag.Loc); {
		case c < 0:
			n = n.left
		case c > 0:
			off += subSummary(n.left).visibleBytes + n.frag.visibleLen()
			n = n.right
		default:
			return off + subSummary(n.left).visibleBytes
		}
	}
	return off
}

// fragAtVisibleOffset returns the visible fragment containing the given
// offset, along with the offset at which the fragment starts. Offsets at
// the end of the document (or past it) return nil and the total length.
func fragAtVisibleOffset(n *node, off int) (*Fragment, int) {
	start := 0
	for n != nil {
		leftBytes := subSummary(n.left).visibleBytes
		if off < leftBytes {
			n = n.left
			continue
		}
		off -= leftBytes
		start += leftBytes
		v := n.frag.visibleLen()
		if off < v {
			return n.frag, start
		}
		off -= v
		start += v
		n = n.right
	}
	return nil, start
}

// offsetOfRow returns the visible byte offset of the first character of the
// given zero-based row, i.e. the offset just past the row-th visible
// newline. Rows past the last line return the total length.
func offsetOfRow(n *node, row int) int {
	if row <= 0 {
		return 0
	}
	off := 0
	for n != nil {
		leftLines := subSummary(n.left).visibleNewlines
		if row <= leftLines {
			n = n.left
			continue
		}
		row -= leftLines
		off += subSummary(n.left).visibleBytes
		if n.frag.Visible() {
			cnt := strings.Count(n.frag.Text, "\n")
			if row <= cnt {
				// The row starts within this fragment.
				text := n.frag.Text
				for ; row > 0; row-- {
					i := strings.IndexByte(text, '\n')
					off += i + 1
					text = text[i+1:]
				}
				return off
			}
			row -= cnt
			off += n.frag.Len()
		}
		n = n.right
	}
	return off
}

// newlinesBeforeOffset returns the number of visible newlines strictly
// before the given visible byte offset.
func newlinesBeforeOffset(n *node, off int) int {
	lines := 0
	for n != nil {
		leftBytes := subSummary(n.left).visibleBytes
		if off < leftBytes {
			n = n.left
			continue
		}
		off -= leftBytes
		lines += subSummary(n.left).visibleNewlines
		v := n.frag.visibleLen()
		if off < v {
			return lines + strings.Count(n.frag.Text[:off], "\n")
		}
		off -= v
		if n.frag.Visible() {
			lines += strings.Count(n.frag.Text, "\n")
		}
		n = n.right
	}
	return lines
}

// +-----------+
// | Iteration |
// +-----------+

// iter walks fragments in locator order.
type iter struct {
	stack []*node
}

func (it *iter) pushLeft(n *node) {
	for n != nil {
		it.stack = append(it.stack, n)
		n = n.left
	}
}

// iterAll positions an iterator at the tree's first fragment.
func iterAll(n *node) *iter {
	it := &iter{}
	it.pushLeft(n)
	return it
}

// iterFrom positions an iterator at the first fragment with locator >= loc.
func iterFrom(n *node, loc Locator) *iter {
	it := &iter{}
	for n != nil {
		if n.frag.Loc.Compare(loc) < 0 {
			n = n.right
		} else {
			it.stack = append(it.stack, n)
			n = n.left
		}
	}
	return it
}

// next returns the next fragment, or nil when exhausted.
func (it *iter) next() *Fragment {
	if len(it.stack) == 0 {
		return nil
	}
	n := it.stack[len(it.stack)-1]
	it.stack = it.stack[:len(it.stack)-1]
	it.pushLeft(n.right)
	return n.frag
}
