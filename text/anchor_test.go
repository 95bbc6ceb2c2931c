package text_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunokim/cotext/text"
)

func edit(t *testing.T, b *text.Buffer, start, end int, s string) {
	t.Helper()
	_, _, err := b.Edit([]text.OffsetRange{{Start: start, End: end}}, s)
	require.NoError(t, err)
}

func TestAnchorTracksEdits(t *testing.T) {
	b := text.NewBuffer(0, "hello world")
	a := b.Snapshot().AnchorBefore(5)

	// Insertions before the anchor shift it right.
	edit(t, b, 0, 0, "say: ")
	assert.Equal(t, 10, a.Resolve(b.Snapshot()))

	// Insertions after it don't move it.
	edit(t, b, 16, 16, "!")
	assert.Equal(t, 10, a.Resolve(b.Snapshot()))

	// Deletions before it shift it left.
	edit(t, b, 0, 5, "")
	assert.Equal(t, 5, a.Resolve(b.Snapshot()))
}

func TestAnchorBias(t *testing.T) {
	b := text.NewBuffer(0, "hello world")
	snap := b.Snapshot()
	left := snap.AnchorBefore(5)
	right := snap.AnchorAfter(5)

	// Text inserted exactly at the anchor position: a left-biased anchor
	// stays before it, a right-biased one after.
	edit(t, b, 5, 5, " there")
	assert.Equal(t, 5, left.Resolve(b.Snapshot()))
	assert.Equal(t, 11, right.Resolve(b.Snapshot()))
}

func TestAnchorInDeletedRange(t *testing.T) {
	b := text.NewBuffer(0, "abcdef")
	a := b.Snapshot().AnchorAfter(3)

	// The anchored position is deleted: the anchor collapses to the
	// deletion point.
	edit(t, b, 1, 5, "")
	assert.Equal(t, "af", b.Text())
	assert.Equal(t, 1, a.Resolve(b.Snapshot()))
}

func TestAnchorSentinels(t *testing.T) {
	b := text.NewBuffer(0, "content")
	snap := b.Snapshot()
	assert.Equal(t, 0, text.AnchorMin().Resolve(snap))
	assert.Equal(t, 7, text.AnchorMax().Resolve(snap))

	edit(t, b, 7, 7, " grows")
	assert.Equal(t, 0, text.AnchorMin().Resolve(b.Snapshot()))
	assert.Equal(t, 13, text.AnchorMax().Resolve(b.Snapshot()))
}

func TestAnchorSurvivesRemoteEdits(t *testing.T) {
	b := text.NewBuffer(0, "hello world")
	remote := b.Fork(1)
	a := b.Snapshot().AnchorBefore(6) // before "world"

	ops, _, err := remote.Edit([]text.OffsetRange{{Start: 0, End: 0}}, ">> ")
	require.NoError(t, err)
	require.NoError(t, b.ApplyRemote(ops))

	assert.Equal(t, ">> hello world", b.Text())
	assert.Equal(t, 9, a.Resolve(b.Snapshot()))
}

func TestAnchorResolveAtOwnVersion(t *testing.T) {
	b := text.NewBuffer(0, "stable")
	snap := b.Snapshot()
	for off := 0; off <= 6; off++ {
		assert.Equal(t, off, snap.AnchorBefore(off).Resolve(snap))
		assert.Equal(t, off, snap.AnchorAfter(off).Resolve(snap))
	}
}

func TestAnchorCmp(t *testing.T) {
	b := text.NewBuffer(0, "abcdef")
	snap := b.Snapshot()

	a1 := snap.AnchorBefore(2)
	a2 := snap.AnchorAfter(2)
	a3 := snap.AnchorBefore(4)

	assert.Negative(t, a1.Cmp(a2, snap))
	assert.Positive(t, a2.Cmp(a1, snap))
	assert.Zero(t, a1.Cmp(a1, snap))
	assert.Negative(t, a2.Cmp(a3, snap))
}

func TestRangeCmp(t *testing.T) {
	b := text.NewBuffer(0, "abcdef")
	snap := b.Snapshot()

	outer := snap.AnchorRange(1, 5)
	inner := snap.AnchorRange(1, 3)
	later := snap.AnchorRange(2, 3)

	// Equal starts: the longer range sorts first.
	assert.Negative(t, outer.Cmp(inner, snap))
	assert.Negative(t, inner.Cmp(later, snap))
	assert.Zero(t, outer.Cmp(outer, snap))

	start, end := outer.Offsets(snap)
	assert.Equal(t, 1, start)
	assert.Equal(t, 5, end)
}

func TestAnchorRangeAbsorbsBoundaryInserts(t *testing.T) {
	b := text.NewBuffer(0, "abcdef")
	r := b.Snapshot().AnchorRange(2, 4) // "cd"

	// Inserting at either boundary grows the range.
	edit(t, b, 4, 4, "X")
	edit(t, b, 2, 2, "Y")
	start, end := r.Offsets(b.Snapshot())
	assert.Equal(t, "YcdX", b.Snapshot().TextRange(start, end))
}

func TestBiasConversion(t *testing.T) {
	b := text.NewBuffer(0, "abcdef")
	snap := b.Snapshot()
	a := snap.AnchorAfter(3)

	left := a.BiasLeft(snap)
	assert.Equal(t, text.Left, left.Bias)
	assert.Equal(t, 3, left.Resolve(snap))
	// Already-biased anchors are returned as-is.
	assert.Equal(t, left, left.BiasLeft(snap))
	assert.Equal(t, a, a.BiasRight(snap))
}
