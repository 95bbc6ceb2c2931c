package text_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunokim/cotext/text"
)

func multilineBuffer(t *testing.T) *text.Buffer {
	t.Helper()
	b := text.NewBuffer(0, "one\ntwo\nthree")
	// Force a few fragment splits so lookups cross fragment boundaries.
	edit(t, b, 4, 4, "2=")
	edit(t, b, 4, 6, "")
	return b
}

func TestSnapshotContent(t *testing.T) {
	b := multilineBuffer(t)
	snap := b.Snapshot()
	assert.Equal(t, "one\ntwo\nthree", snap.String())
	assert.Equal(t, 13, snap.Len())
	assert.Equal(t, 3, snap.LineCount())
}

func TestTextRange(t *testing.T) {
	b := multilineBuffer(t)
	snap := b.Snapshot()
	tests := []struct {
		start, end int
		want       string
	}{
		{0, 3, "one"},
		{2, 6, "e\ntw"},
		{4, 13, "two\nthree"},
		{5, 5, ""},
		// Out-of-bounds offsets clamp.
		{-2, 3, "one"},
		{8, 99, "three"},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, snap.TextRange(test.start, test.end),
			"TextRange(%d, %d)", test.start, test.end)
	}
}

func TestOffsetToPoint(t *testing.T) {
	b := multilineBuffer(t)
	snap := b.Snapshot()
	tests := []struct {
		off  int
		want text.Point
	}{
		{0, text.Point{Row: 0, Column: 0}},
		{3, text.Point{Row: 0, Column: 3}},
		{4, text.Point{Row: 1, Column: 0}},
		{7, text.Point{Row: 1, Column: 3}},
		{8, text.Point{Row: 2, Column: 0}},
		{13, text.Point{Row: 2, Column: 5}},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, snap.OffsetToPoint(test.off), "OffsetToPoint(%d)", test.off)
	}
}

func TestPointToOffset(t *testing.T) {
	b := multilineBuffer(t)
	snap := b.Snapshot()
	tests := []struct {
		p    text.Point
		want int
	}{
		{text.Point{Row: 0, Column: 0}, 0},
		{text.Point{Row: 1, Column: 2}, 6},
		{text.Point{Row: 2, Column: 5}, 13},
		// Columns past the end of the row clamp to the row's last column.
		{text.Point{Row: 0, Column: 99}, 3},
		{text.Point{Row: 1, Column: 99}, 7},
		// Rows past the last line clamp to the end.
		{text.Point{Row: 9, Column: 0}, 13},
		{text.Point{Row: -1, Column: 0}, 0},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, snap.PointToOffset(test.p), "PointToOffset(%v)", test.p)
	}
}

func TestPointRoundTrip(t *testing.T) {
	b := multilineBuffer(t)
	snap := b.Snapshot()
	for off := 0; off <= snap.Len(); off++ {
		p := snap.OffsetToPoint(off)
		require.Equal(t, off, snap.PointToOffset(p), "offset %d -> %v", off, p)
	}
}

func TestRangeSummary(t *testing.T) {
	b := multilineBuffer(t)
	snap := b.Snapshot()
	assert.Equal(t, text.TextSummary{Bytes: 13, Lines: 2}, snap.RangeSummary(0, 13))
	assert.Equal(t, text.TextSummary{Bytes: 4, Lines: 1}, snap.RangeSummary(2, 6))
	assert.Equal(t, text.TextSummary{Bytes: 0, Lines: 0}, snap.RangeSummary(5, 5))
}

func TestFragmentAt(t *testing.T) {
	b := text.NewBuffer(0, "left")
	edit(t, b, 4, 4, "right")
	snap := b.Snapshot()
	require.Equal(t, "leftright", snap.String())

	f, start := snap.FragmentAt(4, text.Left)
	require.NotNil(t, f)
	assert.Equal(t, "left", f.Text)
	assert.Equal(t, 0, start)

	f, start = snap.FragmentAt(4, text.Right)
	require.NotNil(t, f)
	assert.Equal(t, "right", f.Text)
	assert.Equal(t, 4, start)

	f, _ = snap.FragmentAt(0, text.Left)
	assert.Nil(t, f)
	f, _ = snap.FragmentAt(9, text.Right)
	assert.Nil(t, f)
}

func TestEmptySnapshot(t *testing.T) {
	b := text.NewBuffer(0, "")
	snap := b.Snapshot()
	assert.Equal(t, "", snap.String())
	assert.Equal(t, 0, snap.Len())
	assert.Equal(t, 1, snap.LineCount())
	assert.Equal(t, text.Point{}, snap.OffsetToPoint(0))
	assert.Equal(t, 0, snap.PointToOffset(text.Point{Row: 5, Column: 5}))
}
