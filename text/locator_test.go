package text

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/brunokim/cotext/clock"
)

func TestLocatorCompare(t *testing.T) {
	tests := []struct {
		a, b Locator
		want int
	}{
		{Locator{{10, 0}}, Locator{{10, 0}}, 0},
		{Locator{{10, 0}}, Locator{{20, 0}}, -1},
		{Locator{{10, 1}}, Locator{{10, 2}}, -1},
		// A proper prefix sorts before its extensions.
		{Locator{{10, 0}}, Locator{{10, 0}, {5, 0}}, -1},
		{MinLocator(), MaxLocator(), -1},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, test.a.Compare(test.b), "%v.Compare(%v)", test.a, test.b)
		assert.Equal(t, -test.want, test.b.Compare(test.a), "%v.Compare(%v)", test.b, test.a)
	}
}

func TestBetween(t *testing.T) {
	tests := []struct {
		lhs, rhs Locator
	}{
		{MinLocator(), MaxLocator()},
		{Locator{{10, 0}}, Locator{{11, 0}}},
		{Locator{{10, 0}}, Locator{{10, 1}}},
		{Locator{{10, 0}, {maxPos - 1, 3}}, Locator{{11, 0}}},
		{Locator{{10, 0}}, Locator{{10, 0}, {charStride, 2}}},
	}
	for _, test := range tests {
		got := Between(test.lhs, test.rhs, 7)
		assert.Negative(t, test.lhs.Compare(got), "lhs=%v got=%v", test.lhs, got)
		assert.Negative(t, got.Compare(test.rhs), "got=%v rhs=%v", got, test.rhs)
		assert.Equal(t, clock.ReplicaID(7), got[len(got)-1].Site)
	}
}

func TestBetweenPanics(t *testing.T) {
	assert.Panics(t, func() { Between(MaxLocator(), MinLocator(), 0) })
	assert.Panics(t, func() { Between(Locator{{10, 0}}, Locator{{10, 0}}, 0) })
}

// Repeatedly bisecting the same gap must always find room, with locator
// length growing slowly.
func TestBetweenDensity(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	lhs, rhs := MinLocator(), MaxLocator()
	for i := 0; i < 10_000; i++ {
		site := clock.ReplicaID(r.Intn(4))
		mid := Between(lhs, rhs, site)
		require.Negative(t, lhs.Compare(mid), "iteration %d: lhs=%v mid=%v", i, lhs, mid)
		require.Negative(t, mid.Compare(rhs), "iteration %d: mid=%v rhs=%v", i, mid, rhs)
		if r.Intn(2) == 0 {
			lhs = mid
		} else {
			rhs = mid
		}
	}
	got := Between(lhs, rhs, 0)
	assert.Less(t, len(got), 200, "locator grew too long: %v", got)
}

func TestCharLocator(t *testing.T) {
	base := Locator{{1000, 2}}
	prev := base
	for j := 1; j < 10; j++ {
		cur := charLocator(base, j, 2)
		assert.Negative(t, prev.Compare(cur), "j=%d", j)
		// There is room between adjacent characters for interior inserts.
		mid := Between(prev, cur, 3)
		assert.Negative(t, prev.Compare(mid))
		assert.Negative(t, mid.Compare(cur))
		prev = cur
	}
}

func TestLocatorJSON(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 5).Draw(t, "n").(int)
		loc := make(Locator, n)
		for i := range loc {
			loc[i] = Digit{
				Pos:  rapid.Uint64().Draw(t, "pos").(uint64),
				Site: clock.ReplicaID(rapid.Uint16().Draw(t, "site").(uint16)),
			}
		}
		data, err := json.Marshal(loc)
		if err != nil {
			t.Fatal(err)
		}
		var got Locator
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatal(err)
		}
		if !loc.Equal(got) {
			t.Fatalf("locator %v round-tripped to %v", loc, got)
		}
	})
}
