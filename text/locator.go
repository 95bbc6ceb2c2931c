package text

import (
	"fmt"
	"math"
	"strings"

	"github.com/brunokim/cotext/clock"
)

// A Locator is a densely-orderable position identifier: a sequence of digits
// ordered lexicographically, where a new value strictly between any two
// existing ones can always be synthesized. Fragments carry locators so that
// concurrent insertions order consistently on every replica without any
// renumbering.
//
// Each digit pairs a position with the replica that synthesized it. The
// replica component makes locators created concurrently at the same point
// distinct, so the lexicographic order is total over all locators a session
// can produce.
//
// Locators are immutable once created.
type Locator []Digit

// Digit is a single element of a Locator.
type Digit struct {
	// Pos is the digit's position in the dense order.
	Pos uint64 `json:"p"`
	// Site is the replica that synthesized this digit.
	Site clock.ReplicaID `json:"s"`
}

const (
	minPos  = 0
	maxPos  = math.MaxUint64
	maxSite = math.MaxUint16

	// charStride spaces the implicit locators of the characters within a
	// single insertion run. See charLocator.
	charStride = 1 << 32
)

var (
	locatorMin = Locator{{Pos: minPos, Site: 0}}
	locatorMax = Locator{{Pos: maxPos, Site: maxSite}}
)

// MinLocator returns the sentinel that bounds all real locators from below.
func MinLocator() Locator { return locatorMin }

// MaxLocator returns the sentinel that bounds all real locators from above.
func MaxLocator() Locator { return locatorMax }

func (d Digit) compare(other Digit) int {
	if d.Pos < other.Pos {
		return -1
	}
	if d.Pos > other.Pos {
		return +1
	}
	if d.Site < other.Site {
		return -1
	}
	if d.Site > other.Site {
		return +1
	}
	return 0
}

// Compare returns the lexicographic order between locators. A locator that
// is a proper prefix of another sorts before it.
func (l Locator) Compare(other Locator) int {
	n := len(l)
	if len(other) < n {
		n = len(other)
	}
	for i := 0; i < n; i++ {
		if c := l[i].compare(other[i]); c != 0 {
			return c
		}
	}
	if len(l) < len(other) {
		return -1
	}
	if len(l) > len(other) {
		return +1
	}
	return 0
}

// Equal reports whether two locators are identical.
func (l Locator) Equal(other Locator) bool {
	return l.Compare(other) == 0
}

// digitAt returns the i-th digit, padding past the end with the given
// sentinel digit.
func (l Locator) digitAt(i int, pad Digit) Digit {
	if i < len(l) {
		return l[i]
	}
	return pad
}

// Between synthesizes a locator strictly between lhs and rhs, tagged with
// the calling replica's site.
//
// Both locators are treated as infinite fractional digit sequences: lhs
// padded with trailing MIN digits and rhs with trailing MAX digits. Walking
// digit by digit, the first index whose midpoint lands strictly above lhs's
// digit yields the shortest locator satisfying lhs < result < rhs, which
// keeps locators short even after repeated insertions at the same point.
//
// Calling Between with lhs >= rhs is a contract violation and panics.
func Between(lhs, rhs Locator, site clock.ReplicaID) Locator {
	if lhs.Compare(rhs) >= 0 {
		panic(fmt.Sprintf("Between: lhs >= rhs: %v >= %v", lhs, rhs))
	}
	padMin := Digit{Pos: minPos, Site: 0}
	padMax := Digit{Pos: maxPos, Site: maxSite}
	for i := 0; ; i++ {
		da := lhs.digitAt(i, padMin)
		db := rhs.digitAt(i, padMax)
		// Overflow-safe floor average.
		mid := da.Pos/2 + db.Pos/2 + da.Pos&db.Pos&1
		if mid > da.Pos {
			out := make(Locator, i+1)
			for j := 0; j < i; j++ {
				out[j] = lhs.digitAt(j, padMin)
			}
			out[i] = Digit{Pos: mid, Site: site}
			return out
		}
	}
}

// charLocator returns the implicit locator of character j within an
// insertion run whose base locator is loc. Character 0 is the base locator
// itself; later characters extend it with a digit spaced charStride apart,
// leaving room for interior insertions to synthesize digits in between.
func charLocator(loc Locator, j int, site clock.ReplicaID) Locator {
	if j == 0 {
		return loc
	}
	out := make(Locator, len(loc)+1)
	copy(out, loc)
	out[len(loc)] = Digit{Pos: uint64(j) * charStride, Site: site}
	return out
}

func (l Locator) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, d := range l {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%d.%d", d.Pos, d.Site)
	}
	sb.WriteByte(']')
	return sb.String()
}
