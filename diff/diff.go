// Package diff computes minimal rune-level edit scripts between two
// strings, used to fold whole-document updates into discrete edits.
package diff

import (
	"fmt"
	"unicode/utf8"
)

type Op int

const (
	Keep Op = iota
	Insert
	Delete
)

func (op Op) String() string {
	switch op {
	case Keep:
		return "keep"
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	default:
		return fmt.Sprintf("Op(%d)", int(op))
	}
}

// Step is one operation of an edit script: keep or delete a rune of the
// old string, or insert a rune of the new one.
type Step struct {
	Op   Op
	Char rune
}

// An Edit replaces the bytes [Start, End) of the old string with Text.
type Edit struct {
	Start, End int
	Text       string
}

// Script returns a minimal sequence of steps transforming old into new,
// by dynamic programming over the edit distance. On equal-cost paths,
// insertions are preferred over deletions, which groups each replacement
// as insert-then-delete.
//
// Time complexity: O(len(old) * len(new)).
func Script(old, new string) ([]Step, error) {
	if !utf8.ValidString(old) {
		return nil, fmt.Errorf("old is not valid utf8")
	}
	if !utf8.ValidString(new) {
		return nil, fmt.Errorf("new is not valid utf8")
	}
	from, to := []rune(old), []rune(new)
	m, n := len(from), len(to)
	// dist[i][j] is the edit distance between from[i:] and to[j:],
	// flattened row-major.
	dist := make([]int, (m+1)*(n+1))
	at := func(i, j int) int { return i*(n+1) + j }
	for i := m - 1; i >= 0; i-- {
		dist[at(i, n)] = m - i
	}
	for j := n - 1; j >= 0; j-- {
		dist[at(m, j)] = n - j
	}
	for i := m - 1; i >= 0; i-- {
		for j := n - 1; j >= 0; j-- {
			if from[i] == to[j] {
				dist[at(i, j)] = dist[at(i+1, j+1)]
				continue
			}
			d := dist[at(i, j+1)]
			if del := dist[at(i+1, j)]; del < d {
				d = del
			}
			dist[at(i, j)] = 1 + d
		}
	}
	var steps []Step
	i, j := 0, 0
	for i < m || j < n {
		switch {
		case i < m && j < n && from[i] == to[j]:
			steps = append(steps, Step{Op: Keep, Char: from[i]})
			i++
			j++
		case j < n && (i == m || dist[at(i, j+1)] <= dist[at(i+1, j)]):
			steps = append(steps, Step{Op: Insert, Char: to[j]})
			j++
		default:
			steps = append(steps, Step{Op: Delete, Char: from[i]})
			i++
		}
	}
	return steps, nil
}

// Edits returns a minimal edit script between old and new, coalesced into
// byte-offset replacements over the old string. The edits are sorted by
// position and don't overlap; applying them back to front reproduces new.
func Edits(old, new string) ([]Edit, error) {
	steps, err := Script(old, new)
	if err != nil {
		return nil, err
	}
	var edits []Edit
	cur := Edit{Start: -1}
	off := 0
	flush := func() {
		if cur.Start >= 0 {
			edits = append(edits, cur)
			cur = Edit{Start: -1}
		}
	}
	for _, s := range steps {
		switch s.Op {
		case Keep:
			flush()
			off += utf8.RuneLen(s.Char)
		case Insert:
			if cur.Start < 0 {
				cur = Edit{Start: off, End: off}
			}
			cur.Text += string(s.Char)
		case Delete:
			if cur.Start < 0 {
				cur = Edit{Start: off, End: off}
			}
			off += utf8.RuneLen(s.Char)
			cur.End = off
		}
	}
	flush()
	return edits, nil
}

// Distance returns the number of rune insertions and deletions needed to
// transform old into new.
func Distance(old, new string) (int, error) {
	steps, err := Script(old, new)
	if err != nil {
		return 0, err
	}
	d := 0
	for _, s := range steps {
		if s.Op != Keep {
			d++
		}
	}
	return d, nil
}
