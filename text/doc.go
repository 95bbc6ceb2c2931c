/*
Package text implements a replicated text buffer for collaborative editing.

Each participant owns a replica of the document. Local edits return
operations that are relayed to the other replicas and integrated with
ApplyRemote; once every replica has observed the same set of operations,
all of them hold identical content, regardless of the order the
operations arrived in.

# Locators

A character's position in the document is given by a locator, a sequence
of (position, replica) digits compared lexicographically. Between any two
locators there is always room for another: when a replica runs out of
space between two adjacent positions, it appends a digit instead. The
replica ID inside each digit makes locators synthesized concurrently by
different replicas distinct, so two inserts at the same spot never
collide, and every replica orders them the same way.

An insert operation carries a single locator for its whole run of text;
the positions of the individual characters are implicit, spread at fixed
strides under the run's locator. Deletes address sub-ranges of a run by
those stable run offsets, so replicas never need to agree on how a run
was split by later edits.

# Fragments and tombstones

The document is a sequence of fragments ordered by locator, stored in a
balanced tree that aggregates byte and line counts. Deleted text is not
removed but tombstoned, because concurrent operations and anchors may
still refer to it; tombstones can be physically discarded with Compact
once every replica is known to have observed their deletion.

# Anchors

An Anchor is a stable reference to a document position. It survives
concurrent edits anywhere in the document, and its bias controls which
side of an insertion at its exact position it sticks to. Anchors resolve
against a Snapshot, an immutable view of the buffer that can be queried
concurrently with ongoing edits.
*/
package text
