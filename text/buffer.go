package text

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tidwall/btree"

	"github.com/brunokim/cotext/clock"
	"github.com/brunokim/cotext/diff"
)

// Errors returned by buffer operations.
var (
	ErrRangeInvalid   = errors.New("invalid range")
	ErrRangesOverlap  = errors.New("edit ranges overlap or are out of order")
	ErrBufferMismatch = errors.New("operation addressed to a different buffer")
	ErrUnknownVersion = errors.New("anchor version not observed by this replica")
)

// IntegrationError reports an operation batch that cannot be integrated.
// It indicates a protocol violation upstream; the transport layer should
// trigger a full resynchronization of this replica rather than attempt
// local repair.
type IntegrationError struct {
	Op  Operation
	Err error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("integrating %v: %v", e.Op, e.Err)
}

func (e *IntegrationError) Unwrap() error { return e.Err }

// OffsetRange is a visible byte range [Start, End) of the current document.
type OffsetRange struct {
	Start, End int
}

// A Buffer is one replica's view of a collaborative text document.
//
// Local mutations (Edit, InsertText, DeleteRange, SetText) stamp fresh
// operation IDs, mutate the fragment tree, and return the operations for
// the transport layer to relay. Remote operations are integrated with
// ApplyRemote, in any delivery order; all replicas that observe the same
// set of operations converge to identical content.
//
// Writers are serialized by a mutex and publish a new immutable snapshot on
// every mutation. Readers grab the latest snapshot atomically and are never
// blocked, nor can they observe a torn state.
type Buffer struct {
	id      uuid.UUID
	mu      sync.Mutex // serializes all mutations
	current atomic.Pointer[Snapshot]
	lamport clock.Lamport
	// deferred holds remote delete targets whose insertion hasn't arrived
	// yet, keyed by the target's base locator.
	deferred *btree.BTreeG[pendingDelete]
	// pending holds remote operations delivered ahead of an earlier
	// operation from the same replica, keyed by (replica, time). They are
	// integrated once the sequence is contiguous again.
	pending *btree.BTreeG[Operation]
}

type pendingDelete struct {
	target Target
	id     clock.OperationID
}

func pendingLess(a, b pendingDelete) bool {
	if c := a.target.Loc.Compare(b.target.Loc); c != 0 {
		return c < 0
	}
	if a.target.Start != b.target.Start {
		return a.target.Start < b.target.Start
	}
	return a.id.Compare(b.id) < 0
}

func operationLess(a, b Operation) bool {
	if a.ID.Replica != b.ID.Replica {
		return a.ID.Replica < b.ID.Replica
	}
	return a.ID.Time < b.ID.Time
}

// NewBuffer creates a new document owned by the given replica, with the
// base text recorded as this replica's first operation.
//
// Replica IDs are assigned externally (e.g., by the session server) and
// must be unique within a session. Further replicas of the same document
// are created with Fork.
func NewBuffer(replica clock.ReplicaID, base string) *Buffer {
	b := &Buffer{
		id:       uuidv1(),
		lamport:  clock.Lamport{Replica: replica},
		deferred: btree.NewBTreeG[pendingDelete](pendingLess),
		pending:  btree.NewBTreeG[Operation](operationLess),
	}
	version := clock.NewVersion()
	var root *node
	if base != "" {
		id, err := b.lamport.Tick()
		if err != nil {
			panic(err) // Unreachable: the clock starts at zero.
		}
		loc := Between(MinLocator(), MaxLocator(), replica)
		root = insertNode(nil, newFragment(loc, id, base))
		version.Observe(id)
	}
	b.current.Store(&Snapshot{id: b.id, root: root, version: version})
	return b
}

// Fork creates another replica of the same document, sharing all history
// observed so far. The fragment tree is structurally shared; the two
// buffers are fully independent afterwards.
func (b *Buffer) Fork(replica clock.ReplicaID) *Buffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := b.current.Load()
	remote := &Buffer{
		id: b.id,
		// The new replica's clock resumes from whatever this replica has
		// already been observed to produce, keeping its times contiguous.
		lamport:  clock.Lamport{Replica: replica, Time: snap.version[replica]},
		deferred: b.deferred.Copy(),
		pending:  b.pending.Copy(),
	}
	remote.current.Store(&Snapshot{id: b.id, root: snap.root, version: snap.version.Clone()})
	return remote
}

// ID returns the document's identity, shared by all replicas forked from
// the same buffer.
func (b *Buffer) ID() uuid.UUID { return b.id }

// Replica returns the replica that owns this buffer.
func (b *Buffer) Replica() clock.ReplicaID { return b.lamport.Replica }

// Snapshot returns the latest published snapshot. It is immutable and safe
// to query concurrently with ongoing edits.
func (b *Buffer) Snapshot() *Snapshot {
	return b.current.Load()
}

// Text returns the current visible content.
func (b *Buffer) Text() string { return b.Snapshot().String() }

// Len returns the current visible length in bytes.
func (b *Buffer) Len() int { return b.Snapshot().Len() }

// Version returns the latest published version. The returned map must not
// be mutated.
func (b *Buffer) Version() clock.Version { return b.Snapshot().version }

// DeferredLen returns the number of remote delete targets waiting for
// their insertion to arrive.
func (b *Buffer) DeferredLen() int { return b.deferred.Len() }

// PendingLen returns the number of remote operations waiting for an earlier
// operation from the same replica to arrive.
func (b *Buffer) PendingLen() int { return b.pending.Len() }

// +-------------+
// | Local edits |
// +-------------+

// editSpec is a single replacement in current visible coordinates.
type editSpec struct {
	start, end int
	text       string
}

// editRecord remembers where an edit landed, locator-wise, so its bounding
// anchors can be computed after all edits are applied.
type editRecord struct {
	insLoc Locator // base of the inserted run, if any
	insLen int
	delLoc Locator // locator of the first tombstoned piece, if any
	// Fallback position for no-op edits.
	refLoc   Locator
	refDelta int
	atEnd    bool
}

// Edit replaces each of the given ranges with newText. Ranges are in
// current visible byte coordinates, and must be sorted and non-overlapping.
//
// Each non-empty range produces one delete operation, and the replacement
// text produces one insert operation per range; all are stamped with fresh
// operation IDs and returned for the transport layer. The returned anchor
// ranges bound each edited region in the new snapshot.
func (b *Buffer) Edit(ranges []OffsetRange, newText string) ([]Operation, []Range, error) {
	edits := make([]editSpec, len(ranges))
	for i, r := range ranges {
		edits[i] = editSpec{start: r.Start, end: r.End, text: newText}
	}
	return b.edit(edits)
}

// InsertText inserts text at the position of the given anchor, and returns
// the operation for the transport layer along with an anchor at the end of
// the inserted text.
func (b *Buffer) InsertText(at Anchor, text string) (Operation, Anchor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := b.current.Load()
	if err := checkAnchorVersion(at, snap); err != nil {
		return Operation{}, Anchor{}, err
	}
	off := at.Resolve(snap)
	ops, anchors, err := b.editLocked([]editSpec{{start: off, end: off, text: text}})
	if err != nil {
		return Operation{}, Anchor{}, err
	}
	if len(ops) == 0 {
		return Operation{}, b.current.Load().AnchorBefore(off), nil
	}
	return ops[0], anchors[0].End.BiasLeft(b.current.Load()), nil
}

// DeleteRange tombstones the text between the two anchors and returns the
// operation for the transport layer.
func (b *Buffer) DeleteRange(r Range) (Operation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := b.current.Load()
	if err := checkAnchorVersion(r.Start, snap); err != nil {
		return Operation{}, err
	}
	if err := checkAnchorVersion(r.End, snap); err != nil {
		return Operation{}, err
	}
	start, end := r.Offsets(snap)
	if start > end {
		return Operation{}, ErrRangeInvalid
	}
	ops, _, err := b.editLocked([]editSpec{{start: start, end: end}})
	if err != nil {
		return Operation{}, err
	}
	if len(ops) == 0 {
		return Operation{}, nil
	}
	return ops[0], nil
}

// SetText replaces the whole content, expressing the change as the minimal
// rune-level edit script between the current and new text. This is how
// whole-document updates from a frontend are folded into the operation
// stream.
func (b *Buffer) SetText(text string) ([]Operation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	edits, err := diff.Edits(b.current.Load().String(), text)
	if err != nil {
		return nil, err
	}
	specs := make([]editSpec, len(edits))
	for i, e := range edits {
		specs[i] = editSpec{start: e.Start, end: e.End, text: e.Text}
	}
	ops, _, err := b.editLocked(specs)
	return ops, err
}

// checkAnchorVersion rejects anchors taken at a version this replica has
// never observed. The caller should treat it as a protocol violation and
// trigger a full resynchronization.
func checkAnchorVersion(a Anchor, s *Snapshot) error {
	if a.Version == nil {
		return nil
	}
	switch a.Version.Compare(s.version) {
	case clock.Equal, clock.Less:
		return nil
	default:
		return fmt.Errorf("%w: %v not contained in %v", ErrUnknownVersion, a.Version, s.version)
	}
}

func (b *Buffer) edit(edits []editSpec) ([]Operation, []Range, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.editLocked(edits)
}

func (b *Buffer) editLocked(edits []editSpec) ([]Operation, []Range, error) {
	snap := b.current.Load()
	docLen := snap.Len()
	for i, e := range edits {
		if e.start < 0 || e.start > e.end || e.end > docLen {
			return nil, nil, fmt.Errorf("%w: [%d, %d) in document of length %d", ErrRangeInvalid, e.start, e.end, docLen)
		}
		if i > 0 && e.start < edits[i-1].end {
			return nil, nil, ErrRangesOverlap
		}
	}

	root := snap.root
	version := snap.version.Clone()
	site := b.lamport.Replica
	perEdit := make([][]Operation, len(edits))
	records := make([]editRecord, len(edits))

	// Apply in reverse so earlier offsets stay valid while editing.
	for i := len(edits) - 1; i >= 0; i-- {
		e := edits[i]
		rec := &records[i]
		if e.end > e.start {
			id, err := b.lamport.Tick()
			if err != nil {
				return nil, nil, err
			}
			var targets []Target
			root, targets, rec.delLoc = deleteVisibleRange(root, e.start, e.end, id)
			version.Observe(id)
			perEdit[i] = append(perEdit[i], Operation{
				ID:     id,
				Buffer: b.id,
				Delete: &DeleteOp{Targets: targets},
			})
		}
		if e.text != "" {
			id, err := b.lamport.Tick()
			if err != nil {
				return nil, nil, err
			}
			root, rec.insLoc = localInsert(root, e.start, e.text, id, site)
			rec.insLen = len(e.text)
			version.Observe(id)
			perEdit[i] = append(perEdit[i], Operation{
				ID:     id,
				Buffer: b.id,
				Insert: &InsertOp{Loc: rec.insLoc, Text: e.text},
			})
		}
		if rec.insLoc == nil && rec.delLoc == nil {
			// No-op edit: remember the enclosing fragment for anchoring.
			if f, start := fragAtVisibleOffset(root, e.start); f != nil {
				rec.refLoc = f.Loc
				rec.refDelta = e.start - start
			} else {
				rec.atEnd = true
			}
		}
	}

	// Edits were processed back to front; emit their operations in
	// document order.
	var ops []Operation
	for _, es := range perEdit {
		ops = append(ops, es...)
	}

	next := &Snapshot{id: b.id, root: root, version: version}
	b.current.Store(next)

	anchors := make([]Range, len(edits))
	for i, rec := range records {
		var start, end int
		switch {
		case rec.insLoc != nil:
			start = next.OffsetForLocator(rec.insLoc)
			end = start + rec.insLen
		case rec.delLoc != nil:
			start = next.OffsetForLocator(rec.delLoc)
			end = start
		case rec.atEnd:
			start, end = next.Len(), next.Len()
		default:
			start = next.OffsetForLocator(rec.refLoc) + rec.refDelta
			end = start
		}
		anchors[i] = next.AnchorRange(start, end)
	}
	return ops, anchors, nil
}

// localInsert splices text at the given visible offset, synthesizing the
// run's base locator from its neighbors. Insertions at a fragment boundary
// land after any tombstones at that boundary, so that replacing a range
// puts the new text where the old text was.
func localInsert(root *node, off int, text string, id clock.OperationID, site clock.ReplicaID) (*node, Locator) {
	f, start := fragAtVisibleOffset(root, off)
	var lhs, rhs Locator
	var splitFrag *Fragment
	splitAt := 0
	switch {
	case f == nil:
		// End of document.
		lhs, rhs = MinLocator(), MaxLocator()
		if last := lastFragment(root); last != nil {
			lhs = last.charLoc(last.End - 1)
		}
	case off == start:
		rhs = f.Loc
		lhs = MinLocator()
		if prev := seekBefore(root, f.Loc); prev != nil {
			lhs = prev.charLoc(prev.End - 1)
		}
	default:
		// Interior of a visible fragment: split it around the insertion.
		splitFrag = f
		splitAt = f.Start + (off - start)
		lhs = f.charLoc(splitAt - 1)
		rhs = f.charLoc(splitAt)
	}
	loc := Between(lhs, rhs, site)
	frag := newFragment(loc, id, text)
	if splitFrag != nil {
		left, right := splitFrag.split(splitAt)
		return replaceFragment(root, splitFrag, left, frag, right), loc
	}
	return insertNode(root, frag), loc
}

// runPiece is a fragment together with the sub-range of it that an edit
// affects, in run coordinates.
type runPiece struct {
	frag   *Fragment
	lo, hi int
}

// tombstonePieces marks each piece's sub-range as deleted by the given
// operation, splitting boundary fragments as needed.
func tombstonePieces(root *node, pieces []runPiece, id clock.OperationID) (*node, Locator) {
	var firstLoc Locator
	for _, p := range pieces {
		f := p.frag
		var parts []*Fragment
		mid := f
		if p.lo > f.Start {
			var left *Fragment
			left, mid = f.split(p.lo)
			parts = append(parts, left)
		}
		if p.hi < mid.End {
			var right *Fragment
			mid, right = mid.split(p.hi)
			parts = append(parts, mid.withDeletion(id), right)
		} else {
			parts = append(parts, mid.withDeletion(id))
		}
		if firstLoc == nil {
			if p.lo > f.Start {
				firstLoc = parts[1].Loc
			} else {
				firstLoc = parts[0].Loc
			}
		}
		root = replaceFragment(root, f, parts...)
	}
	return root, firstLoc
}

// deleteVisibleRange tombstones the visible byte range [a, b), returning
// the wire targets addressing the deleted run ranges and the locator of the
// first tombstoned piece.
func deleteVisibleRange(root *node, a, b int, id clock.OperationID) (*node, []Target, Locator) {
	f, start := fragAtVisibleOffset(root, a)
	if f == nil || a == b {
		return root, nil, nil
	}
	var targets []Target
	var pieces []runPiece
	off := start
	it := iterFrom(root, f.Loc)
	for f = it.next(); f != nil && off < b; f = it.next() {
		if !f.Visible() {
			continue
		}
		lo, hi := off, off+f.Len()
		if lo < a {
			lo = a
		}
		if hi > b {
			hi = b
		}
		if lo < hi {
			rlo := f.Start + (lo - off)
			rhi := f.Start + (hi - off)
			targets = append(targets, Target{Loc: f.Base, Insertion: f.Insertion, Start: rlo, End: rhi})
			pieces = append(pieces, runPiece{frag: f, lo: rlo, hi: rhi})
		}
		off += f.Len()
	}
	root, firstLoc := tombstonePieces(root, pieces, id)
	return root, targets, firstLoc
}

// +-------------------+
// | Remote operations |
// +-------------------+

// ApplyRemote integrates a batch of operations from other replicas. The
// order within the batch doesn't need to match causal order: a delete whose
// insertion hasn't arrived yet is buffered and replayed once it lands, and
// an operation delivered ahead of an earlier one from the same replica is
// held until the gap is filled. Already-integrated operations are skipped,
// so reapplying a batch is a no-op. Malformed operations are skipped as
// well: merging is idempotent, not an error.
//
// An operation addressed to a different buffer is a protocol violation: the
// whole batch is rejected with an IntegrationError, leaving the buffer
// untouched, and the caller should trigger a full resync.
func (b *Buffer) ApplyRemote(ops []Operation) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, op := range ops {
		if op.Buffer != b.id {
			return &IntegrationError{Op: op, Err: ErrBufferMismatch}
		}
	}
	snap := b.current.Load()
	root := snap.root
	version := snap.version.Clone()
	for _, op := range ops {
		if op.validate() != nil || version.Contains(op.ID) {
			continue
		}
		if op.ID.Time != version[op.ID.Replica]+1 {
			// An earlier operation from this replica hasn't arrived yet.
			// Replica times are contiguous, so the version's per-replica
			// maximum tells exactly which operation we are waiting for.
			b.pending.Set(op)
			continue
		}
		root = b.integrate(root, version, op)
		// Integrating may have filled the gap in front of held operations
		// from the same replica; drain them in time order.
		for {
			next, ok := b.pending.Get(Operation{ID: clock.OperationID{
				Replica: op.ID.Replica,
				Time:    version[op.ID.Replica] + 1,
			}})
			if !ok {
				break
			}
			b.pending.Delete(next)
			root = b.integrate(root, version, next)
		}
	}
	b.current.Store(&Snapshot{id: b.id, root: root, version: version})
	return nil
}

// integrate applies a single remote operation to the tree and observes it in
// version. Delete targets whose insertion hasn't arrived are stashed in the
// deferred buffer; their effect is not lost, so the operation still counts
// as integrated.
func (b *Buffer) integrate(root *node, version clock.Version, op Operation) *node {
	switch {
	case op.Insert != nil:
		root = applyInsert(root, op)
		root = b.drainDeferred(root, op.Insert.Loc)
	case op.Delete != nil:
		for _, t := range op.Delete.Targets {
			if version.Contains(t.Insertion) {
				root = applyDeleteTarget(root, t, op.ID)
			} else {
				b.deferred.Set(pendingDelete{target: t, id: op.ID})
			}
		}
	}
	version.Observe(op.ID)
	return root
}

// applyInsert splices a remote insertion at its self-described locator,
// splitting the enclosing fragment when the locator falls in a run's
// interior.
func applyInsert(root *node, op Operation) *node {
	loc, text := op.Insert.Loc, op.Insert.Text
	frag := newFragment(loc, op.ID, text)
	pred := seekBefore(root, loc)
	if pred != nil && loc.Compare(pred.charLoc(pred.End)) < 0 {
		// The locator addresses a position between two characters of pred:
		// find the split offset by comparing against the characters'
		// implicit locators.
		n := pred.End - pred.Start
		i := pred.Start + 1 + sort.Search(n, func(k int) bool {
			return pred.charLoc(pred.Start+1+k).Compare(loc) > 0
		})
		if i < pred.End {
			left, right := pred.split(i)
			return replaceFragment(root, pred, left, frag, right)
		}
	}
	return insertNode(root, frag)
}

// applyDeleteTarget tombstones the pieces of the target's run that overlap
// [t.Start, t.End). The caller has established that the run's insertion was
// integrated; pieces missing from the tree were compacted away, which means
// they are already invisible on every replica and need no marking.
func applyDeleteTarget(root *node, t Target, id clock.OperationID) *node {
	site := t.Insertion.Replica
	startKey := charLocator(t.Loc, t.Start, site)
	endKey := charLocator(t.Loc, t.End, site)
	from := startKey
	if f := seekAtOrBefore(root, startKey); f != nil && f.Base.Equal(t.Loc) && f.Start <= t.Start && t.Start < f.End {
		from = f.Loc
	}
	// Fragments of the run appear in ascending run order; nested runs
	// interleaved between the pieces are skipped.
	var pieces []runPiece
	it := iterFrom(root, from)
	for f := it.next(); f != nil; f = it.next() {
		if !f.Base.Equal(t.Loc) {
			if f.Loc.Compare(endKey) >= 0 {
				break
			}
			continue
		}
		if f.Start >= t.End {
			break
		}
		lo, hi := f.Start, f.End
		if lo < t.Start {
			lo = t.Start
		}
		if hi > t.End {
			hi = t.End
		}
		if lo < hi {
			pieces = append(pieces, runPiece{frag: f, lo: lo, hi: hi})
		}
	}
	root, _ = tombstonePieces(root, pieces, id)
	return root
}

// drainDeferred replays buffered deletes that were waiting for the run
// with the given base locator.
func (b *Buffer) drainDeferred(root *node, base Locator) *node {
	var ready []pendingDelete
	b.deferred.Ascend(pendingDelete{target: Target{Loc: base}}, func(p pendingDelete) bool {
		if !p.target.Loc.Equal(base) {
			return false
		}
		ready = append(ready, p)
		return true
	})
	for _, p := range ready {
		root = applyDeleteTarget(root, p.target, p.id)
		b.deferred.Delete(p)
	}
	return root
}

// +------------+
// | Compaction |
// +------------+

// Compact physically removes tombstoned fragments whose insertion and
// deletions are all contained in baseline, i.e. observed by every replica
// the baseline accounts for (typically the Meet of all replicas' versions).
// It returns the number of fragments removed.
//
// Compaction is an optional space optimization: anchors taken at versions
// before the baseline may afterwards resolve less precisely (clamping to
// the nearest surviving boundary), so callers should only pass baselines
// that every outstanding anchor postdates.
func (b *Buffer) Compact(baseline clock.Version) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := b.current.Load()
	var root *node
	removed := 0
	it := iterAll(snap.root)
	for f := it.next(); f != nil; f = it.next() {
		if !f.Visible() && !f.VisibleAt(baseline) && baseline.Contains(f.Insertion) {
			removed++
			continue
		}
		root = merge(root, newLeaf(f))
	}
	if removed == 0 {
		return 0
	}
	b.current.Store(&Snapshot{id: b.id, root: root, version: snap.version})
	return removed
}
