package bank

import (
	"sort"
	"sync"

	"github.com/neuromem/bankcore/internal/bankerr"
	"github.com/neuromem/bankcore/internal/entrymodel"
	"github.com/neuromem/bankcore/internal/journal"
	"github.com/neuromem/bankcore/internal/types"
	"github.com/neuromem/bankcore/internal/vectorindex"
)

// ReverseEdge is one incoming edge recorded against the entry it
// targets: who points at it, and with what kind.
type ReverseEdge struct {
	Source types.BankRef
	Kind   types.EdgeKind
}

// DataBank is one bank: its entries, its vector index, and the
// reverse-edge index that lets a deleted entry's incoming edges be
// found without scanning every other bank. Mutations are serialized
// under a single mutex — generalized from the teacher's staging
// index (internal/core/index/index.go), which guarded its entry map
// the same way.
type DataBank struct {
	mu sync.Mutex

	id     types.BankId
	name   string
	config Config

	entries map[types.EntryId]*entrymodel.BankEntry
	index   vectorindex.Index
	alloc   types.EntryIdAllocator

	// reverse[target] is the set of edges pointing at target, keyed by
	// source ref so duplicates collapse.
	reverse map[types.EntryId]map[types.BankRef]types.EdgeKind

	mutationsSincePersist uint32
	lastPersistTick       uint64
	dirty                 bool

	sink journal.Sink
}

// New creates an empty bank bound to id and name, with config's zero
// fields filled by WithDefaults.
func New(id types.BankId, name string, config Config) *DataBank {
	config = config.WithDefaults()
	return &DataBank{
		id:      id,
		name:    name,
		config:  config,
		entries: make(map[types.EntryId]*entrymodel.BankEntry),
		index:   config.IndexKind.newIndex(),
		reverse: make(map[types.EntryId]map[types.BankRef]types.EdgeKind),
	}
}

// Index exposes the bank's vector index for snapshot serialization.
func (b *DataBank) Index() vectorindex.Index {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index
}

func (b *DataBank) Id() types.BankId   { return b.id }
func (b *DataBank) Name() string       { return b.name }
func (b *DataBank) Config() Config     { return b.config }
func (b *DataBank) Len() int           { b.mu.Lock(); defer b.mu.Unlock(); return len(b.entries) }
func (b *DataBank) Dirty() bool        { b.mu.Lock(); defer b.mu.Unlock(); return b.dirty }
func (b *DataBank) LastPersistTick() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastPersistTick
}

// AttachJournal binds the sink that future mutations append to. Called
// by the cluster once replay has completed; never during replay
// itself, so replayed mutations are not re-appended.
func (b *DataBank) AttachJournal(sink journal.Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sink = sink
}

func (b *DataBank) appendJournal(rec journal.Record) error {
	if b.sink == nil {
		return nil
	}
	rec.BankID = b.id
	return b.sink.Append(rec)
}

func (b *DataBank) markDirty() {
	b.dirty = true
	b.mutationsSincePersist++
}

// MarkPersisted resets the dirty/mutation bookkeeping after a
// successful snapshot at tick.
func (b *DataBank) MarkPersisted(tick uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dirty = false
	b.mutationsSincePersist = 0
	b.lastPersistTick = tick
}

// ShouldPersist reports whether this bank has crossed either the
// mutation-count or tick-age threshold since its last snapshot.
func (b *DataBank) ShouldPersist(tick uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.dirty {
		return false
	}
	if b.mutationsSincePersist >= b.config.PersistAfterMutations {
		return true
	}
	if tick > b.lastPersistTick && tick-b.lastPersistTick >= b.config.PersistAfterTicks {
		return true
	}
	return false
}

// Insert adds a new entry, allocating its EntryId from tick (treated
// as unix millis) and the bank's internal sequence counter. Returns
// ErrWidthMismatch if the configured VectorWidth is non-zero and
// vector's length differs from it. If the bank is at max_entries, it first evicts the single
// weakest entry to make room; only if nothing is evictable (an empty
// bank with a zero capacity) does it fail with ErrFull.
func (b *DataBank) Insert(vector []types.Signal, temperature types.Temperature, tick uint64, confidence uint8) (types.EntryId, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.config.VectorWidth != 0 && int(b.config.VectorWidth) != len(vector) {
		return 0, bankerr.Wrap("insert", "", bankerr.ErrWidthMismatch)
	}
	if uint32(len(b.entries)) >= b.config.MaxEntries {
		if len(b.entries) == 0 {
			return 0, bankerr.Wrap("insert", "", bankerr.ErrFull)
		}
		if _, err := b.evictNLocked(1, tick); err != nil {
			return 0, bankerr.Wrap("insert", "", err)
		}
		if uint32(len(b.entries)) >= b.config.MaxEntries {
			return 0, bankerr.Wrap("insert", "", bankerr.ErrFull)
		}
	}

	id := b.alloc.Next(tick)
	entry := entrymodel.New(id, vector, b.id, temperature, tick, confidence)
	b.entries[id] = entry
	b.index.Insert(id, vector)

	if err := b.appendJournal(journal.Record{
		Kind:    journal.KindInsert,
		EntryID: id,
		Payload: journal.EncodeInsert(vector, temperature, tick, confidence),
	}); err != nil {
		return 0, bankerr.Wrap("insert", id.String(), err)
	}
	b.markDirty()
	return id, nil
}

// Get returns the entry for id without bumping access bookkeeping.
func (b *DataBank) Get(id types.EntryId) (*entrymodel.BankEntry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[id]
	return e, ok
}

// Touch bumps id's access bookkeeping and appends a Touch record.
func (b *DataBank) Touch(id types.EntryId, tick uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[id]
	if !ok {
		return bankerr.Wrap("touch", id.String(), bankerr.ErrUnknownEntry)
	}
	e.Touch(tick)
	if err := b.appendJournal(journal.Record{Kind: journal.KindTouch, EntryID: id, Payload: journal.EncodeTouch(tick)}); err != nil {
		return bankerr.Wrap("touch", id.String(), err)
	}
	b.markDirty()
	return nil
}

// AddEdge appends edge to id's outgoing edge list, evicting the
// lowest-weight existing edge if id is already at MaxEdgesPerEntry.
// When edge targets an entry in this same bank, the reverse index is
// updated locally; a cross-bank target is the caller's (the cluster
// Link operation's) responsibility to register on the other bank.
func (b *DataBank) AddEdge(id types.EntryId, edge types.Edge) (pruned *types.Edge, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[id]
	if !ok {
		return nil, bankerr.Wrap("add_edge", id.String(), bankerr.ErrUnknownEntry)
	}

	pruned = e.AddEdge(edge, int(b.config.MaxEdgesPerEntry))
	if pruned != nil && pruned.Target.Bank == b.id {
		b.unregisterReverseLocked(pruned.Target.Entry, types.BankRef{Bank: b.id, Entry: id}, pruned.Kind)
	}
	if edge.Target.Bank == b.id {
		b.registerReverseLocked(edge.Target.Entry, types.BankRef{Bank: b.id, Entry: id}, edge.Kind)
	}

	if jerr := b.appendJournal(journal.Record{Kind: journal.KindAddEdge, EntryID: id, Payload: journal.EncodeAddEdge(edge)}); jerr != nil {
		return pruned, bankerr.Wrap("add_edge", id.String(), jerr)
	}
	b.markDirty()
	return pruned, nil
}

// RegisterReverseEdge records that source points at (this bank, id)
// with kind. Exported so a cluster can register the other side of a
// cross-bank edge.
func (b *DataBank) RegisterReverseEdge(id types.EntryId, source types.BankRef, kind types.EdgeKind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registerReverseLocked(id, source, kind)
}

// UnregisterReverseEdge is the inverse of RegisterReverseEdge.
func (b *DataBank) UnregisterReverseEdge(id types.EntryId, source types.BankRef, kind types.EdgeKind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unregisterReverseLocked(id, source, kind)
}

// ReverseEdges returns the incoming edges recorded against id.
func (b *DataBank) ReverseEdges(id types.EntryId) []ReverseEdge {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.reverse[id]
	if !ok {
		return nil
	}
	out := make([]ReverseEdge, 0, len(set))
	for src, kind := range set {
		out = append(out, ReverseEdge{Source: src, Kind: kind})
	}
	return out
}

func (b *DataBank) registerReverseLocked(id types.EntryId, source types.BankRef, kind types.EdgeKind) {
	set, ok := b.reverse[id]
	if !ok {
		set = make(map[types.BankRef]types.EdgeKind)
		b.reverse[id] = set
	}
	set[source] = kind
}

func (b *DataBank) unregisterReverseLocked(id types.EntryId, source types.BankRef, kind types.EdgeKind) {
	set, ok := b.reverse[id]
	if !ok {
		return
	}
	if set[source] == kind {
		delete(set, source)
	}
	if len(set) == 0 {
		delete(b.reverse, id)
	}
}

// Delete removes id from the entries map and the vector index, drops
// its own reverse bucket, and unregisters any outgoing edges that
// targeted this same bank. It returns the entry's outgoing edges so a
// cluster can unregister the reverse index entries living on other
// banks.
func (b *DataBank) Delete(id types.EntryId) ([]types.Edge, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[id]
	if !ok {
		return nil, bankerr.Wrap("delete", id.String(), bankerr.ErrUnknownEntry)
	}

	for _, edge := range e.Edges {
		if edge.Target.Bank == b.id {
			b.unregisterReverseLocked(edge.Target.Entry, types.BankRef{Bank: b.id, Entry: id}, edge.Kind)
		}
	}
	delete(b.reverse, id)
	delete(b.entries, id)
	b.index.Remove(id)

	if jerr := b.appendJournal(journal.Record{Kind: journal.KindRemove, EntryID: id}); jerr != nil {
		return e.Edges, bankerr.Wrap("delete", id.String(), jerr)
	}
	b.markDirty()
	return e.Edges, nil
}

// QuerySparse ranks every entry against query by sparse integer
// cosine similarity via the configured vector index.
func (b *DataBank) QuerySparse(query []types.Signal, topK int) []vectorindex.Scored {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Query(query, b, topK)
}

// Each implements vectorindex.Source.
func (b *DataBank) Each(fn func(id types.EntryId, vector []types.Signal)) {
	for id, e := range b.entries {
		fn(id, e.Vector)
	}
}

// Vector implements vectorindex.Source.
func (b *DataBank) Vector(id types.EntryId) ([]types.Signal, bool) {
	e, ok := b.entries[id]
	if !ok {
		return nil, false
	}
	return e.Vector, true
}

// Promote raises id's temperature one step and appends a Promote
// record. Reports whether the entry was actually promoted eligible at
// tick.
func (b *DataBank) Promote(id types.EntryId, tick uint64, minAccesses uint32, minAgeTicks uint64) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[id]
	if !ok {
		return false, bankerr.Wrap("promote", id.String(), bankerr.ErrUnknownEntry)
	}
	if !e.PromotionEligible(tick, minAccesses, minAgeTicks) {
		return false, nil
	}
	next, changed := e.Temperature.Promote()
	if !changed {
		return false, nil
	}
	e.Temperature = next
	if jerr := b.appendJournal(journal.Record{Kind: journal.KindPromote, EntryID: id, Payload: journal.EncodeSetTemperature(e.Temperature)}); jerr != nil {
		return false, bankerr.Wrap("promote", id.String(), jerr)
	}
	b.markDirty()
	return true, nil
}

// Demote lowers id's temperature one step if its confidence is below
// threshold.
func (b *DataBank) Demote(id types.EntryId, tick uint64, threshold uint8) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[id]
	if !ok {
		return false, bankerr.Wrap("demote", id.String(), bankerr.ErrUnknownEntry)
	}
	if !e.DemotionEligible(threshold) {
		return false, nil
	}
	next, changed := e.Temperature.Demote()
	if !changed {
		return false, nil
	}
	e.Temperature = next
	if jerr := b.appendJournal(journal.Record{Kind: journal.KindDemote, EntryID: id, Payload: journal.EncodeSetTemperature(e.Temperature)}); jerr != nil {
		return false, bankerr.Wrap("demote", id.String(), jerr)
	}
	b.markDirty()
	return true, nil
}

// ConsolidationPass promotes every eligible entry at tick, returning
// the count promoted.
func (b *DataBank) ConsolidationPass(tick uint64, minAccesses uint32, minAgeTicks uint64) int {
	b.mu.Lock()
	ids := make([]types.EntryId, 0, len(b.entries))
	for id := range b.entries {
		ids = append(ids, id)
	}
	b.mu.Unlock()

	n := 0
	for _, id := range ids {
		ok, err := b.Promote(id, tick, minAccesses, minAgeTicks)
		if err == nil && ok {
			n++
		}
	}
	return n
}

// DemotionPass demotes every entry below threshold, returning the
// count demoted.
func (b *DataBank) DemotionPass(tick uint64, threshold uint8) int {
	b.mu.Lock()
	ids := make([]types.EntryId, 0, len(b.entries))
	for id := range b.entries {
		ids = append(ids, id)
	}
	b.mu.Unlock()

	n := 0
	for _, id := range ids {
		ok, err := b.Demote(id, tick, threshold)
		if err == nil && ok {
			n++
		}
	}
	return n
}

// RemovedEntry is one entry evicted by EvictN, along with the
// outgoing edges it held (for cross-bank reverse-index cleanup).
type RemovedEntry struct {
	ID       types.EntryId
	Outgoing []types.Edge
}

// EvictN removes the n lowest-scoring entries (entrymodel.EvictionScore,
// ties broken by lower EntryId first), appending a single BatchEvict
// record naming all of them.
func (b *DataBank) EvictN(n int, tick uint64) ([]RemovedEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.evictNLocked(n, tick)
}

// evictNLocked is EvictN's body, callable by holders of b.mu (Insert
// uses it directly to make room at capacity without re-locking).
func (b *DataBank) evictNLocked(n int, tick uint64) ([]RemovedEntry, error) {
	if n <= 0 || len(b.entries) == 0 {
		return nil, nil
	}

	type scored struct {
		id    types.EntryId
		score int64
	}
	candidates := make([]scored, 0, len(b.entries))
	for id, e := range b.entries {
		candidates = append(candidates, scored{id: id, score: e.EvictionScore(tick)})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score < candidates[j].score
		}
		return candidates[i].id < candidates[j].id
	})
	if n > len(candidates) {
		n = len(candidates)
	}

	removed := make([]RemovedEntry, 0, n)
	ids := make([]types.EntryId, 0, n)
	for _, c := range candidates[:n] {
		e := b.entries[c.id]
		for _, edge := range e.Edges {
			if edge.Target.Bank == b.id {
				b.unregisterReverseLocked(edge.Target.Entry, types.BankRef{Bank: b.id, Entry: c.id}, edge.Kind)
			}
		}
		delete(b.reverse, c.id)
		delete(b.entries, c.id)
		b.index.Remove(c.id)
		removed = append(removed, RemovedEntry{ID: c.id, Outgoing: e.Edges})
		ids = append(ids, c.id)
	}

	if jerr := b.appendJournal(journal.Record{Kind: journal.KindBatchEvict, Payload: journal.EncodeBatchEvict(ids)}); jerr != nil {
		return removed, bankerr.Wrap("evict_n", "", jerr)
	}
	b.markDirty()
	return removed, nil
}

// Compact rebuilds the vector index from the current entry set and
// drops any reverse-index buckets left empty by prior deletes. It does
// not retry cross-bank dangling edges — that retry loop lives at the
// cluster level, which holds the universe of banks.
func (b *DataBank) Compact() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.index.Rebuild(b)
	for id, set := range b.reverse {
		if len(set) == 0 {
			delete(b.reverse, id)
		}
	}
}

// EachEntry calls fn once per entry, for snapshot serialization. fn
// must not mutate the bank.
func (b *DataBank) EachEntry(fn func(*entrymodel.BankEntry)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.entries {
		fn(e)
	}
}

// LoadEntry inserts an already-constructed entry directly into the
// bank and its index, bypassing allocation and the journal — used by
// the snapshot loader and journal replay.
func (b *DataBank) LoadEntry(e *entrymodel.BankEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[e.ID] = e
	b.index.Insert(e.ID, e.Vector)
	b.alloc.Observe(e.ID)
	for _, edge := range e.Edges {
		if edge.Target.Bank == b.id {
			b.registerReverseLocked(edge.Target.Entry, types.BankRef{Bank: b.id, Entry: e.ID}, edge.Kind)
		}
	}
}
