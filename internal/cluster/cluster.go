// Package cluster implements BankCluster: ownership of every DataBank
// in a process, cross-bank link/traverse/query, and the directory-wide
// snapshot/journal lifecycle (flush_dirty, load_all). Generalized from
// the teacher's pkg/vcs.Repository (Init/Open over a directory, one
// owned storage layer) into a multi-bank owner with a shared journal.
package cluster

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/neuromem/bankcore/internal/bank"
	"github.com/neuromem/bankcore/internal/bankerr"
	"github.com/neuromem/bankcore/internal/bankfile"
	"github.com/neuromem/bankcore/internal/entrymodel"
	"github.com/neuromem/bankcore/internal/journal"
	"github.com/neuromem/bankcore/internal/types"
	"github.com/neuromem/bankcore/internal/vectorindex"
)

// pendingReverse is a cross-bank reverse-index registration that could
// not be resolved immediately because its target bank did not exist
// yet. Retried at Compact and at the end of LoadAll.
type pendingReverse struct {
	source types.BankRef
	target types.BankRef
	kind   types.EdgeKind
}

// BankCluster owns every bank in a process and the directory they
// persist to.
type BankCluster struct {
	mu sync.RWMutex

	banks map[types.BankId]*bank.DataBank
	names map[types.BankId]string

	journalWriter *journal.Writer
	journalPath   string

	pending []pendingReverse
}

// New creates an empty cluster with no journal attached.
func New() *BankCluster {
	return &BankCluster{
		banks: make(map[types.BankId]*bank.DataBank),
		names: make(map[types.BankId]string),
	}
}

// GetOrCreate returns the bank for id, creating it with name and
// config if absent.
func (c *BankCluster) GetOrCreate(id types.BankId, name string, config bank.Config) *bank.DataBank {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getOrCreateLocked(id, name, config)
}

func (c *BankCluster) getOrCreateLocked(id types.BankId, name string, config bank.Config) *bank.DataBank {
	if b, ok := c.banks[id]; ok {
		return b
	}
	b := bank.New(id, name, config)
	if c.journalWriter != nil {
		b.AttachJournal(c.journalWriter)
	}
	c.banks[id] = b
	c.names[id] = name
	return b
}

// Get resolves a bank by id without creating it.
func (c *BankCluster) Get(id types.BankId) (*bank.DataBank, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.banks[id]
	return b, ok
}

func (c *BankCluster) resolve(id types.BankId) (*bank.DataBank, bool) {
	b, ok := c.banks[id]
	return b, ok
}

// Banks returns every bank currently owned, in no particular order.
func (c *BankCluster) Banks() []*bank.DataBank {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*bank.DataBank, 0, len(c.banks))
	for _, b := range c.banks {
		out = append(out, b)
	}
	return out
}

// Link validates both refs resolve to existing banks, appends the edge
// on source, and registers (or, if dst's bank is not yet loaded,
// defers) the reverse-index entry on destination.
func (c *BankCluster) Link(src types.BankRef, dst types.BankRef, kind types.EdgeKind, weight uint8, tick uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	srcBank, ok := c.resolve(src.Bank)
	if !ok {
		return bankerr.Wrap("link", src.Bank.String(), bankerr.ErrUnknownBank)
	}
	if _, ok := c.resolve(dst.Bank); !ok {
		return bankerr.Wrap("link", dst.Bank.String(), bankerr.ErrUnknownBank)
	}

	edge := types.Edge{Kind: kind, Target: dst, Weight: weight, CreatedTick: tick}
	pruned, err := srcBank.AddEdge(src.Entry, edge)
	if err != nil {
		return err
	}
	if pruned != nil && pruned.Target.Bank != src.Bank {
		c.unregisterReverse(pruned.Target, src, pruned.Kind)
	}
	if dst.Bank != src.Bank {
		c.registerReverse(dst, src, kind)
	}
	return nil
}

func (c *BankCluster) registerReverse(target types.BankRef, source types.BankRef, kind types.EdgeKind) {
	if targetBank, ok := c.resolve(target.Bank); ok {
		targetBank.RegisterReverseEdge(target.Entry, source, kind)
		return
	}
	c.pending = append(c.pending, pendingReverse{source: source, target: target, kind: kind})
}

func (c *BankCluster) unregisterReverse(target types.BankRef, source types.BankRef, kind types.EdgeKind) {
	if targetBank, ok := c.resolve(target.Bank); ok {
		targetBank.UnregisterReverseEdge(target.Entry, source, kind)
	}
}

// retryPendingLocked attempts to resolve every deferred reverse-index
// registration, dropping the ones that succeed.
func (c *BankCluster) retryPendingLocked() {
	if len(c.pending) == 0 {
		return
	}
	remaining := c.pending[:0]
	for _, p := range c.pending {
		if targetBank, ok := c.resolve(p.target.Bank); ok {
			targetBank.RegisterReverseEdge(p.target.Entry, p.source, p.kind)
			continue
		}
		remaining = append(remaining, p)
	}
	c.pending = remaining
}

// DeleteEntry removes ref's entry from its bank and unregisters the
// reverse-index entries any of its outgoing edges held on other banks.
func (c *BankCluster) DeleteEntry(ref types.BankRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.resolve(ref.Bank)
	if !ok {
		return bankerr.Wrap("delete", ref.Bank.String(), bankerr.ErrUnknownBank)
	}
	outgoing, err := b.Delete(ref.Entry)
	if err != nil {
		return err
	}
	for _, edge := range outgoing {
		if edge.Target.Bank != ref.Bank {
			c.unregisterReverse(edge.Target, ref, edge.Kind)
		}
	}
	return nil
}

// EvictEntries removes bankID's n lowest-scoring entries at tick and
// unregisters the reverse-index entries any of their outgoing edges
// held on other banks, mirroring DeleteEntry's cross-bank cleanup for
// a batch removal instead of a single one.
func (c *BankCluster) EvictEntries(bankID types.BankId, n int, tick uint64) ([]bank.RemovedEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.resolve(bankID)
	if !ok {
		return nil, bankerr.Wrap("evict", bankID.String(), bankerr.ErrUnknownBank)
	}
	removed, err := b.EvictN(n, tick)
	if err != nil {
		return removed, err
	}
	for _, entry := range removed {
		source := types.BankRef{Bank: bankID, Entry: entry.ID}
		for _, edge := range entry.Outgoing {
			if edge.Target.Bank != bankID {
				c.unregisterReverse(edge.Target, source, edge.Kind)
			}
		}
	}
	return removed, nil
}

// Traverse performs a breadth-first expansion from start following
// only edges of kind (types.Any matches every kind), deduplicated,
// bounded to depth hops, in BFS discovery order. start is excluded
// from the result unless a cycle rediscovers it.
func (c *BankCluster) Traverse(start types.BankRef, kind types.EdgeKind, depth int) ([]types.BankRef, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.resolve(start.Bank); !ok {
		return nil, bankerr.Wrap("traverse", start.Bank.String(), bankerr.ErrUnknownBank)
	}

	visited := map[types.BankRef]bool{}
	var order []types.BankRef
	frontier := []types.BankRef{start}

	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []types.BankRef
		for _, ref := range frontier {
			b, ok := c.resolve(ref.Bank)
			if !ok {
				continue
			}
			e, ok := b.Get(ref.Entry)
			if !ok {
				continue
			}
			for _, edge := range e.Edges {
				if kind != types.Any && edge.Kind != kind {
					continue
				}
				if visited[edge.Target] {
					continue
				}
				visited[edge.Target] = true
				order = append(order, edge.Target)
				next = append(next, edge.Target)
			}
		}
		frontier = next
	}
	return order, nil
}

// Result is one ranked hit from a cross-bank query.
type Result struct {
	Bank           types.BankId
	BankName       string
	Entry          types.EntryId
	RawScore       int32
	NormalizedScore int64 // fixed-point, scaled x1000
}

// QueryAll runs query_sparse against every bank named in perBankQuery,
// z-score normalizes each bank's own top-k distribution, then merges
// and re-sorts globally by normalized score, truncated to topK.
func (c *BankCluster) QueryAll(perBankQuery map[types.BankId][]types.Signal, topK int) []Result {
	c.mu.RLock()
	ids := make([]types.BankId, 0, len(perBankQuery))
	for id := range perBankQuery {
		if _, ok := c.banks[id]; ok {
			ids = append(ids, id)
		}
	}
	banks := c.banks
	names := c.names
	c.mu.RUnlock()

	type bankResult struct {
		id     types.BankId
		scored []vectorindex.Scored
	}
	results := make([]bankResult, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			results[i] = bankResult{id: id, scored: banks[id].QuerySparse(perBankQuery[id], topK)}
			return nil
		})
	}
	_ = g.Wait() // query_sparse never errors; each bank's state is disjoint

	var merged []Result
	for _, r := range results {
		merged = append(merged, normalizeAndTag(r.id, names[r.id], r.scored)...)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].NormalizedScore != merged[j].NormalizedScore {
			return merged[i].NormalizedScore > merged[j].NormalizedScore
		}
		return merged[i].Entry < merged[j].Entry
	})
	if topK > 0 && len(merged) > topK {
		merged = merged[:topK]
	}
	return merged
}

// normalizeAndTag z-score normalizes scored within its own
// distribution (sigma=0 yields normalized score 0) and tags every
// result with its owning bank.
func normalizeAndTag(id types.BankId, name string, scored []vectorindex.Scored) []Result {
	if len(scored) == 0 {
		return nil
	}
	var sum int64
	for _, s := range scored {
		sum += int64(s.Score)
	}
	mean := sum / int64(len(scored))

	var variance int64
	for _, s := range scored {
		d := int64(s.Score) - mean
		variance += d * d
	}
	variance /= int64(len(scored))
	sigma := isqrt(variance)

	out := make([]Result, len(scored))
	for i, s := range scored {
		var z int64
		if sigma != 0 {
			z = (int64(s.Score) - mean) * 1000 / sigma
		}
		out[i] = Result{Bank: id, BankName: name, Entry: s.ID, RawScore: s.Score, NormalizedScore: z}
	}
	return out
}

func isqrt(n int64) int64 {
	if n <= 0 {
		return 0
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}

// QueryByPrefix runs query_sparse against every bank whose name starts
// with namePrefix and whose vector width matches len(query).
func (c *BankCluster) QueryByPrefix(namePrefix string, query []types.Signal, topK int) []Result {
	c.mu.RLock()
	perBank := make(map[types.BankId][]types.Signal)
	for id, b := range c.banks {
		name := c.names[id]
		if len(name) < len(namePrefix) || name[:len(namePrefix)] != namePrefix {
			continue
		}
		if int(b.Config().VectorWidth) != len(query) {
			continue
		}
		perBank[id] = query
	}
	c.mu.RUnlock()
	return c.QueryAll(perBank, topK)
}

// FlushDirty snapshots every dirty bank to dir with the atomic
// protocol, clears their dirty flags, and truncates the shared journal
// once every snapshot has succeeded.
func (c *BankCluster) FlushDirty(dir string, tick int64) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for id, b := range c.banks {
		if !b.Dirty() {
			continue
		}
		if err := c.snapshotBankLocked(dir, id, b, tick); err != nil {
			return count, err
		}
		count++
	}
	if count > 0 && c.journalPath != "" {
		// Records still buffered predate the snapshots; write them out
		// now so they are removed by the truncation, not appended after it.
		if c.journalWriter != nil {
			if err := c.journalWriter.Flush(); err != nil {
				return count, fmt.Errorf("cluster: flush journal: %w", err)
			}
		}
		if err := journal.Truncate(c.journalPath); err != nil {
			return count, fmt.Errorf("cluster: truncate journal: %w", err)
		}
	}
	return count, nil
}

func (c *BankCluster) snapshotBankLocked(dir string, id types.BankId, b *bank.DataBank, tick int64) error {
	var entries []*entrymodel.BankEntry
	b.EachEntry(func(e *entrymodel.BankEntry) {
		entries = append(entries, e)
	})

	fname := filepath.Join(dir, fmt.Sprintf("%s.bank", id.String()))
	meta := bankfile.Meta{
		BankID:      id,
		VectorWidth: b.Config().VectorWidth,
		MaxEntries:  b.Config().MaxEntries,
		Name:        c.names[id],
	}
	if err := bankfile.Save(fname, meta, entries, b.Index(), true); err != nil {
		return fmt.Errorf("cluster: flush bank %s: %w", id.String(), err)
	}
	b.MarkPersisted(uint64(tick))
	return nil
}

// OpenJournal opens (creating if absent) dir's shared journal and
// attaches it to every bank this cluster already owns, plus every bank
// created afterward. Used by a freshly created cluster (New); LoadAll
// attaches its own journal writer after replay instead of calling this.
func (c *BankCluster) OpenJournal(dir string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	path := filepath.Join(dir, journalFileName)
	w, err := journal.OpenWriter(path)
	if err != nil {
		return fmt.Errorf("cluster: open journal %s: %w", path, err)
	}
	c.journalWriter = w
	c.journalPath = path
	for _, b := range c.banks {
		b.AttachJournal(w)
	}
	return nil
}

// Flush forces the shared journal's buffered writes to disk without
// snapshotting any bank, so a crash immediately after returns still
// has every mutation acknowledged before this call on replay.
func (c *BankCluster) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.journalWriter == nil {
		return nil
	}
	return c.journalWriter.Flush()
}

// Compact rebuilds every bank's vector index and retries any
// cross-bank reverse-index registration deferred because its target
// bank had not yet loaded.
func (c *BankCluster) Compact() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.banks {
		b.Compact()
	}
	c.retryPendingLocked()
}
