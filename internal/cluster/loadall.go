package cluster

import (
	"fmt"
	"log"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/neuromem/bankcore/internal/bank"
	"github.com/neuromem/bankcore/internal/bankerr"
	"github.com/neuromem/bankcore/internal/bankfile"
	"github.com/neuromem/bankcore/internal/entrymodel"
	"github.com/neuromem/bankcore/internal/journal"
	"github.com/neuromem/bankcore/internal/types"
	"github.com/neuromem/bankcore/internal/vectorindex"
)

// journalFileName is the single shared journal for every bank in a
// cluster directory — one writer per directory, per §4.5.
const journalFileName = "cluster.journal"

// LoadAll discovers every *.bank file in dir, loads it (admitting
// entries with valid per-entry CRCs and rejecting the whole file only
// on header/payload-hash failure), replays cluster.journal (if
// present) on top of the loaded state, truncates the journal, then
// attaches a fresh journal writer for subsequent mutations. indexKind
// selects the vector index every loaded bank is reconstructed with;
// callers that persisted an IVF blob get their centroids restored
// directly instead of re-clustering.
func LoadAll(dir string, indexKind bank.IndexKind, logger *log.Logger) (*BankCluster, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.bank"))
	if err != nil {
		return nil, fmt.Errorf("cluster: glob %s: %w", dir, err)
	}

	loaded := make([]*bankfile.Loaded, len(matches))
	var g errgroup.Group
	for i, path := range matches {
		i, path := i, path
		g.Go(func() error {
			l, err := bankfile.Load(path, logger)
			if err != nil {
				return fmt.Errorf("cluster: load %s: %w", path, err)
			}
			loaded[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c := New()
	for _, lb := range loaded {
		config := bank.Config{
			VectorWidth: lb.Meta.VectorWidth,
			MaxEntries:  lb.Meta.MaxEntries,
			IndexKind:   indexKind,
		}
		b := c.getOrCreateLockedForLoad(lb.Meta.BankID, lb.Meta.Name, config)
		for _, e := range lb.Entries {
			b.LoadEntry(e)
		}
		if lb.Centroids != nil {
			if ivf, ok := b.Index().(*vectorindex.IVFIndex); ok {
				ivf.LoadCentroids(lb.Centroids, b)
			}
		} else {
			b.Compact()
		}
	}

	// A snapshot only records edges on the source entry's own edge
	// list, never the reverse-index entry they imply on another bank
	// (that index lives on the target bank, which this loop may not
	// have reached yet). Re-derive every cross-bank reverse-index
	// entry now that every bank from disk is resolvable, deferring any
	// whose target truly has no snapshot to the same pending queue a
	// live Link would use.
	for _, lb := range loaded {
		source := lb.Meta.BankID
		for _, e := range lb.Entries {
			for _, edge := range e.Edges {
				if edge.Target.Bank == source {
					continue
				}
				c.registerReverse(edge.Target, types.BankRef{Bank: source, Entry: e.ID}, edge.Kind)
			}
		}
	}

	journalPath := filepath.Join(dir, journalFileName)
	records, err := journal.ReadAll(journalPath)
	if err != nil {
		return nil, fmt.Errorf("cluster: read journal %s: %w", journalPath, err)
	}
	c.replay(records, logger)

	if len(records) > 0 {
		if err := journal.Truncate(journalPath); err != nil {
			return nil, fmt.Errorf("cluster: truncate journal: %w", err)
		}
	}

	w, err := journal.OpenWriter(journalPath)
	if err != nil {
		return nil, fmt.Errorf("cluster: open journal writer: %w", err)
	}
	c.journalWriter = w
	c.journalPath = journalPath
	for _, b := range c.banks {
		b.AttachJournal(w)
	}

	c.mu.Lock()
	c.retryPendingLocked()
	c.mu.Unlock()
	return c, nil
}

// getOrCreateLockedForLoad is GetOrCreate without attaching a journal
// sink — used only while replaying a snapshot, before the cluster's
// shared journal writer exists.
func (c *BankCluster) getOrCreateLockedForLoad(id types.BankId, name string, config bank.Config) *bank.DataBank {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.banks[id]; ok {
		return b
	}
	b := bank.New(id, name, config)
	c.banks[id] = b
	c.names[id] = name
	return b
}

// replay applies every journal record not already reflected in the
// loaded snapshots. A record naming a bank that no longer exists is
// logged and skipped rather than treated as fatal, per §7's
// journal-replay error policy.
func (c *BankCluster) replay(records []journal.Record, logger *log.Logger) {
	for _, rec := range records {
		b, ok := c.Get(rec.BankID)
		if !ok {
			if logger != nil {
				logger.Printf("cluster: journal record for unknown bank %s skipped", rec.BankID.String())
			}
			continue
		}
		if err := c.applyRecord(b, rec); err != nil && logger != nil {
			logger.Printf("cluster: journal record for bank %s entry %s skipped: %v", rec.BankID.String(), rec.EntryID.String(), err)
		}
	}
}

// applyRecord replays one record onto b. AddEdge and Remove also drive
// the same cross-bank reverse-index bookkeeping Link and DeleteEntry
// perform live — a target bank not yet loaded defers to c.pending,
// exactly as a live Link would.
func (c *BankCluster) applyRecord(b *bank.DataBank, rec journal.Record) error {
	switch rec.Kind {
	case journal.KindInsert:
		vector, temperature, tick, confidence, err := journal.DecodeInsert(rec.Payload)
		if err != nil {
			return err
		}
		entry := newReplayedEntry(rec.EntryID, vector, b.Id(), temperature, tick, confidence)
		b.LoadEntry(entry)
	case journal.KindTouch:
		tick, err := journal.DecodeTouch(rec.Payload)
		if err != nil {
			return err
		}
		return b.Touch(rec.EntryID, tick)
	case journal.KindAddEdge:
		edge, err := journal.DecodeAddEdge(rec.Payload)
		if err != nil {
			return err
		}
		pruned, err := b.AddEdge(rec.EntryID, edge)
		if err != nil {
			return err
		}
		source := types.BankRef{Bank: b.Id(), Entry: rec.EntryID}
		if pruned != nil && pruned.Target.Bank != b.Id() {
			c.unregisterReverse(pruned.Target, source, pruned.Kind)
		}
		if edge.Target.Bank != b.Id() {
			c.registerReverse(edge.Target, source, edge.Kind)
		}
		return nil
	case journal.KindRemove:
		outgoing, err := b.Delete(rec.EntryID)
		if err != nil {
			return err
		}
		source := types.BankRef{Bank: b.Id(), Entry: rec.EntryID}
		for _, edge := range outgoing {
			if edge.Target.Bank != b.Id() {
				c.unregisterReverse(edge.Target, source, edge.Kind)
			}
		}
		return nil
	case journal.KindSetTemperature, journal.KindPromote, journal.KindDemote:
		temperature, err := journal.DecodeSetTemperature(rec.Payload)
		if err != nil {
			return err
		}
		return setTemperature(b, rec.EntryID, temperature)
	case journal.KindBatchEvict:
		ids, err := journal.DecodeBatchEvict(rec.Payload)
		if err != nil {
			return err
		}
		for _, id := range ids {
			outgoing, derr := b.Delete(id)
			if derr != nil {
				continue
			}
			source := types.BankRef{Bank: b.Id(), Entry: id}
			for _, edge := range outgoing {
				if edge.Target.Bank != b.Id() {
					c.unregisterReverse(edge.Target, source, edge.Kind)
				}
			}
		}
	}
	return nil
}

func newReplayedEntry(id types.EntryId, vector []types.Signal, origin types.BankId, temperature types.Temperature, tick uint64, confidence uint8) *entrymodel.BankEntry {
	return entrymodel.New(id, vector, origin, temperature, tick, confidence)
}

func setTemperature(b *bank.DataBank, id types.EntryId, temperature types.Temperature) error {
	e, ok := b.Get(id)
	if !ok {
		return bankerr.Wrap("journal_replay", id.String(), bankerr.ErrUnknownEntry)
	}
	e.Temperature = temperature
	return nil
}
