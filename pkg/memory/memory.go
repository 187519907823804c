// Package memory is the top-level entry point for a bank directory:
// Create bootstraps a fresh one, Open reloads an existing one from its
// snapshots and journal, and Engine wraps the resulting cluster with
// the directory it is bound to. Grounded on the teacher's pkg/vcs
// Init/Open pair — a directory bootstrap function and a reload
// function that both hand back one struct owning everything beneath
// that directory.
package memory

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/neuromem/bankcore/internal/bank"
	"github.com/neuromem/bankcore/internal/cluster"
	"github.com/neuromem/bankcore/internal/types"
)

// Engine owns one bank directory: its cluster, plus the directory path
// new banks and snapshots are created under.
type Engine struct {
	dir     string
	cluster *cluster.BankCluster
}

// Create bootstraps a fresh bank directory at dir (creating it if
// absent) and returns an Engine with a durable journal already
// attached, ready for GetOrCreateBank. Create refuses to run against a
// directory that already holds a snapshot or journal, to avoid
// silently discarding prior state — use Open for that.
func Create(dir string) (*Engine, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("memory: create %s: %w", dir, err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.bank"))
	if err != nil {
		return nil, fmt.Errorf("memory: create %s: %w", dir, err)
	}
	if len(matches) > 0 {
		return nil, fmt.Errorf("memory: create %s: directory already holds bank snapshots, use Open", dir)
	}
	if _, err := os.Stat(filepath.Join(dir, "cluster.journal")); err == nil {
		return nil, fmt.Errorf("memory: create %s: directory already holds a journal, use Open", dir)
	}

	c := cluster.New()
	if err := c.OpenJournal(dir); err != nil {
		return nil, fmt.Errorf("memory: create %s: %w", dir, err)
	}
	return &Engine{dir: dir, cluster: c}, nil
}

// Open reloads dir's snapshots and replays its journal, via
// cluster.LoadAll, and returns an Engine bound to it. indexKind is the
// vector index every reconstructed bank uses; when it is IVF and a
// bank's snapshot carries IVF centroids, those centroids are installed
// instead of re-clustering. logger receives non-fatal replay
// diagnostics (records skipped for referencing an unknown bank, a
// corrupt snapshot tail); pass nil to discard them.
func Open(dir string, indexKind bank.IndexKind, logger *log.Logger) (*Engine, error) {
	c, err := cluster.LoadAll(dir, indexKind, logger)
	if err != nil {
		return nil, fmt.Errorf("memory: open %s: %w", dir, err)
	}
	return &Engine{dir: dir, cluster: c}, nil
}

// Dir returns the directory this Engine is bound to.
func (e *Engine) Dir() string {
	return e.dir
}

// Cluster returns the underlying cluster, for operations (GetOrCreate,
// Link, Traverse, QueryAll, ...) that operate across or within banks.
func (e *Engine) Cluster() *cluster.BankCluster {
	return e.cluster
}

// GetOrCreateBank resolves id to its bank, creating it with config if
// this is the first reference.
func (e *Engine) GetOrCreateBank(id types.BankId, name string, config bank.Config) *bank.DataBank {
	return e.cluster.GetOrCreate(id, name, config)
}

// FlushDirty snapshots every dirty bank to e.Dir() and, once every
// snapshot has landed, truncates the shared journal. Returns the
// number of banks snapshotted.
func (e *Engine) FlushDirty(tick int64) (int, error) {
	return e.cluster.FlushDirty(e.dir, tick)
}

// Flush forces the shared journal's buffered writes to disk without
// snapshotting any bank.
func (e *Engine) Flush() error {
	return e.cluster.Flush()
}
