// Package bank implements the single-bank operations: insert, sparse
// retrieval, eviction, temperature transitions, and the reverse-edge
// index — generalized from the teacher's path-keyed staging index
// (internal/core/index/index.go) into an EntryId-keyed bank of
// ternary-signal entries.
package bank

import "github.com/neuromem/bankcore/internal/vectorindex"

// IndexKindTag selects which vector index variant a bank uses.
type IndexKindTag uint8

const (
	BruteForceKind IndexKindTag = iota
	IVFKind
)

// IndexKind is BankConfig's tagged choice of vector index.
type IndexKind struct {
	Tag    IndexKindTag
	K      int // IVF only
	NProbe int // IVF only
}

// BruteForce builds the default brute-force IndexKind.
func BruteForce() IndexKind {
	return IndexKind{Tag: BruteForceKind}
}

// Ivf builds an IVF IndexKind with the given k and nprobe.
func Ivf(k, nprobe int) IndexKind {
	return IndexKind{Tag: IVFKind, K: k, NProbe: nprobe}
}

func (k IndexKind) newIndex() vectorindex.Index {
	switch k.Tag {
	case IVFKind:
		return vectorindex.NewIVF(k.K, k.NProbe)
	default:
		return vectorindex.NewBruteForce()
	}
}

// Config is a bank's immutable-after-creation configuration.
type Config struct {
	VectorWidth           uint16
	MaxEntries            uint32
	MaxEdgesPerEntry      uint16
	PersistAfterMutations uint32
	PersistAfterTicks     uint64
	IndexKind             IndexKind
}

// WithDefaults fills in the spec's documented defaults for any field
// left at its zero value, matching the memory-engine reference files'
// Options.withDefaults() convention.
func (c Config) WithDefaults() Config {
	if c.MaxEntries == 0 {
		c.MaxEntries = 10_000
	}
	if c.MaxEdgesPerEntry == 0 {
		c.MaxEdgesPerEntry = 32
	}
	if c.PersistAfterMutations == 0 {
		c.PersistAfterMutations = 100
	}
	if c.PersistAfterTicks == 0 {
		c.PersistAfterTicks = 10_000
	}
	return c
}
