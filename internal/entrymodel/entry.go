// Package entrymodel implements the per-entry data model: BankEntry,
// its checksum, its edge-list maintenance, and the eligibility
// predicates used by promotion/demotion/eviction passes.
package entrymodel

import (
	"hash/crc32"

	"github.com/neuromem/bankcore/internal/types"
)

// BankEntry is one stored fragment: a vector plus its edges and
// metadata.
type BankEntry struct {
	ID                types.EntryId
	Vector            []types.Signal
	Edges             []types.Edge
	Origin            types.BankId
	Temperature       types.Temperature
	CreatedTick       uint64
	LastAccessedTick  uint64
	AccessCount       uint32
	Confidence        uint8
	DebugTag          string
	checksum          uint32
}

// New creates a fresh entry, born at the given temperature and tick,
// with its checksum computed.
func New(id types.EntryId, vector []types.Signal, origin types.BankId, temperature types.Temperature, tick uint64, confidence uint8) *BankEntry {
	e := &BankEntry{
		ID:               id,
		Vector:           vector,
		Origin:           origin,
		Temperature:      temperature,
		CreatedTick:      tick,
		LastAccessedTick: tick,
		Confidence:       confidence,
	}
	e.RecomputeChecksum()
	return e
}

// Checksum returns the entry's stored CRC32 over vector+edges.
func (e *BankEntry) Checksum() uint32 {
	return e.checksum
}

// RecomputeChecksum recomputes and stores the CRC32 over the vector
// and edges. Must be called at the end of every mutation.
func (e *BankEntry) RecomputeChecksum() {
	e.checksum = crc32.ChecksumIEEE(e.checksumPayload())
}

// VerifyChecksum reports whether the stored checksum matches the
// current vector+edges content.
func (e *BankEntry) VerifyChecksum() bool {
	return e.checksum == crc32.ChecksumIEEE(e.checksumPayload())
}

func (e *BankEntry) checksumPayload() []byte {
	buf := make([]byte, 0, len(e.Vector)*2+len(e.Edges)*26)
	for _, s := range e.Vector {
		buf = append(buf, byte(s.Polarity), s.Magnitude)
	}
	for _, edge := range e.Edges {
		buf = append(buf, byte(edge.Kind))
		buf = appendUint64(buf, uint64(edge.Target.Bank))
		buf = appendUint64(buf, uint64(edge.Target.Entry))
		buf = append(buf, edge.Weight)
		buf = appendUint64(buf, edge.CreatedTick)
	}
	return buf
}

func appendUint64(buf []byte, v uint64) []byte {
	return append(buf,
		byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}

// Touch bumps access bookkeeping. access_count and last_accessed_tick
// are monotone non-decreasing over an entry's lifetime.
func (e *BankEntry) Touch(tick uint64) {
	e.AccessCount++
	if tick > e.LastAccessedTick {
		e.LastAccessedTick = tick
	}
}

// AddEdge appends an edge, pruning the lowest-weighted existing edge
// (ties broken by age, older first) when the entry is already at
// maxEdges. Returns the pruned edge, if any.
func (e *BankEntry) AddEdge(edge types.Edge, maxEdges int) (pruned *types.Edge) {
	if len(e.Edges) >= maxEdges && maxEdges > 0 {
		idx := e.lowestWeightEdgeIndex()
		old := e.Edges[idx]
		pruned = &old
		e.Edges = append(e.Edges[:idx], e.Edges[idx+1:]...)
	}
	e.Edges = append(e.Edges, edge)
	e.RecomputeChecksum()
	return pruned
}

// lowestWeightEdgeIndex returns the index of the minimum-weight edge,
// breaking ties by picking the older (smaller created_tick) one.
func (e *BankEntry) lowestWeightEdgeIndex() int {
	best := 0
	for i := 1; i < len(e.Edges); i++ {
		c := e.Edges[i]
		b := e.Edges[best]
		if c.Weight < b.Weight || (c.Weight == b.Weight && c.CreatedTick < b.CreatedTick) {
			best = i
		}
	}
	return best
}

// RemoveEdgesTo removes every outgoing edge pointing at target,
// returning the removed edges.
func (e *BankEntry) RemoveEdgesTo(target types.BankRef) []types.Edge {
	kept := e.Edges[:0:0]
	var removed []types.Edge
	for _, edge := range e.Edges {
		if edge.Target == target {
			removed = append(removed, edge)
		} else {
			kept = append(kept, edge)
		}
	}
	e.Edges = kept
	if len(removed) > 0 {
		e.RecomputeChecksum()
	}
	return removed
}

// PromotionEligible reports whether the entry qualifies for
// consolidation: access_count >= minAccesses and age >= minAgeTicks.
func (e *BankEntry) PromotionEligible(tick uint64, minAccesses uint32, minAgeTicks uint64) bool {
	if e.AccessCount < minAccesses {
		return false
	}
	age := uint64(0)
	if tick > e.CreatedTick {
		age = tick - e.CreatedTick
	}
	return age >= minAgeTicks
}

// DemotionEligible reports whether the entry's confidence is below
// threshold.
func (e *BankEntry) DemotionEligible(threshold uint8) bool {
	return e.Confidence < threshold
}

// EvictionScore computes the eviction score: higher is safer
// (harder to evict).
func (e *BankEntry) EvictionScore(tick uint64) int64 {
	access := int64(e.AccessCount)
	if access > 255 {
		access = 255
	}

	var recencyPenalty int64
	if tick > e.LastAccessedTick {
		recencyPenalty = int64((tick - e.LastAccessedTick) / 256)
	}
	if recencyPenalty > 65535 {
		recencyPenalty = 65535
	}
	recencyBonus := int64(255) - recencyPenalty
	if recencyBonus < 0 {
		recencyBonus = 0
	}

	return int64(e.Temperature.Weight()) + access + int64(e.Confidence) + recencyBonus
}
