package fulfiller

import (
	"github.com/neuromem/bankcore/internal/bankerr"
	"github.com/neuromem/bankcore/internal/cluster"
	"github.com/neuromem/bankcore/internal/types"
)

// Write inserts data (converted through from_i32) as a new entry in
// slot's bank. Register packing: [id_hi, id_lo].
func Write(c *cluster.BankCluster, slots *BankSlotMap, slot uint8, data []int32, temperature types.Temperature, tick uint64, confidence uint8) Outcome {
	b, err := resolveBank(c, slots, slot)
	if err != nil {
		return errf("write: %v", err)
	}
	id, err := b.Insert(toVector(data), temperature, tick, confidence)
	if err != nil {
		return errf("write: %v", err)
	}
	hi, lo := hiLo(uint64(id))
	return writeRegister(registerIndex, []int32{hi, lo}, []int{2})
}

// Load reads the vector stored at (slot, entry), converted through
// to_i32. Register packing: one signed value per vector dimension.
func Load(c *cluster.BankCluster, slots *BankSlotMap, slot uint8, entryHi, entryLo int32) Outcome {
	b, err := resolveBank(c, slots, slot)
	if err != nil {
		return errf("load: %v", err)
	}
	id := types.EntryId(fromHiLo(entryHi, entryLo))
	e, ok := b.Get(id)
	if !ok {
		return errf("load: %v", bankerr.Wrap("load", id.String(), bankerr.ErrUnknownEntry))
	}
	data := fromVector(e.Vector)
	return writeRegister(registerIndex, data, []int{len(data)})
}

// Query runs sparse top-k retrieval against slot's bank. Register
// packing: [count, score0, id_hi0, id_lo0, score1, id_hi1, id_lo1, ...].
func Query(c *cluster.BankCluster, slots *BankSlotMap, slot uint8, data []int32, topK int) Outcome {
	b, err := resolveBank(c, slots, slot)
	if err != nil {
		return errf("query: %v", err)
	}
	scored := b.QuerySparse(toVector(data), topK)
	out := make([]int32, 0, 1+len(scored)*3)
	out = append(out, int32(len(scored)))
	for _, s := range scored {
		hi, lo := hiLo(uint64(s.ID))
		out = append(out, s.Score, hi, lo)
	}
	return writeRegister(registerIndex, out, []int{len(out)})
}

// Link creates a typed edge from (srcSlot, srcEntry) to (dstSlot,
// dstEntry), via the cluster so cross-bank reverse-index bookkeeping
// happens regardless of which side owns either bank.
func Link(c *cluster.BankCluster, slots *BankSlotMap, srcSlot uint8, srcEntryHi, srcEntryLo int32, dstSlot uint8, dstEntryHi, dstEntryLo int32, kind types.EdgeKind, weight uint8, tick uint64) Outcome {
	srcID, bound := slots.Resolve(srcSlot)
	if !bound {
		return errf("link: %v", errUnboundSlot)
	}
	dstID, bound := slots.Resolve(dstSlot)
	if !bound {
		return errf("link: %v", errUnboundSlot)
	}
	src := types.BankRef{Bank: srcID, Entry: types.EntryId(fromHiLo(srcEntryHi, srcEntryLo))}
	dst := types.BankRef{Bank: dstID, Entry: types.EntryId(fromHiLo(dstEntryHi, dstEntryLo))}
	if err := c.Link(src, dst, kind, weight, tick); err != nil {
		return errf("link: %v", err)
	}
	return ok()
}

// Traverse breadth-first-expands from (slot, entry) along kind (or
// every kind, for types.Any), bounded to depth hops. Register packing:
// [count, slot0, id_hi0, id_lo0, ...]; targets whose bank has no
// binding in slots are elided, per §4.7.
func Traverse(c *cluster.BankCluster, slots *BankSlotMap, slot uint8, entryHi, entryLo int32, kind types.EdgeKind, depth int) Outcome {
	id, ok := slots.Resolve(slot)
	if !ok {
		return errf("traverse: %v", errUnboundSlot)
	}
	start := types.BankRef{Bank: id, Entry: types.EntryId(fromHiLo(entryHi, entryLo))}
	refs, err := c.Traverse(start, kind, depth)
	if err != nil {
		return errf("traverse: %v", err)
	}

	count := 0
	body := make([]int32, 0, len(refs)*3)
	for _, ref := range refs {
		targetSlot, ok := slots.SlotFor(ref.Bank)
		if !ok {
			continue
		}
		hi, lo := hiLo(uint64(ref.Entry))
		body = append(body, int32(targetSlot), hi, lo)
		count++
	}
	out := append([]int32{int32(count)}, body...)
	return writeRegister(registerIndex, out, []int{len(out)})
}

// Touch bumps access bookkeeping for (slot, entry).
func Touch(c *cluster.BankCluster, slots *BankSlotMap, slot uint8, entryHi, entryLo int32, tick uint64) Outcome {
	b, err := resolveBank(c, slots, slot)
	if err != nil {
		return errf("touch: %v", err)
	}
	id := types.EntryId(fromHiLo(entryHi, entryLo))
	if err := b.Touch(id, tick); err != nil {
		return errf("touch: %v", err)
	}
	return ok()
}

// Delete removes (slot, entry), via the cluster so any cross-bank
// reverse-index entries its outgoing edges held are cleaned up.
func Delete(c *cluster.BankCluster, slots *BankSlotMap, slot uint8, entryHi, entryLo int32) Outcome {
	id, bound := slots.Resolve(slot)
	if !bound {
		return errf("delete: %v", errUnboundSlot)
	}
	ref := types.BankRef{Bank: id, Entry: types.EntryId(fromHiLo(entryHi, entryLo))}
	if err := c.DeleteEntry(ref); err != nil {
		return errf("delete: %v", err)
	}
	return ok()
}

// Count reports slot's bank's entry count. Register packing: [n].
func Count(c *cluster.BankCluster, slots *BankSlotMap, slot uint8) Outcome {
	b, err := resolveBank(c, slots, slot)
	if err != nil {
		return errf("count: %v", err)
	}
	return writeRegister(registerIndex, []int32{int32(b.Len())}, []int{1})
}

// Promote advances (slot, entry) one temperature step if eligible.
func Promote(c *cluster.BankCluster, slots *BankSlotMap, slot uint8, entryHi, entryLo int32, tick uint64, minAccesses uint32, minAgeTicks uint64) Outcome {
	b, err := resolveBank(c, slots, slot)
	if err != nil {
		return errf("promote: %v", err)
	}
	id := types.EntryId(fromHiLo(entryHi, entryLo))
	if _, err := b.Promote(id, tick, minAccesses, minAgeTicks); err != nil {
		return errf("promote: %v", err)
	}
	return ok()
}

// Demote lowers (slot, entry) one temperature step if its confidence
// is below threshold.
func Demote(c *cluster.BankCluster, slots *BankSlotMap, slot uint8, entryHi, entryLo int32, tick uint64, threshold uint8) Outcome {
	b, err := resolveBank(c, slots, slot)
	if err != nil {
		return errf("demote: %v", err)
	}
	id := types.EntryId(fromHiLo(entryHi, entryLo))
	if _, err := b.Demote(id, tick, threshold); err != nil {
		return errf("demote: %v", err)
	}
	return ok()
}

// Evict removes slot's bank's n lowest-scoring entries at tick,
// routed through the cluster so cross-bank reverse edges the evicted
// entries held on other banks are unregistered too.
// Register packing: [removed_count].
func Evict(c *cluster.BankCluster, slots *BankSlotMap, slot uint8, n int, tick uint64) Outcome {
	bankID, ok := slots.Resolve(slot)
	if !ok {
		return errf("evict: %v", errUnboundSlot)
	}
	removed, err := c.EvictEntries(bankID, n, tick)
	if err != nil {
		return errf("evict: %v", err)
	}
	return writeRegister(registerIndex, []int32{int32(len(removed))}, []int{1})
}

// Compact rebuilds slot's bank's vector index and garbage-collects its
// reverse-edge tombstones.
func Compact(c *cluster.BankCluster, slots *BankSlotMap, slot uint8) Outcome {
	b, err := resolveBank(c, slots, slot)
	if err != nil {
		return errf("compact: %v", err)
	}
	b.Compact()
	return ok()
}
