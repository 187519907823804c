// Package fulfiller implements the stateless register-ABI facade a
// firmware-style caller drives: every operation takes borrowed
// references to a cluster and a slot map, a slot index, and a flat
// []int32 payload, and returns one of three outcomes. Generalized from
// the teacher's cmd/vcs/{hash_object,cat_file}.go dispatch shape — parse
// args, call one method on the owned state, format one result — with
// "format" replaced by "pack into a register" and "print" replaced by
// "return".
package fulfiller

import "github.com/neuromem/bankcore/internal/types"

// BankSlotMap is the fixed 256-entry table a caller uses to address
// banks by a single byte instead of a full BankId. Binding is the
// caller's responsibility (typically once, at startup); the facade
// only resolves through it.
type BankSlotMap struct {
	ids  [256]types.BankId
	used [256]bool
}

// NewBankSlotMap returns an empty slot map.
func NewBankSlotMap() *BankSlotMap {
	return &BankSlotMap{}
}

// Bind assigns id to slot, overwriting any previous binding.
func (m *BankSlotMap) Bind(slot uint8, id types.BankId) {
	m.ids[slot] = id
	m.used[slot] = true
}

// Unbind clears slot.
func (m *BankSlotMap) Unbind(slot uint8) {
	m.used[slot] = false
}

// Resolve returns the bank id bound to slot.
func (m *BankSlotMap) Resolve(slot uint8) (types.BankId, bool) {
	if !m.used[slot] {
		return 0, false
	}
	return m.ids[slot], true
}

// SlotFor reverse-maps id to its bound slot, for traverse results that
// must report targets as caller-visible slots. Linear scan over 256
// entries — the table is small and this is not a hot path relative to
// BFS itself.
func (m *BankSlotMap) SlotFor(id types.BankId) (uint8, bool) {
	for slot := 0; slot < 256; slot++ {
		if m.used[slot] && m.ids[slot] == id {
			return uint8(slot), true
		}
	}
	return 0, false
}
