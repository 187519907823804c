package fulfiller

import (
	"errors"

	"github.com/neuromem/bankcore/internal/bank"
	"github.com/neuromem/bankcore/internal/cluster"
	"github.com/neuromem/bankcore/internal/types"
)

var (
	errUnboundSlot = errors.New("fulfiller: slot not bound to a bank")
	errUnknownBank = errors.New("fulfiller: slot's bank is not owned by this cluster")
)

func resolveBank(c *cluster.BankCluster, slots *BankSlotMap, slot uint8) (*bank.DataBank, error) {
	id, ok := slots.Resolve(slot)
	if !ok {
		return nil, errUnboundSlot
	}
	b, ok := c.Get(id)
	if !ok {
		return nil, errUnknownBank
	}
	return b, nil
}

// toVector converts a flat i32 slice to ternary signals via from_i32.
func toVector(data []int32) []types.Signal {
	out := make([]types.Signal, len(data))
	for i, v := range data {
		out[i] = types.FromSigned(v)
	}
	return out
}

// fromVector converts a vector to i32 via to_i32.
func fromVector(vector []types.Signal) []int32 {
	out := make([]int32, len(vector))
	for i, s := range vector {
		out[i] = s.Signed()
	}
	return out
}

// hiLo splits a 64-bit id into its high/low 32-bit register halves.
func hiLo(v uint64) (hi, lo int32) {
	return int32(uint32(v >> 32)), int32(uint32(v))
}

// fromHiLo reassembles a 64-bit id from its high/low register halves.
func fromHiLo(hi, lo int32) uint64 {
	return uint64(uint32(hi))<<32 | uint64(uint32(lo))
}
