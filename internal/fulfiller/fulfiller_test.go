package fulfiller

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuromem/bankcore/internal/bank"
	"github.com/neuromem/bankcore/internal/cluster"
	"github.com/neuromem/bankcore/internal/types"
)

func newClusterWithSlot(t *testing.T, slot uint8, width uint16) (*cluster.BankCluster, *BankSlotMap, types.BankId) {
	t.Helper()
	c := cluster.New()
	id := types.NewBankId(1, "semantic", 0)
	c.GetOrCreate(id, "semantic", bank.Config{VectorWidth: width, IndexKind: bank.BruteForce()})
	slots := NewBankSlotMap()
	slots.Bind(slot, id)
	return c, slots, id
}

func TestWriteThenLoadRoundTrip(t *testing.T) {
	c, slots, _ := newClusterWithSlot(t, 3, 4)

	out := Write(c, slots, 3, []int32{100, -50, 0, 255}, types.Hot, 1, 200)
	require.Equal(t, KindWriteRegister, out.Kind)
	require.Equal(t, []int{2}, out.Shape)
	entryHi, entryLo := out.Data[0], out.Data[1]

	loaded := Load(c, slots, 3, entryHi, entryLo)
	require.Equal(t, KindWriteRegister, loaded.Kind)
	assert.Equal(t, []int32{100, -50, 0, 255}, loaded.Data)
}

func TestWriteUnboundSlotErrors(t *testing.T) {
	c := cluster.New()
	slots := NewBankSlotMap()
	out := Write(c, slots, 9, []int32{1}, types.Hot, 1, 200)
	assert.Equal(t, KindError, out.Kind)
	assert.NotEmpty(t, out.Err)
}

func TestQueryRanksClosestFirst(t *testing.T) {
	c, slots, _ := newClusterWithSlot(t, 1, 2)
	closest := Write(c, slots, 1, []int32{255, 0}, types.Hot, 1, 200)
	Write(c, slots, 1, []int32{0, 255}, types.Hot, 1, 200)

	out := Query(c, slots, 1, []int32{255, 0}, 2)
	require.Equal(t, KindWriteRegister, out.Kind)
	require.True(t, len(out.Data) >= 1)
	assert.Equal(t, int32(2), out.Data[0]) // count
	require.True(t, len(out.Data) >= 4)
	assert.Equal(t, closest.Data[0], out.Data[2]) // first hit's id_hi
	assert.Equal(t, closest.Data[1], out.Data[3]) // first hit's id_lo
}

func TestCountReflectsInserts(t *testing.T) {
	c, slots, _ := newClusterWithSlot(t, 2, 1)
	Write(c, slots, 2, []int32{1}, types.Hot, 1, 200)
	Write(c, slots, 2, []int32{1}, types.Hot, 1, 200)

	out := Count(c, slots, 2)
	require.Equal(t, KindWriteRegister, out.Kind)
	assert.Equal(t, []int32{2}, out.Data)
}

func TestTouchDeleteAndCountAfter(t *testing.T) {
	c, slots, _ := newClusterWithSlot(t, 5, 1)
	w := Write(c, slots, 5, []int32{1}, types.Hot, 1, 200)
	hi, lo := w.Data[0], w.Data[1]

	touched := Touch(c, slots, 5, hi, lo, 10)
	assert.Equal(t, KindOk, touched.Kind)

	deleted := Delete(c, slots, 5, hi, lo)
	assert.Equal(t, KindOk, deleted.Kind)

	out := Count(c, slots, 5)
	assert.Equal(t, []int32{0}, out.Data)
}

func TestPromoteAndDemote(t *testing.T) {
	c, slots, _ := newClusterWithSlot(t, 4, 1)
	w := Write(c, slots, 4, []int32{1}, types.Hot, 1, 50)
	hi, lo := w.Data[0], w.Data[1]

	out := Promote(c, slots, 4, hi, lo, 1000, 0, 0)
	assert.Equal(t, KindOk, out.Kind)

	out = Demote(c, slots, 4, hi, lo, 1000, 100)
	assert.Equal(t, KindOk, out.Kind)
}

func TestEvictRemovesLowestScoring(t *testing.T) {
	c, slots, _ := newClusterWithSlot(t, 6, 1)
	Write(c, slots, 6, []int32{1}, types.Hot, 1, 10)
	Write(c, slots, 6, []int32{1}, types.Hot, 1, 250)

	out := Evict(c, slots, 6, 1, 1000)
	require.Equal(t, KindWriteRegister, out.Kind)
	assert.Equal(t, []int32{1}, out.Data)

	count := Count(c, slots, 6)
	assert.Equal(t, []int32{1}, count.Data)
}

func TestCompactReturnsOk(t *testing.T) {
	c, slots, _ := newClusterWithSlot(t, 7, 1)
	Write(c, slots, 7, []int32{1}, types.Hot, 1, 200)
	out := Compact(c, slots, 7)
	assert.Equal(t, KindOk, out.Kind)
}

func TestLinkAndTraverseAcrossSlots(t *testing.T) {
	c := cluster.New()
	aID := types.NewBankId(1, "a", 0)
	bID := types.NewBankId(1, "b", 1)
	c.GetOrCreate(aID, "a", bank.Config{VectorWidth: 1, IndexKind: bank.BruteForce()})
	c.GetOrCreate(bID, "b", bank.Config{VectorWidth: 1, IndexKind: bank.BruteForce()})

	slots := NewBankSlotMap()
	slots.Bind(0, aID)
	slots.Bind(1, bID)

	src := Write(c, slots, 0, []int32{1}, types.Hot, 1, 200)
	dst := Write(c, slots, 1, []int32{1}, types.Hot, 1, 200)

	linked := Link(c, slots, 0, src.Data[0], src.Data[1], 1, dst.Data[0], dst.Data[1], types.RelatedTo, 100, 1)
	require.Equal(t, KindOk, linked.Kind)

	out := Traverse(c, slots, 0, src.Data[0], src.Data[1], types.Any, 3)
	require.Equal(t, KindWriteRegister, out.Kind)
	require.Equal(t, int32(1), out.Data[0])
	assert.Equal(t, int32(1), out.Data[1]) // target slot
	assert.Equal(t, dst.Data[0], out.Data[2])
	assert.Equal(t, dst.Data[1], out.Data[3])
}

func TestTraverseElidesUnboundTargetBank(t *testing.T) {
	c := cluster.New()
	aID := types.NewBankId(1, "a", 0)
	bID := types.NewBankId(1, "b", 1)
	c.GetOrCreate(aID, "a", bank.Config{VectorWidth: 1, IndexKind: bank.BruteForce()})
	c.GetOrCreate(bID, "b", bank.Config{VectorWidth: 1, IndexKind: bank.BruteForce()})

	slots := NewBankSlotMap()
	slots.Bind(0, aID) // bID intentionally left unbound

	src := Write(c, slots, 0, []int32{1}, types.Hot, 1, 200)
	bBank, _ := c.Get(bID)
	dstEntry, err := bBank.Insert([]types.Signal{types.FromSigned(1)}, types.Hot, 1, 200)
	require.NoError(t, err)

	require.NoError(t, c.Link(types.BankRef{Bank: aID, Entry: types.EntryId(fromHiLo(src.Data[0], src.Data[1]))}, types.BankRef{Bank: bID, Entry: dstEntry}, types.RelatedTo, 1, 1))

	out := Traverse(c, slots, 0, src.Data[0], src.Data[1], types.Any, 3)
	require.Equal(t, KindWriteRegister, out.Kind)
	assert.Equal(t, []int32{0}, out.Data, "target in an unbound bank must be elided, leaving count 0")
}
