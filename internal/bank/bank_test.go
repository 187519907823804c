package bank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuromem/bankcore/internal/journal"
	"github.com/neuromem/bankcore/internal/types"
)

func newTestBank() *DataBank {
	return New(types.NewBankId(1, "semantic", 0), "semantic", Config{VectorWidth: 4})
}

func vec(vals ...int32) []types.Signal {
	out := make([]types.Signal, len(vals))
	for i, v := range vals {
		out[i] = types.FromSigned(v)
	}
	return out
}

func TestInsertAndGet(t *testing.T) {
	b := newTestBank()
	id, err := b.Insert(vec(1, -1, 0, 2), types.Hot, 1000, 200)
	require.NoError(t, err)
	assert.False(t, id.IsZero())

	e, ok := b.Get(id)
	require.True(t, ok)
	assert.Equal(t, types.Hot, e.Temperature)
	assert.Equal(t, uint8(200), e.Confidence)
}

func TestInsertWidthMismatch(t *testing.T) {
	b := newTestBank()
	_, err := b.Insert(vec(1, 2), types.Hot, 1000, 200)
	require.Error(t, err)
}

func TestInsertFullRejectsWhenNothingEvictable(t *testing.T) {
	b := New(types.NewBankId(1, "x", 0), "x", Config{MaxEntries: 0})
	// WithDefaults turns a zero MaxEntries into 10 000, so set the
	// zero capacity on the bank itself.
	b.config.MaxEntries = 0
	_, err := b.Insert(vec(1), types.Hot, 1, 100)
	require.Error(t, err)
}

// TestInsertAtCapacityEvictsWeakest reproduces a 5th insert into a
// full-but-evictable 4-entry bank succeeding by evicting the weakest
// prior entry rather than failing outright.
func TestInsertAtCapacityEvictsWeakest(t *testing.T) {
	b := New(types.NewBankId(1, "x", 0), "x", Config{MaxEntries: 4})

	var ids []types.EntryId
	for i := 0; i < 4; i++ {
		id, err := b.Insert(vec(1), types.Hot, 1, 0)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.Equal(t, 4, b.Len())

	newest, err := b.Insert(vec(1), types.Hot, 1, 0)
	require.NoError(t, err)

	assert.Equal(t, 4, b.Len(), "insert at capacity must evict exactly one entry, not grow past max_entries")
	_, stillThere := b.Get(ids[0])
	assert.False(t, stillThere, "the lowest-scoring (earliest, tied) entry must be the one evicted")
	_, ok := b.Get(newest)
	assert.True(t, ok, "the newly inserted entry must be present")
}

func TestTouchBumpsAccess(t *testing.T) {
	b := newTestBank()
	id, err := b.Insert(vec(1, 0, 0, 0), types.Hot, 1000, 100)
	require.NoError(t, err)
	require.NoError(t, b.Touch(id, 1500))
	e, _ := b.Get(id)
	assert.Equal(t, uint32(1), e.AccessCount)
}

func TestAddEdgeSameBankRegistersReverse(t *testing.T) {
	b := newTestBank()
	src, err := b.Insert(vec(1, 0, 0, 0), types.Hot, 1000, 100)
	require.NoError(t, err)
	dst, err := b.Insert(vec(0, 1, 0, 0), types.Hot, 1001, 100)
	require.NoError(t, err)

	edge := types.Edge{Kind: types.IsA, Target: types.BankRef{Bank: b.Id(), Entry: dst}, Weight: 200, CreatedTick: 1}
	pruned, err := b.AddEdge(src, edge)
	require.NoError(t, err)
	assert.Nil(t, pruned)

	rev := b.ReverseEdges(dst)
	require.Len(t, rev, 1)
	assert.Equal(t, types.BankRef{Bank: b.Id(), Entry: src}, rev[0].Source)
	assert.Equal(t, types.IsA, rev[0].Kind)
}

func TestAddEdgePrunesLowestWeight(t *testing.T) {
	b := New(types.NewBankId(1, "x", 0), "x", Config{VectorWidth: 1, MaxEdgesPerEntry: 1})
	src, _ := b.Insert(vec(1), types.Hot, 1, 100)
	a, _ := b.Insert(vec(1), types.Hot, 2, 100)
	c, _ := b.Insert(vec(1), types.Hot, 3, 100)

	_, err := b.AddEdge(src, types.Edge{Kind: types.IsA, Target: types.BankRef{Bank: b.Id(), Entry: a}, Weight: 50, CreatedTick: 1})
	require.NoError(t, err)
	pruned, err := b.AddEdge(src, types.Edge{Kind: types.IsA, Target: types.BankRef{Bank: b.Id(), Entry: c}, Weight: 200, CreatedTick: 2})
	require.NoError(t, err)
	require.NotNil(t, pruned)
	assert.Equal(t, a, pruned.Target.Entry)

	assert.Empty(t, b.ReverseEdges(a))
	rev := b.ReverseEdges(c)
	require.Len(t, rev, 1)
}

func TestDeleteReturnsOutgoingEdgesAndClearsLocalReverse(t *testing.T) {
	b := newTestBank()
	src, _ := b.Insert(vec(1, 0, 0, 0), types.Hot, 1, 100)
	dst, _ := b.Insert(vec(0, 1, 0, 0), types.Hot, 2, 100)
	_, err := b.AddEdge(src, types.Edge{Kind: types.IsA, Target: types.BankRef{Bank: b.Id(), Entry: dst}, Weight: 100, CreatedTick: 1})
	require.NoError(t, err)

	outgoing, err := b.Delete(src)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	assert.Empty(t, b.ReverseEdges(dst))

	_, ok := b.Get(src)
	assert.False(t, ok)
}

func TestDeleteUnknownEntry(t *testing.T) {
	b := newTestBank()
	_, err := b.Delete(types.NewEntryId(1, 1))
	require.Error(t, err)
}

func TestQuerySparseRanksClosestFirst(t *testing.T) {
	b := newTestBank()
	near, _ := b.Insert(vec(1, 1, 0, 0), types.Hot, 1, 200)
	_, _ = b.Insert(vec(-1, -1, 0, 0), types.Hot, 2, 200)

	results := b.QuerySparse(vec(1, 1, 0, 0), 1)
	require.Len(t, results, 1)
	assert.Equal(t, near, results[0].ID)
}

func TestPromoteEligibleAdvancesTemperature(t *testing.T) {
	b := newTestBank()
	id, _ := b.Insert(vec(1, 0, 0, 0), types.Hot, 0, 200)
	require.NoError(t, b.Touch(id, 10))
	ok, err := b.Promote(id, 10000, 1, 100)
	require.NoError(t, err)
	assert.True(t, ok)
	e, _ := b.Get(id)
	assert.Equal(t, types.Warm, e.Temperature)
}

func TestPromoteIneligibleNoChange(t *testing.T) {
	b := newTestBank()
	id, _ := b.Insert(vec(1, 0, 0, 0), types.Hot, 0, 200)
	ok, err := b.Promote(id, 1, 5, 100)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDemoteBelowThreshold(t *testing.T) {
	b := newTestBank()
	id, _ := b.Insert(vec(1, 0, 0, 0), types.Warm, 0, 10)
	ok, err := b.Demote(id, 1, 50)
	require.NoError(t, err)
	assert.True(t, ok)
	e, _ := b.Get(id)
	assert.Equal(t, types.Hot, e.Temperature)
}

func TestEvictNRemovesLowestScoringFirst(t *testing.T) {
	b := New(types.NewBankId(1, "x", 0), "x", Config{VectorWidth: 1})
	weak, _ := b.Insert(vec(1), types.Hot, 0, 0)
	strong, _ := b.Insert(vec(1), types.Cold, 0, 255)

	removed, err := b.EvictN(1, 100000)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, weak, removed[0].ID)

	_, ok := b.Get(strong)
	assert.True(t, ok)
}

func TestEvictNAppendsSingleBatchRecord(t *testing.T) {
	b := New(types.NewBankId(1, "x", 0), "x", Config{VectorWidth: 1})
	var recorded []journal.Record
	b.AttachJournal(sinkFunc(func(r journal.Record) error {
		recorded = append(recorded, r)
		return nil
	}))
	_, _ = b.Insert(vec(1), types.Hot, 0, 100)
	_, _ = b.Insert(vec(1), types.Hot, 1, 100)
	recorded = nil // drop insert records

	_, err := b.EvictN(2, 100000)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, journal.KindBatchEvict, recorded[0].Kind)
}

func TestShouldPersistAfterMutationThreshold(t *testing.T) {
	b := New(types.NewBankId(1, "x", 0), "x", Config{VectorWidth: 1, PersistAfterMutations: 2})
	assert.False(t, b.ShouldPersist(0))
	_, _ = b.Insert(vec(1), types.Hot, 0, 100)
	assert.False(t, b.ShouldPersist(0))
	_, _ = b.Insert(vec(1), types.Hot, 0, 100)
	assert.True(t, b.ShouldPersist(0))

	b.MarkPersisted(1)
	assert.False(t, b.ShouldPersist(1))
}

func TestCompactRebuildsIndexAndGCsReverse(t *testing.T) {
	b := newTestBank()
	src, _ := b.Insert(vec(1, 0, 0, 0), types.Hot, 1, 100)
	dst, _ := b.Insert(vec(0, 1, 0, 0), types.Hot, 2, 100)
	_, err := b.AddEdge(src, types.Edge{Kind: types.IsA, Target: types.BankRef{Bank: b.Id(), Entry: dst}, Weight: 10, CreatedTick: 1})
	require.NoError(t, err)
	_, err = b.Delete(src)
	require.NoError(t, err)

	b.Compact()
	results := b.QuerySparse(vec(0, 1, 0, 0), 5)
	require.Len(t, results, 1)
	assert.Equal(t, dst, results[0].ID)
}

type sinkFunc func(journal.Record) error

func (f sinkFunc) Append(r journal.Record) error { return f(r) }
