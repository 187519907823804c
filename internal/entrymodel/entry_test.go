package entrymodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuromem/bankcore/internal/types"
)

func vec(n int) []types.Signal {
	v := make([]types.Signal, n)
	for i := range v {
		v[i] = types.FromSigned(int32(i))
	}
	return v
}

func TestNewEntryChecksumValid(t *testing.T) {
	e := New(types.NewEntryId(1, 0), vec(4), types.NewBankId(1, "r", 0), types.Hot, 10, 200)
	assert.True(t, e.VerifyChecksum())
}

func TestTouchMonotone(t *testing.T) {
	e := New(types.NewEntryId(1, 0), vec(2), types.NewBankId(1, "r", 0), types.Hot, 10, 200)
	e.Touch(20)
	e.Touch(15) // tick goes "backwards": last_accessed_tick must not decrease
	assert.Equal(t, uint32(2), e.AccessCount)
	assert.Equal(t, uint64(20), e.LastAccessedTick)
}

func TestAddEdgePrunesLowestWeightOldestFirst(t *testing.T) {
	e := New(types.NewEntryId(1, 0), vec(2), types.NewBankId(1, "r", 0), types.Hot, 0, 200)
	target := types.BankRef{Bank: types.NewBankId(1, "x", 0), Entry: types.NewEntryId(1, 1)}

	e.AddEdge(types.Edge{Kind: types.IsA, Target: target, Weight: 10, CreatedTick: 5}, 2)
	e.AddEdge(types.Edge{Kind: types.HasA, Target: target, Weight: 10, CreatedTick: 1}, 2)
	pruned := e.AddEdge(types.Edge{Kind: types.RelatedTo, Target: target, Weight: 50, CreatedTick: 9}, 2)

	require.NotNil(t, pruned)
	assert.Equal(t, types.HasA, pruned.Kind) // same weight, older created_tick evicted
	assert.Len(t, e.Edges, 2)
	assert.True(t, e.VerifyChecksum())
}

func TestRemoveEdgesTo(t *testing.T) {
	e := New(types.NewEntryId(1, 0), vec(1), types.NewBankId(1, "r", 0), types.Hot, 0, 200)
	target := types.BankRef{Bank: types.NewBankId(2, "y", 0), Entry: types.NewEntryId(1, 1)}
	other := types.BankRef{Bank: types.NewBankId(3, "z", 0), Entry: types.NewEntryId(1, 2)}

	e.AddEdge(types.Edge{Kind: types.IsA, Target: target, Weight: 1, CreatedTick: 0}, 10)
	e.AddEdge(types.Edge{Kind: types.HasA, Target: other, Weight: 1, CreatedTick: 0}, 10)

	removed := e.RemoveEdgesTo(target)
	assert.Len(t, removed, 1)
	assert.Len(t, e.Edges, 1)
	assert.Equal(t, other, e.Edges[0].Target)
}

func TestPromotionAndDemotionEligibility(t *testing.T) {
	e := New(types.NewEntryId(1, 0), vec(1), types.NewBankId(1, "r", 0), types.Hot, 0, 100)
	e.AccessCount = 5

	assert.True(t, e.PromotionEligible(1000, 5, 500))
	assert.False(t, e.PromotionEligible(1000, 6, 500))
	assert.False(t, e.PromotionEligible(400, 5, 500))

	assert.True(t, e.DemotionEligible(150))
	assert.False(t, e.DemotionEligible(50))
}

func TestEvictionScoreOrdering(t *testing.T) {
	young := New(types.NewEntryId(1, 0), vec(1), types.NewBankId(1, "r", 0), types.Hot, 0, 0)
	young.LastAccessedTick = 0

	old := New(types.NewEntryId(1, 1), vec(1), types.NewBankId(1, "r", 0), types.Cold, 0, 255)
	old.AccessCount = 255
	old.LastAccessedTick = 1000

	assert.Greater(t, old.EvictionScore(1000), young.EvictionScore(1000))
}
