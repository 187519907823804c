// Package vectorindex implements the two vector index variants —
// brute-force and inverted-file (IVF) with integer k-means — behind a
// shared capability contract: insert, remove, query, rebuild. The
// variants are a tagged choice selected at bank construction time from
// BankConfig.index_kind, not an inheritance hierarchy.
package vectorindex

import (
	"container/heap"

	"github.com/neuromem/bankcore/internal/similarity"
	"github.com/neuromem/bankcore/internal/types"
)

// Scored pairs an entry id with its similarity score.
type Scored struct {
	ID    types.EntryId
	Score int32
}

// Source lets an index look up the vectors it does not itself cache.
// A DataBank's entry map satisfies this.
type Source interface {
	// Each calls fn once per entry currently in the bank.
	Each(fn func(id types.EntryId, vector []types.Signal))
	// Vector returns the vector for id, or ok=false if absent.
	Vector(id types.EntryId) (vector []types.Signal, ok bool)
}

// Index is the capability set both variants implement.
type Index interface {
	Insert(id types.EntryId, vector []types.Signal)
	Remove(id types.EntryId)
	Query(query []types.Signal, source Source, topK int) []Scored
	Rebuild(source Source)
}

// topKHeap is a bounded min-heap over Scored candidates ordered so the
// worst candidate (lowest score, tie-broken by smaller EntryId) sits
// at the root and is evicted first when the heap exceeds its bound.
type topKHeap []Scored

func (h topKHeap) Len() int { return len(h) }
func (h topKHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].ID < h[j].ID
}
func (h topKHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *topKHeap) Push(x interface{}) { *h = append(*h, x.(Scored)) }
func (h *topKHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// collectTopK bounds a stream of scored candidates to the topK best,
// returned in descending order (ties broken by larger EntryId).
func collectTopK(candidates func(yield func(types.EntryId, int32))) func(topK int) []Scored {
	return func(topK int) []Scored {
		if topK <= 0 {
			return nil
		}
		h := &topKHeap{}
		heap.Init(h)
		candidates(func(id types.EntryId, score int32) {
			if h.Len() < topK {
				heap.Push(h, Scored{ID: id, Score: score})
				return
			}
			if (*h)[0].Score < score || ((*h)[0].Score == score && (*h)[0].ID < id) {
				heap.Pop(h)
				heap.Push(h, Scored{ID: id, Score: score})
			}
		})

		out := make([]Scored, h.Len())
		for i := len(out) - 1; i >= 0; i-- {
			out[i] = heap.Pop(h).(Scored)
		}
		return out
	}
}

func score(query, stored []types.Signal) int32 {
	return similarity.SparseCosine(query, stored)
}
