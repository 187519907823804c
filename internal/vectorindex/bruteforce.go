package vectorindex

import "github.com/neuromem/bankcore/internal/types"

// BruteForceIndex scores every entry against the query and returns the
// top-k via a bounded min-heap. It is always correct (the ground
// truth other index variants are measured against).
type BruteForceIndex struct {
	ids map[types.EntryId]struct{}
}

// NewBruteForce creates an empty brute-force index.
func NewBruteForce() *BruteForceIndex {
	return &BruteForceIndex{ids: make(map[types.EntryId]struct{})}
}

func (b *BruteForceIndex) Insert(id types.EntryId, _ []types.Signal) {
	b.ids[id] = struct{}{}
}

func (b *BruteForceIndex) Remove(id types.EntryId) {
	delete(b.ids, id)
}

func (b *BruteForceIndex) Rebuild(source Source) {
	b.ids = make(map[types.EntryId]struct{})
	source.Each(func(id types.EntryId, _ []types.Signal) {
		b.ids[id] = struct{}{}
	})
}

func (b *BruteForceIndex) Query(query []types.Signal, source Source, topK int) []Scored {
	collect := collectTopK(func(yield func(types.EntryId, int32)) {
		source.Each(func(id types.EntryId, vector []types.Signal) {
			if _, ok := b.ids[id]; !ok {
				return
			}
			yield(id, score(query, vector))
		})
	})
	return collect(topK)
}
