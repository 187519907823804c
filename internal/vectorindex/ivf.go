package vectorindex

import (
	"math/rand"

	"github.com/neuromem/bankcore/internal/types"
)

// DefaultNProbe is the default number of nearest clusters probed at
// query time.
const DefaultNProbe = 4

// IVFIndex partitions the vector space into k centroids, each owning
// a list of assigned entry ids. Queries probe only the nprobe nearest
// clusters.
type IVFIndex struct {
	k      int
	nprobe int

	centroids  [][]int32
	clusters   map[int][]types.EntryId
	assignment map[types.EntryId]int

	rng *rand.Rand
}

// NewIVF creates an IVF index with k centroids and nprobe probes at
// query time. k <= 0 leaves k unset, so each Rebuild uses DefaultK of
// the current entry count; nprobe defaults to DefaultNProbe when <= 0.
func NewIVF(k, nprobe int) *IVFIndex {
	if k < 0 {
		k = 0
	}
	if nprobe <= 0 {
		nprobe = DefaultNProbe
	}
	return &IVFIndex{
		k:          k,
		nprobe:     nprobe,
		clusters:   make(map[int][]types.EntryId),
		assignment: make(map[types.EntryId]int),
		rng:        rand.New(rand.NewSource(1)),
	}
}

// DefaultK computes the spec's default k = ceil(sqrt(n)).
func DefaultK(n int) int {
	if n <= 0 {
		return 1
	}
	k := 1
	for k*k < n {
		k++
	}
	return k
}

func toI32(v []types.Signal) []int32 {
	out := make([]int32, len(v))
	for i, s := range v {
		out[i] = s.Signed()
	}
	return out
}

// sqDist is the sum of squared differences of signed values, i64
// accumulator, used for centroid assignment (not the similarity
// kernel, which is reserved for scoring).
func sqDist(a []int32, b []types.Signal) int64 {
	var sum int64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		d := int64(a[i]) - int64(b[i].Signed())
		sum += d * d
	}
	return sum
}

func sqDistI32(a, b []int32) int64 {
	var sum int64
	for i := range a {
		d := int64(a[i]) - int64(b[i])
		sum += d * d
	}
	return sum
}

// nearestCentroid returns the index of the centroid closest to v.
func (ix *IVFIndex) nearestCentroid(v []types.Signal) int {
	best, bestDist := 0, int64(-1)
	for i, c := range ix.centroids {
		d := sqDist(c, v)
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func (ix *IVFIndex) assign(id types.EntryId, v []types.Signal) {
	if old, ok := ix.assignment[id]; ok {
		ix.removeFromCluster(old, id)
	}
	c := ix.nearestCentroid(v)
	ix.assignment[id] = c
	ix.clusters[c] = append(ix.clusters[c], id)
}

func (ix *IVFIndex) removeFromCluster(c int, id types.EntryId) {
	list := ix.clusters[c]
	for i, existing := range list {
		if existing == id {
			ix.clusters[c] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

func (ix *IVFIndex) Insert(id types.EntryId, vector []types.Signal) {
	if len(ix.centroids) == 0 {
		// No centroids yet: seed the first one from this vector so
		// inserts before the first Rebuild still work.
		ix.centroids = append(ix.centroids, toI32(vector))
	}
	ix.assign(id, vector)
}

func (ix *IVFIndex) Remove(id types.EntryId) {
	if c, ok := ix.assignment[id]; ok {
		ix.removeFromCluster(c, id)
		delete(ix.assignment, id)
	}
}

// Rebuild recomputes centroids from scratch: k = ceil(sqrt(n)) (or
// the configured k), seeded from a random sample of k distinct
// entries' vectors, followed by a single assignment pass.
func (ix *IVFIndex) Rebuild(source Source) {
	ids := make([]types.EntryId, 0)
	vectors := make(map[types.EntryId][]types.Signal)
	source.Each(func(id types.EntryId, v []types.Signal) {
		ids = append(ids, id)
		vectors[id] = v
	})

	ix.clusters = make(map[int][]types.EntryId)
	ix.assignment = make(map[types.EntryId]int)

	if len(ids) == 0 {
		ix.centroids = nil
		return
	}

	k := ix.k
	if k <= 0 {
		k = DefaultK(len(ids))
	}
	if k > len(ids) {
		k = len(ids)
	}

	ix.centroids = ix.sampleCentroids(ids, vectors, k)

	for _, id := range ids {
		ix.assign(id, vectors[id])
	}
}

func (ix *IVFIndex) sampleCentroids(ids []types.EntryId, vectors map[types.EntryId][]types.Signal, k int) [][]int32 {
	perm := ix.rng.Perm(len(ids))
	centroids := make([][]int32, 0, k)
	for i := 0; i < k; i++ {
		centroids = append(centroids, toI32(vectors[ids[perm[i]]]))
	}
	return centroids
}

// RebuildKMeans performs up to maxIterations rounds of Lloyd's
// algorithm: assign every entry to its nearest centroid, then update
// each centroid as the component-wise mean of its members. Terminates
// early when no assignment changes in a full pass. Empty clusters are
// re-seeded from a random entry.
func (ix *IVFIndex) RebuildKMeans(source Source, maxIterations int) {
	ix.Rebuild(source)
	if len(ix.centroids) == 0 {
		return
	}

	ids := make([]types.EntryId, 0)
	vectors := make(map[types.EntryId][]types.Signal)
	source.Each(func(id types.EntryId, v []types.Signal) {
		ids = append(ids, id)
		vectors[id] = v
	})

	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		newAssignment := make(map[types.EntryId]int, len(ids))
		for _, id := range ids {
			c := ix.nearestCentroid(vectors[id])
			newAssignment[id] = c
			if ix.assignment[id] != c {
				changed = true
			}
		}

		ix.assignment = newAssignment
		ix.clusters = make(map[int][]types.EntryId)
		for _, id := range ids {
			c := ix.assignment[id]
			ix.clusters[c] = append(ix.clusters[c], id)
		}

		ix.updateCentroids(vectors, ids)

		if !changed {
			break
		}
	}
}

func (ix *IVFIndex) updateCentroids(vectors map[types.EntryId][]types.Signal, allIDs []types.EntryId) {
	width := len(ix.centroids[0])
	for c := range ix.centroids {
		members := ix.clusters[c]
		if len(members) == 0 {
			// Re-seed from a random entry.
			id := allIDs[ix.rng.Intn(len(allIDs))]
			ix.centroids[c] = toI32(vectors[id])
			continue
		}
		sums := make([]int64, width)
		for _, id := range members {
			v := vectors[id]
			for i := 0; i < width; i++ {
				sums[i] += int64(v[i].Signed())
			}
		}
		updated := make([]int32, width)
		for i := 0; i < width; i++ {
			updated[i] = int32(sums[i] / int64(len(members)))
		}
		ix.centroids[c] = updated
	}
}

// Centroids returns the current centroid set, for snapshot
// serialization. Callers must not mutate the returned slices.
func (ix *IVFIndex) Centroids() [][]int32 {
	return ix.centroids
}

// LoadCentroids installs a persisted centroid set and reassigns every
// entry in source to its nearest centroid, skipping the centroid
// sampling Rebuild would otherwise perform.
func (ix *IVFIndex) LoadCentroids(centroids [][]int32, source Source) {
	ix.centroids = centroids
	ix.clusters = make(map[int][]types.EntryId)
	ix.assignment = make(map[types.EntryId]int)
	if len(centroids) == 0 {
		return
	}
	source.Each(func(id types.EntryId, v []types.Signal) {
		ix.assign(id, v)
	})
}

func (ix *IVFIndex) Query(query []types.Signal, source Source, topK int) []Scored {
	if len(ix.centroids) == 0 {
		return nil
	}

	queryI32 := toI32(query)
	type centroidDist struct {
		idx  int
		dist int64
	}
	dists := make([]centroidDist, len(ix.centroids))
	for i, c := range ix.centroids {
		dists[i] = centroidDist{idx: i, dist: sqDistI32(queryI32, c)}
	}
	// Select the nprobe nearest clusters (simple partial selection;
	// the candidate set is small — at most k clusters).
	nprobe := ix.nprobe
	if nprobe > len(dists) {
		nprobe = len(dists)
	}
	for i := 0; i < nprobe; i++ {
		min := i
		for j := i + 1; j < len(dists); j++ {
			if dists[j].dist < dists[min].dist {
				min = j
			}
		}
		dists[i], dists[min] = dists[min], dists[i]
	}
	probe := dists[:nprobe]

	collect := collectTopK(func(yield func(types.EntryId, int32)) {
		for _, cd := range probe {
			for _, id := range ix.clusters[cd.idx] {
				v, ok := source.Vector(id)
				if !ok {
					continue
				}
				yield(id, score(query, v))
			}
		}
	})
	return collect(topK)
}
