// Package similarity implements the integer-only sparse cosine kernel
// used for pattern-completion retrieval, and its supporting integer
// square root.
package similarity

import "github.com/neuromem/bankcore/internal/types"

// SparseCosine computes the sparse cosine similarity between a query
// and a stored vector, scaled x256, as an i32 in [-256, 256].
//
// Positions where the query magnitude is zero are skipped entirely —
// a partial cue has many inactive dimensions and zero-masking them
// prevents artificially lowering the score of correct completions.
// query and stored must have equal length.
func SparseCosine(query, stored []types.Signal) int32 {
	var dot, qNorm, sNorm int64

	n := len(query)
	if len(stored) < n {
		n = len(stored)
	}

	for i := 0; i < n; i++ {
		q := query[i]
		if !q.Active() {
			continue
		}
		qs := int64(q.Signed())
		ss := int64(stored[i].Signed())
		dot += qs * ss
		qNorm += qs * qs
		sNorm += ss * ss
	}

	if qNorm == 0 || sNorm == 0 {
		return 0
	}

	qMag := Isqrt(qNorm)
	sMag := Isqrt(sNorm)
	if qMag == 0 || sMag == 0 {
		return 0
	}

	result := (dot * 256) / (qMag * sMag)
	if result > 256 {
		result = 256
	} else if result < -256 {
		result = -256
	}
	return int32(result)
}
