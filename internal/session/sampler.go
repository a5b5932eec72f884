package session

import (
	"math/rand/v2"

	"github.com/dsadeck/dsadeck/internal/model"
)

// Sample draws k distinct questions from pool, uniformly at random and
// without replacement. The pool is copied, shuffled in place with a backward
// Fisher-Yates pass, and truncated to k; k is clamped to [0, len(pool)]
// before slicing. The caller supplies the random source so tests can seed it.
func Sample(r *rand.Rand, pool []model.Question, k int) []model.Question {
	out := make([]model.Question, len(pool))
	copy(out, pool)

	for i := len(out) - 1; i >= 1; i-- {
		j := r.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}

	if k < 0 {
		k = 0
	}
	if k > len(out) {
		k = len(out)
	}
	return out[:k]
}
