// Package fusion merges ranked result lists with reciprocal rank fusion.
package fusion

import (
	"math"
	"sort"
)

// DefaultK is the standard RRF smoothing constant.
const DefaultK = 60

// Scored wraps a fused item with its combined score.
type Scored[T any] struct {
	Item  T
	Score float64
}

// Fuse merges any number of ranked lists into one list ordered by
// reciprocal rank fusion score. Each item contributes 1/(k+rank+1) per
// list it appears in, with rank counted from zero. Items sharing a key are
// merged; the payload of the first occurrence (earlier list wins, then
// earlier rank) is kept. Ties keep first-seen order, so the output is
// deterministic for identical inputs. Items with an empty key are skipped.
// Scores are rounded to six decimals.
func Fuse[T any](k int, key func(T) string, lists ...[]T) []Scored[T] {
	if k <= 0 {
		k = DefaultK
	}
	type entry struct {
		item  T
		score float64
		seen  int
	}
	byKey := make(map[string]*entry)
	var order []string

	for _, list := range lists {
		for rank, item := range list {
			id := key(item)
			if id == "" {
				continue
			}
			contrib := 1.0 / float64(k+rank+1)
			if e, ok := byKey[id]; ok {
				e.score += contrib
				continue
			}
			byKey[id] = &entry{item: item, score: contrib, seen: len(order)}
			order = append(order, id)
		}
	}

	out := make([]Scored[T], 0, len(order))
	for _, id := range order {
		e := byKey[id]
		out = append(out, Scored[T]{Item: e.item, Score: round6(e.score)})
	}
	// Stable sort preserves first-seen order among equal scores.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func round6(f float64) float64 {
	return math.Round(f*1e6) / 1e6
}
