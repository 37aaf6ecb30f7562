package fusion

import (
	"math"
	"reflect"
	"testing"
)

type doc struct {
	url   string
	title string
}

func docKey(d doc) string { return d.url }

func urls(scored []Scored[doc]) []string {
	out := make([]string, len(scored))
	for i, s := range scored {
		out[i] = s.Item.url
	}
	return out
}

// WHAT: hand-computed RRF scores for two small lists.
// WHY: the fusion formula is 1/(k+rank+1) summed per list, k=60.
func TestFuseFormula(t *testing.T) {
	internal := []doc{{url: "a"}, {url: "b"}}
	external := []doc{{url: "b"}, {url: "c"}}

	got := Fuse(DefaultK, docKey, internal, external)
	if len(got) != 3 {
		t.Fatalf("got %d items, want 3", len(got))
	}

	// b: rank 1 internally, rank 0 externally.
	wantB := 1.0/62 + 1.0/61
	if got[0].Item.url != "b" || math.Abs(got[0].Score-round6(wantB)) > 1e-9 {
		t.Fatalf("top = %s score %v, want b score %v", got[0].Item.url, got[0].Score, round6(wantB))
	}
	wantA := round6(1.0 / 61)
	if got[1].Item.url != "a" || got[1].Score != wantA {
		t.Fatalf("second = %s score %v, want a score %v", got[1].Item.url, got[1].Score, wantA)
	}
	wantC := round6(1.0 / 62)
	if got[2].Item.url != "c" || got[2].Score != wantC {
		t.Fatalf("third = %s score %v, want c score %v", got[2].Item.url, got[2].Score, wantC)
	}
}

// WHAT: same key in both lists keeps the first list's payload.
// WHY: internal records carry fields external ones lack.
func TestFuseFirstSeenPayloadWins(t *testing.T) {
	internal := []doc{{url: "x", title: "internal copy"}}
	external := []doc{{url: "x", title: "external copy"}}

	got := Fuse(DefaultK, docKey, internal, external)
	if len(got) != 1 {
		t.Fatalf("got %d items, want 1 after dedup", len(got))
	}
	if got[0].Item.title != "internal copy" {
		t.Fatalf("payload = %q, want first-seen copy", got[0].Item.title)
	}
}

// WHAT: ties at the same rank in different lists.
// WHY: equal scores must keep first-seen order so output is deterministic.
func TestFuseStableTies(t *testing.T) {
	internal := []doc{{url: "i0"}, {url: "i1"}}
	external := []doc{{url: "e0"}, {url: "e1"}}

	got := Fuse(DefaultK, docKey, internal, external)
	want := []string{"i0", "e0", "i1", "e1"}
	if !reflect.DeepEqual(urls(got), want) {
		t.Fatalf("order = %v, want %v", urls(got), want)
	}

	// Same inputs, same output.
	again := Fuse(DefaultK, docKey, internal, external)
	if !reflect.DeepEqual(urls(again), urls(got)) {
		t.Fatalf("fusion is not deterministic: %v vs %v", urls(again), urls(got))
	}
}

func TestFuseSkipsEmptyKeys(t *testing.T) {
	got := Fuse(DefaultK, docKey, []doc{{url: ""}, {url: "a"}})
	if len(got) != 1 || got[0].Item.url != "a" {
		t.Fatalf("got %v, want only keyed items", urls(got))
	}
	// The keyless entry still occupied rank 0.
	if got[0].Score != round6(1.0/62) {
		t.Fatalf("score = %v, want rank-1 contribution", got[0].Score)
	}
}

func TestFuseEmptyLists(t *testing.T) {
	got := Fuse(DefaultK, docKey, nil, nil)
	if len(got) != 0 {
		t.Fatalf("got %d items, want 0", len(got))
	}
}
