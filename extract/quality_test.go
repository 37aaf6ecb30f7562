package extract

import (
	"strings"
	"testing"
)

func TestScore_Tiers(t *testing.T) {
	long := strings.Repeat("word ", 200) + "\nsecond paragraph"

	// Full article: title + description + long structured content.
	if got := Score(long, "Title", "Desc"); got != 1.0 {
		t.Errorf("full article: got %v, want 1.0", got)
	}

	// Nothing at all still earns the single-line structure floor.
	if got := Score("", "", ""); got != 0.05 {
		t.Errorf("empty: got %v, want 0.05", got)
	}

	// Title only, no content.
	if got := Score("", "Title", ""); got != 0.25 {
		t.Errorf("title only: got %v, want 0.25", got)
	}
}

func TestScore_ContentLengthBands(t *testing.T) {
	title, desc := "T", "D"
	base := 0.2 + 0.2 + 0.05 // title + description + flat structure

	cases := []struct {
		contentLen int
		bonus      float64
	}{
		{79, 0},
		{80, 0.1},
		{200, 0.25},
		{600, 0.4},
	}
	for _, c := range cases {
		content := strings.Repeat("a", c.contentLen)
		want := round3(base + c.bonus)
		if got := Score(content, title, desc); got != want {
			t.Errorf("len %d: got %v, want %v", c.contentLen, got, want)
		}
	}
}

func TestScore_CappedAtOne(t *testing.T) {
	long := strings.Repeat("line\n", 500)
	if got := Score(long, "T", "D"); got > 1.0 {
		t.Errorf("score above 1.0: %v", got)
	}
}
