package urlnorm

import "testing"

func TestNormalize(t *testing.T) {
	// WHAT: Canonical form covers scheme/host case, ports, utm params, slashes.
	// WHY: This string is the dedup key for results and persisted items.
	cases := []struct {
		in   string
		want string
	}{
		{"HTTPS://Example.COM/News/", "https://example.com/News"},
		{"http://example.com:80/a", "http://example.com/a"},
		{"https://example.com:443/a", "https://example.com/a"},
		{"https://example.com:8443/a", "https://example.com:8443/a"},
		{"https://example.com/story?utm_source=x&utm_medium=y&id=3", "https://example.com/story?id=3"},
		{"https://example.com/a?b=2&a=1", "https://example.com/a?a=1&b=2"},
		{"https://example.com/", "https://example.com/"},
		{"https://example.com/page#section", "https://example.com/page"},
	}
	for _, c := range cases {
		got, err := Normalize(c.in)
		if err != nil {
			t.Errorf("%s: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("%s: got %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalize_SyntheticSchemePassthrough(t *testing.T) {
	got, err := Normalize("virtual://tavily")
	if err != nil {
		t.Fatal(err)
	}
	if got != "virtual://tavily" {
		t.Errorf("got %q", got)
	}
}

func TestNormalize_Errors(t *testing.T) {
	if _, err := Normalize(""); err == nil {
		t.Error("empty URL should error")
	}
	if _, err := Normalize("https:///nohost"); err == nil {
		t.Error("missing host should error")
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	in := "HTTPS://Example.com/a/?utm_campaign=z&x=1"
	once := MustNormalize(in)
	twice := MustNormalize(once)
	if once != twice {
		t.Errorf("not idempotent: %q vs %q", once, twice)
	}
}
