package search

import (
	"testing"

	"github.com/frandy73/Lumina/internal/domain"
)

// ---------- Options + defaultConfig ----------
func TestOptionsAndDefaults(t *testing.T) {
	def := defaultConfig()
	if def.titleWeight != 0.6 || def.stopwords != nil || def.maxEntries != 0 {
		t.Fatalf("defaultConfig unexpected: %#v", def)
	}

	cfg := def
	WithTitleWeight(0.25)(&cfg)
	if cfg.titleWeight != 0.25 {
		t.Fatalf("WithTitleWeight failed: %v", cfg.titleWeight)
	}
	WithTitleWeight(1.5)(&cfg) // no-op
	WithTitleWeight(-1)(&cfg)  // no-op
	if cfg.titleWeight != 0.25 {
		t.Fatalf("out-of-range weight should be ignored, got %v", cfg.titleWeight)
	}

	WithStopwords([]string{"  The ", "", "An"})(&cfg)
	if _, ok := cfg.stopwords["the"]; !ok {
		t.Fatalf("WithStopwords missing 'the': %#v", cfg.stopwords)
	}
	if _, ok := cfg.stopwords["an"]; !ok {
		t.Fatalf("WithStopwords missing 'an': %#v", cfg.stopwords)
	}

	cfg2 := def
	WithStopwords(nil)(&cfg2)
	if cfg2.stopwords != nil {
		t.Fatalf("empty stopwords should remain nil")
	}

	WithMaxEntries(2)(&cfg)
	if cfg.maxEntries != 2 {
		t.Fatalf("WithMaxEntries failed: %d", cfg.maxEntries)
	}
	WithMaxEntries(0)(&cfg) // no-op
	if cfg.maxEntries != 2 {
		t.Fatalf("non-positive maxEntries should be ignored")
	}
}

func TestNewIndex_SkipsEmptyAndCaps(t *testing.T) {
	idx := NewIndex([]Entry{
		{ID: "empty", Title: "  ", Body: "!!!"},
		{ID: "a", Title: "alpha"},
		{ID: "b", Title: "beta"},
		{ID: "c", Title: "gamma"},
	}, WithMaxEntries(2))

	ii, ok := idx.(*index)
	if !ok {
		t.Fatalf("unexpected index type %T", idx)
	}
	if len(ii.entries) != 2 || ii.entries[0].id != "a" || ii.entries[1].id != "b" {
		t.Fatalf("unexpected entries: %#v", ii.entries)
	}
}

func TestTopK_TitleOutranksBody(t *testing.T) {
	idx := NewIndex([]Entry{
		{ID: "b", Title: "Organic Chemistry", Body: "carbon bonds; cell membranes are lipids"},
		{ID: "a", Title: "Cell Biology", Body: "mitochondria produce energy"},
		{ID: "c", Title: "History", Body: ""},
	})

	got := idx.TopK("cell biology", 0)
	if len(got) != 2 {
		t.Fatalf("want 2 results, got %#v", got)
	}
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("unexpected order: %#v", got)
	}
	if got[0].Score != 0.6 {
		t.Fatalf("title-only match should score the title weight, got %v", got[0].Score)
	}
	if got[1].Score <= 0 || got[1].Score >= got[0].Score {
		t.Fatalf("body match should score lower: %#v", got)
	}

	if one := idx.TopK("cell biology", 1); len(one) != 1 || one[0].ID != "a" {
		t.Fatalf("k=1 should keep the best match: %#v", one)
	}
}

func TestTopK_EmptyInputs(t *testing.T) {
	empty := NewIndex(nil)
	if res := empty.TopK("x", 3); res != nil {
		t.Fatalf("empty index should return nil")
	}

	idx := NewIndex([]Entry{{ID: "a", Title: "alpha beta"}})
	if out := idx.TopK("   ", 2); out != nil {
		t.Fatalf("blank query should return nil")
	}
	if out := idx.TopK("zeta", 2); out != nil {
		t.Fatalf("no overlap should return nil, got %#v", out)
	}

	stop := NewIndex([]Entry{{ID: "a", Title: "alpha beta"}}, WithStopwords([]string{"alpha", "beta"}))
	if out := stop.TopK("alpha beta", 2); out != nil {
		t.Fatalf("query becoming empty should yield nil")
	}
}

func TestTopK_TieBreaks(t *testing.T) {
	idx := NewIndex([]Entry{
		{ID: "w", Title: "Alpha beta!!"},
		{ID: "x", Title: "Alpha beta"},
		{ID: "m", Title: "alpha BETA"},
	})

	out := idx.TopK("alpha beta", 10)
	if len(out) != 3 {
		t.Fatalf("expected 3 results, got %#v", out)
	}
	// equal scores: shorter title first, then ID
	if out[0].ID != "m" || out[1].ID != "x" || out[2].ID != "w" {
		t.Fatalf("tie-break failed: %#v", out)
	}
	for _, r := range out {
		if r.Score != 0.6 {
			t.Fatalf("expected equal scores, got %#v", out)
		}
	}
}

func TestTopK_MarkdownBodyIsFlattened(t *testing.T) {
	idx := NewIndex([]Entry{{
		ID:   "d1",
		Body: "## Photosynthesis\n\n| Stage | Site |\n|---|---|\n| light | thylakoid |",
	}}, WithTitleWeight(0))

	out := idx.TopK("thylakoid", 1)
	if len(out) != 1 || out[0].ID != "d1" {
		t.Fatalf("expected table cell to be searchable: %#v", out)
	}
}

func TestFromDocuments(t *testing.T) {
	docs := []domain.Document{
		{ID: "d1", Name: "Notes.pdf", AppData: domain.AppData{Summary: "s", UserNotes: "n"}},
		{ID: "d2", Name: "Bare.pdf"},
	}
	got := FromDocuments(docs)
	if len(got) != 2 {
		t.Fatalf("want 2 entries, got %d", len(got))
	}
	if got[0] != (Entry{ID: "d1", Title: "Notes.pdf", Body: "s\n\nn"}) {
		t.Fatalf("unexpected entry: %#v", got[0])
	}
	if got[1].Body != "" || got[1].Title != "Bare.pdf" {
		t.Fatalf("unexpected entry: %#v", got[1])
	}
}

// ---------- Helpers ----------
func TestHelpers_TokenizeOverlapJaccard(t *testing.T) {
	toks := tokenize("Hello HELLO 123 world abc123", nil)
	for _, w := range []string{"hello", "world", "123", "abc123"} {
		if _, ok := toks[w]; !ok {
			t.Fatalf("tokenize missing %q: %#v", w, toks)
		}
	}

	stop := map[string]struct{}{"hello": {}}
	toks2 := tokenize("Hello world", stop)
	if _, ok := toks2["hello"]; ok {
		t.Fatalf("stopword not removed: %#v", toks2)
	}
	if toks3 := tokenize("$$$ !!!", nil); toks3 != nil {
		t.Fatalf("tokenize should return nil when no words")
	}

	if overlap(nil, toks) != 0 || overlap(toks, nil) != 0 {
		t.Fatalf("overlap with nil should be 0")
	}
	a := map[string]struct{}{"a": {}, "b": {}, "c": {}}
	b := map[string]struct{}{"a": {}}
	if overlap(a, b) != 1 {
		t.Fatalf("overlap with swap branch should be 1")
	}
	if got := jaccard(a, b); got != 1.0/3.0 {
		t.Fatalf("jaccard = %v", got)
	}
	if jaccard(a, nil) != 0 {
		t.Fatalf("jaccard with empty set should be 0")
	}
}
