// Package search ranks a user's library against a free-text query.
//
// The index is built per request from the documents the caller already
// loaded, is immutable after construction and safe for concurrent use.
// Scoring is deterministic:
//
//	score = titleWeight*J(Q, title) + (1-titleWeight)*J(Q, body)
//
// where J is Jaccard similarity over lower-cased Unicode word tokens.
// Ties break on the shorter title, then on ID.
package search

import (
	"regexp"
	"sort"
	"strings"

	"github.com/frandy73/Lumina/internal/domain"
)

// Entry is one searchable item.
type Entry struct {
	ID    string
	Title string
	Body  string
}

// Result is a ranked entry ID with its score in (0, 1].
type Result struct {
	ID    string
	Score float64
}

// Index is the minimal interface implemented by all search indices.
type Index interface {
	TopK(query string, k int) []Result
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	titleWeight float64
	stopwords   map[string]struct{}
	maxEntries  int
}

func defaultConfig() config {
	return config{
		titleWeight: 0.6,
		stopwords:   nil,
		maxEntries:  0,
	}
}

// WithTitleWeight sets how much the title contributes to the score.
// Values outside [0, 1] are ignored.
func WithTitleWeight(w float64) Option {
	return func(c *config) {
		if w >= 0 && w <= 1 {
			c.titleWeight = w
		}
	}
}

func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

func WithMaxEntries(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// ----------------------------------------------------------------------------
// Implementation

type entry struct {
	id     string
	title  map[string]struct{}
	body   map[string]struct{}
	tRunes int
}

type index struct {
	cfg     config
	entries []entry
}

// NewIndex builds an Index over entries. Entries without any token are skipped.
func NewIndex(entries []Entry, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	out := make([]entry, 0, len(entries))
	for _, e := range entries {
		title := tokenize(e.Title, cfg.stopwords)
		body := tokenize(FlattenMarkdown(e.Body), cfg.stopwords)
		if len(title) == 0 && len(body) == 0 {
			continue
		}
		out = append(out, entry{
			id:     e.ID,
			title:  title,
			body:   body,
			tRunes: len([]rune(strings.TrimSpace(e.Title))),
		})
		if cfg.maxEntries > 0 && len(out) >= cfg.maxEntries {
			break
		}
	}
	return &index{cfg: cfg, entries: out}
}

// FromDocuments maps library documents to entries. The body combines the
// summary, study guide and the user's notes.
func FromDocuments(docs []domain.Document) []Entry {
	out := make([]Entry, 0, len(docs))
	for _, d := range docs {
		parts := make([]string, 0, 3)
		for _, s := range []string{d.AppData.Summary, d.AppData.StudyGuide, d.AppData.UserNotes} {
			if strings.TrimSpace(s) != "" {
				parts = append(parts, s)
			}
		}
		out = append(out, Entry{ID: d.ID, Title: d.Name, Body: strings.Join(parts, "\n\n")})
	}
	return out
}

// TopK returns up to k best-matching entries. k <= 0 means all matches.
func (i *index) TopK(q string, k int) []Result {
	if len(i.entries) == 0 || strings.TrimSpace(q) == "" {
		return nil
	}
	qTokens := tokenize(q, i.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}

	type scored struct {
		id     string
		score  float64
		tRunes int
	}

	buf := make([]scored, 0, len(i.entries))
	for _, e := range i.entries {
		score := i.cfg.titleWeight*jaccard(qTokens, e.title) +
			(1-i.cfg.titleWeight)*jaccard(qTokens, e.body)
		if score <= 0 {
			continue
		}
		buf = append(buf, scored{id: e.id, score: score, tRunes: e.tRunes})
	}
	if len(buf) == 0 {
		return nil
	}

	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].score != buf[b].score {
			return buf[a].score > buf[b].score
		}
		if buf[a].tRunes != buf[b].tRunes {
			return buf[a].tRunes < buf[b].tRunes
		}
		return buf[a].id < buf[b].id
	})

	if k <= 0 || k > len(buf) {
		k = len(buf)
	}
	out := make([]Result, k)
	for n := 0; n < k; n++ {
		out[n] = Result{ID: buf[n].id, Score: buf[n].score}
	}
	return out
}

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*|\p{N}+`)

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	s = strings.ToLower(s)
	words := wordRE.FindAllString(s, -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if stop != nil {
			if _, skip := stop[w]; skip {
				continue
			}
		}
		out[w] = struct{}{}
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	over := overlap(a, b)
	if over == 0 {
		return 0
	}
	union := len(a) + len(b) - over
	if union <= 0 {
		return 0
	}
	return float64(over) / float64(union)
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := 0
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
