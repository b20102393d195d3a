package gdelt

import (
	"iter"
	"strings"
)

// Candidate is a record that passed the relevance filter, normalized for
// downstream scoring. ID is assigned when a scoring batch is assembled;
// FullText is filled in if page ingestion succeeds.
type Candidate struct {
	ID          int
	Title       string
	Description string
	URL         string
	SeenDate    string // canonical YYYYMMDDHHMMSS
	FullText    string
}

// Filter selects records matching a target language and at least one
// keyword.
type Filter struct {
	language string
	keywords []string
}

// NewFilter creates a relevance filter. Keywords match case-insensitively
// as substrings of the title or of the concatenated quote texts.
func NewFilter(language string, keywords []string) *Filter {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			lowered = append(lowered, k)
		}
	}
	return &Filter{language: language, keywords: lowered}
}

// Match reports whether a record is relevant.
func (f *Filter) Match(rec Record) bool {
	if rec.Lang != f.language {
		return false
	}
	title := strings.ToLower(rec.Title)
	quotes := strings.ToLower(joinQuotes(rec.Quotes))
	for _, kw := range f.keywords {
		if strings.Contains(title, kw) || strings.Contains(quotes, kw) {
			return true
		}
	}
	return false
}

// Apply yields a candidate for every matching record, preserving input
// order.
func (f *Filter) Apply(records iter.Seq[Record]) iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		for rec := range records {
			if !f.Match(rec) {
				continue
			}
			if !yield(NewCandidate(rec)) {
				return
			}
		}
	}
}

// NewCandidate normalizes a record into a candidate.
func NewCandidate(rec Record) Candidate {
	return Candidate{
		Title:       rec.Title,
		Description: joinQuotes(rec.Quotes),
		URL:         rec.URL,
		SeenDate:    CanonicalTime(rec.Date),
	}
}

func joinQuotes(quotes []Quote) string {
	parts := make([]string, 0, len(quotes))
	for _, q := range quotes {
		parts = append(parts, q.Quote)
	}
	return strings.Join(parts, " ")
}

var timeStripper = strings.NewReplacer("-", "", ":", "", "T", "", "Z", "", " ", "")

// CanonicalTime reduces an RFC 3339-ish event timestamp to the
// fixed-width YYYYMMDDHHMMSS form used throughout the pipeline.
func CanonicalTime(date string) string {
	s := timeStripper.Replace(date)
	if len(s) > 14 {
		s = s[:14]
	}
	return s
}
