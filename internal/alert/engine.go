package alert

import (
	"log"
	"time"

	"github.com/signalwatch/signalwatch/internal/analyze"
	"github.com/signalwatch/signalwatch/internal/database"
	"github.com/signalwatch/signalwatch/internal/notify"
)

// DigestSender delivers one consolidated digest. *notify.Sender is the
// production implementation.
type DigestSender interface {
	SendDigest(recipient string, threshold int, groups []notify.Group, asOf time.Time) error
}

// Result holds the results of one notification cycle.
type Result struct {
	Subscribers int
	Sent        int
	Skipped     int // nothing new above threshold
	Failed      int
}

// Engine scans stored analyses per subscriber, consolidates impacts
// above the subscriber's threshold, and advances the delivery watermark
// only after a successful send. Each subscriber is evaluated
// independently; a failed send leaves the watermark alone so the same
// impacts are reconsidered next cycle.
type Engine struct {
	db     *database.DB
	sender DigestSender
	now    func() time.Time
}

// NewEngine creates an alert engine.
func NewEngine(db *database.DB, sender DigestSender) *Engine {
	return &Engine{db: db, sender: sender, now: time.Now}
}

// entry is one extracted impact with its source document attached for
// grouping.
type entry struct {
	docTime int64
	summary string
	impact  analyze.Impact
}

type dedupKey struct {
	ticker     string
	likelihood int
}

type groupKey struct {
	docTime int64
	summary string
}

// Run executes one notification cycle over all subscribers.
func (e *Engine) Run() *Result {
	r := &Result{}

	subs, err := e.db.GetSubscribers()
	if err != nil {
		// Unreadable subscriber store behaves like an empty one.
		log.Printf("Reading subscribers failed, treating as empty: %v", err)
		return r
	}
	r.Subscribers = len(subs)

	for _, sub := range subs {
		switch e.process(sub) {
		case outcomeSent:
			r.Sent++
		case outcomeSkipped:
			r.Skipped++
		case outcomeFailed:
			r.Failed++
		}
	}

	log.Printf("Notification cycle complete: %d subscribers, %d sent, %d skipped, %d failed",
		r.Subscribers, r.Sent, r.Skipped, r.Failed)
	return r
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSent
	outcomeFailed
)

func (e *Engine) process(sub database.Subscriber) outcome {
	docs, err := e.db.GetAnalysesAfter(sub.LastSent)
	if err != nil {
		log.Printf("Reading analyses for %s failed: %v", sub.Email, err)
		return outcomeFailed
	}

	entries := e.extract(docs, sub.Threshold)
	deduped := dedupe(entries)
	if len(deduped) == 0 {
		return outcomeSkipped
	}

	groups := group(deduped)
	asOf := e.now()

	if err := e.sender.SendDigest(sub.Email, sub.Threshold, groups, asOf); err != nil {
		log.Printf("Digest delivery to %s failed, watermark unchanged: %v", sub.Email, err)
		return outcomeFailed
	}

	if err := e.db.AdvanceLastSent(sub.Email, asOf.Unix()); err != nil {
		log.Printf("Advancing watermark for %s failed: %v", sub.Email, err)
	}
	return outcomeSent
}

// extract pulls impacts meeting the threshold from each document, in
// document-then-impact order. Documents without a parseable payload are
// passed over.
func (e *Engine) extract(docs []database.Analysis, threshold int) []entry {
	var entries []entry
	for _, doc := range docs {
		payload, err := analyze.ParseDocument(doc.Content)
		if err != nil {
			continue
		}
		for _, imp := range payload.PotentialImpacts {
			if imp.Likelihood >= threshold {
				entries = append(entries, entry{
					docTime: doc.CreatedAt,
					summary: payload.Summary,
					impact:  imp,
				})
			}
		}
	}
	return entries
}

// dedupe collapses entries sharing (ticker, likelihood), keeping the
// first occurrence.
func dedupe(entries []entry) []entry {
	seen := make(map[dedupKey]struct{}, len(entries))
	var out []entry
	for _, en := range entries {
		key := dedupKey{ticker: en.impact.Ticker, likelihood: en.impact.Likelihood}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, en)
	}
	return out
}

// group buckets entries by source document for presentation, preserving
// first-seen order of both groups and impacts.
func group(entries []entry) []notify.Group {
	index := make(map[groupKey]int)
	var groups []notify.Group
	for _, en := range entries {
		key := groupKey{docTime: en.docTime, summary: en.summary}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, notify.Group{DocumentTime: en.docTime, Summary: en.summary})
		}
		groups[i].Impacts = append(groups[i].Impacts, en.impact)
	}
	return groups
}
