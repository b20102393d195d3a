package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/signalwatch/signalwatch/internal/analyze"
	"github.com/signalwatch/signalwatch/internal/config"
	"github.com/signalwatch/signalwatch/internal/database"
	"github.com/signalwatch/signalwatch/internal/fetch"
	"github.com/signalwatch/signalwatch/internal/gdelt"
	"github.com/signalwatch/signalwatch/internal/llm"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of one ingestion cycle.
type Result struct {
	Steps      []StepResult
	Candidates int
	Outcome    analyze.Outcome
}

// Pipeline orchestrates one ingestion cycle: enumerate minute
// partitions, fetch through the cache, filter for relevance, ingest
// full texts, and run the scoring protocol.
type Pipeline struct {
	cfg      *config.Config
	db       *database.DB
	cache    *gdelt.Cache
	filter   *gdelt.Filter
	provider llm.Provider
	now      func() time.Time
}

// New creates a pipeline.
func New(cfg *config.Config, db *database.DB) *Pipeline {
	cacheDir := filepath.Join(cfg.GetDataDir(), "cache")
	return &Pipeline{
		cfg:      cfg,
		db:       db,
		cache:    gdelt.NewCache(cacheDir, cfg.Feed.BaseURL, cfg.FetchTimeout(), cfg.Feed.Retries),
		filter:   gdelt.NewFilter(cfg.Feed.Language, cfg.Feed.Keywords),
		provider: llm.NewClient(cfg.Reasoning.APIURL, cfg.Reasoning.Model, cfg.Reasoning.APIKeyEnv, cfg.ReasoningTimeout()),
		now:      time.Now,
	}
}

// Run executes one full cycle over the configured lookback window.
func (p *Pipeline) Run(ctx context.Context) *Result {
	end := p.now().UTC()
	start := end.Add(-time.Duration(p.cfg.Feed.LookbackMinutes) * time.Minute)

	r := &Result{}

	candidates, step := p.runCollect(ctx, start, end)
	r.Steps = append(r.Steps, step)
	r.Candidates = len(candidates)

	step = p.runIngest(candidates)
	r.Steps = append(r.Steps, step)

	step, outcome := p.runScore(ctx, candidates)
	r.Steps = append(r.Steps, step)
	r.Outcome = outcome

	return r
}

// runCollect walks the minute window in non-decreasing time order,
// fetching each partition through the cache and filtering its records.
// A failed stamp is skipped; the cycle continues with the next one.
func (p *Pipeline) runCollect(ctx context.Context, start, end time.Time) ([]gdelt.Candidate, StepResult) {
	log.Println("Step 1/3: Collecting feed partitions...")

	var candidates []gdelt.Candidate
	var partitions, gaps, failed int

	for stamp := range gdelt.MinuteStamps(start, end) {
		payload, found, err := p.cache.Get(ctx, stamp)
		if err != nil {
			var fe *gdelt.FetchError
			if errors.As(err, &fe) {
				log.Printf("Skipping partition %s: %v", stamp, err)
				failed++
				continue
			}
			return candidates, StepResult{Name: "Collect", Err: err}
		}
		if !found {
			gaps++
			continue
		}
		partitions++
		for c := range p.filter.Apply(gdelt.Records(payload)) {
			candidates = append(candidates, c)
		}
	}

	return candidates, StepResult{
		Name: "Collect",
		Summary: fmt.Sprintf("%d partitions (%d gaps, %d failed), %d relevant candidates",
			partitions, gaps, failed, len(candidates)),
	}
}

// runIngest fetches full article text for each candidate and records the
// article. Extraction failure leaves the candidate with its description
// only.
func (p *Pipeline) runIngest(candidates []gdelt.Candidate) StepResult {
	log.Println("Step 2/3: Ingesting article texts...")

	fetcher := fetch.NewContentFetcher(p.cfg.FetchTimeout())
	ingested := 0
	for i := range candidates {
		c := &candidates[i]

		text, err := fetcher.FetchText(c.URL)
		if err != nil {
			log.Printf("Ingesting %s failed: %v", c.URL, err)
		}
		if text != "" {
			c.FullText = text
			ingested++
		}

		var seenDate, fullText *string
		if c.SeenDate != "" {
			seenDate = &c.SeenDate
		}
		if text != "" {
			fullText = &text
		}
		if _, err := p.db.UpsertArticle(c.URL, c.Title, seenDate, fullText); err != nil {
			log.Printf("Recording article %s failed: %v", c.URL, err)
		}
	}

	return StepResult{
		Name:    "Ingest",
		Summary: fmt.Sprintf("%d of %d full texts extracted", ingested, len(candidates)),
	}
}

func (p *Pipeline) runScore(ctx context.Context, candidates []gdelt.Candidate) (StepResult, analyze.Outcome) {
	log.Println("Step 3/3: Scoring candidates...")

	scorer := analyze.NewScorer(p.db, p.provider, p.cfg.Reasoning.PromptBudgetBytes)
	result := scorer.Score(ctx, candidates)

	var summary string
	switch result.Outcome {
	case analyze.OutcomeScored:
		summary = fmt.Sprintf("Analysis %d stored (%d candidates, %d full texts)",
			result.AnalysisID, result.Candidates, result.FullTextUsed)
	case analyze.OutcomeAborted:
		summary = "Model reported no relevant news"
	case analyze.OutcomeEmpty:
		summary = "No candidates to score"
	case analyze.OutcomeUnconfigured:
		summary = "No reasoning provider configured, scoring skipped"
	case analyze.OutcomeFailed:
		summary = "Scoring abandoned, error artifact recorded"
	}
	return StepResult{Name: "Score", Summary: summary}, result.Outcome
}
