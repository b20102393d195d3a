package analyze

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/signalwatch/signalwatch/internal/database"
	"github.com/signalwatch/signalwatch/internal/gdelt"
	"github.com/signalwatch/signalwatch/internal/llm"
)

const scoringQuestion = "Historically, how has news like this impacted the stock market? " +
	"Which stocks will this impact the most? Give a score 1(min) - 10(max) on how likely there will be impact."

const triagePromptFmt = `Here is a list of articles:
%s

Which ones are most relevant in answering this prompt: '%s'?
If none are relevant, say 'abort' or 'no relevant news'.
If you want full text for some, say 'yes' and provide the article IDs in order of relevance like 1, 2, 3.`

const scoringPromptFmt = `%s

Respond with a JSON object: {"potential_impacts": [{"ticker", "company", "likelihood" (1-10), "reason"}], "summary"}.

%s:
`

// Outcome classifies how a scoring cycle ended.
type Outcome string

const (
	OutcomeScored       Outcome = "scored"       // an analysis document was stored
	OutcomeAborted      Outcome = "aborted"      // the model saw no relevant news
	OutcomeFailed       Outcome = "failed"       // protocol failure, error artifact stored
	OutcomeEmpty        Outcome = "empty"        // no candidates to score
	OutcomeUnconfigured Outcome = "unconfigured" // no reasoning provider available
)

// Result holds the results of one scoring cycle.
type Result struct {
	Outcome      Outcome
	AnalysisID   int64
	Candidates   int
	FullTextUsed int
}

// Scorer runs the two-phase scoring protocol: a triage call that decides
// relevance and whether full text is wanted, then a scoring call whose
// raw response is persisted verbatim as an analysis document.
type Scorer struct {
	db       *database.DB
	provider llm.Provider
	budget   int
	now      func() time.Time
}

// NewScorer creates a scorer. budgetBytes caps the phase-2 prompt size
// on the full-text path.
func NewScorer(db *database.DB, provider llm.Provider, budgetBytes int) *Scorer {
	return &Scorer{
		db:       db,
		provider: provider,
		budget:   budgetBytes,
		now:      time.Now,
	}
}

var idPattern = regexp.MustCompile(`\d+`)

// Score runs both phases for one batch of candidates. Protocol failures
// are recorded as error artifacts and end the cycle without a document;
// they are never fatal to the caller.
func (s *Scorer) Score(ctx context.Context, candidates []gdelt.Candidate) *Result {
	if len(candidates) == 0 {
		return &Result{Outcome: OutcomeEmpty}
	}
	if s.provider == nil || !s.provider.IsConfigured() {
		log.Println("No reasoning provider configured, skipping scoring")
		return &Result{Outcome: OutcomeUnconfigured, Candidates: len(candidates)}
	}

	ordered := orderCandidates(candidates)

	triageResp, err := s.provider.Generate(ctx, triagePrompt(ordered))
	if err != nil {
		s.recordFailure("triage", err)
		return &Result{Outcome: OutcomeFailed, Candidates: len(ordered)}
	}

	lower := strings.ToLower(triageResp)
	if strings.Contains(lower, "abort") || strings.Contains(lower, "no relevant") {
		log.Println("No relevant articles found by model, skipping scoring call")
		return &Result{Outcome: OutcomeAborted, Candidates: len(ordered)}
	}

	var prompt string
	var fullTextUsed int
	if strings.Contains(lower, "yes") {
		selection := parseSelection(triageResp, len(ordered))
		if len(selection) > 0 {
			prompt, fullTextUsed = fullTextPrompt(ordered, selection, s.budget)
		}
	}
	if prompt == "" {
		prompt = descriptionPrompt(ordered)
	}

	scoreResp, err := s.provider.Generate(ctx, prompt)
	if err != nil {
		s.recordFailure("scoring", err)
		return &Result{Outcome: OutcomeFailed, Candidates: len(ordered)}
	}

	createdAt := s.now().Unix()
	id, err := s.db.InsertAnalysis(createdAt, scoreResp)
	if err != nil {
		s.recordFailure("persist", err)
		return &Result{Outcome: OutcomeFailed, Candidates: len(ordered)}
	}

	log.Printf("Stored analysis %d (%d candidates, %d full texts)", id, len(ordered), fullTextUsed)
	return &Result{
		Outcome:      OutcomeScored,
		AnalysisID:   id,
		Candidates:   len(ordered),
		FullTextUsed: fullTextUsed,
	}
}

func (s *Scorer) recordFailure(phase string, err error) {
	log.Printf("Scoring cycle abandoned at %s: %v", phase, err)
	if dbErr := s.db.InsertReasoningError(phase, err.Error()); dbErr != nil {
		log.Printf("Recording error artifact failed: %v", dbErr)
	}
}

// orderCandidates sorts most-recent-first by canonical timestamp and
// assigns ordinal ids for prompt referencing.
func orderCandidates(candidates []gdelt.Candidate) []gdelt.Candidate {
	ordered := make([]gdelt.Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SeenDate > ordered[j].SeenDate
	})
	for i := range ordered {
		ordered[i].ID = i + 1
	}
	return ordered
}

func triagePrompt(candidates []gdelt.Candidate) string {
	var list strings.Builder
	for _, c := range candidates {
		fmt.Fprintf(&list, "%d. Title: %s\n   Description: %s\n   URL: %s\n", c.ID, c.Title, c.Description, c.URL)
	}
	return fmt.Sprintf(triagePromptFmt, strings.TrimRight(list.String(), "\n"), scoringQuestion)
}

// parseSelection extracts article ids from a triage response in
// appearance order, dropping anything outside 1..n.
func parseSelection(response string, n int) []int {
	var ids []int
	for _, tok := range idPattern.FindAllString(response, -1) {
		id, err := strconv.Atoi(tok)
		if err != nil || id < 1 || id > n {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// fullTextPrompt appends whole per-article blocks in selection order,
// stopping as soon as the next block would push the prompt past the byte
// budget. A block is never truncated; the remainder of the selection is
// discarded. The budget gates article blocks only: the fixed question
// and format header is always emitted, even when it alone is larger
// than the budget.
func fullTextPrompt(candidates []gdelt.Candidate, selection []int, budget int) (string, int) {
	var b strings.Builder
	b.WriteString(fmt.Sprintf(scoringPromptFmt, scoringQuestion, "Relevant Articles"))

	included := 0
	for _, id := range selection {
		c := candidates[id-1]
		text := c.FullText
		if text == "" {
			text = c.Description
		}
		block := fmt.Sprintf("Article %d:\nTitle: %s\nFull Text: %s\n\n", c.ID, c.Title, text)
		if b.Len()+len(block) > budget {
			break
		}
		b.WriteString(block)
		included++
	}
	return b.String(), included
}

// descriptionPrompt lists every candidate's short description. No
// budget check is needed: descriptions are bounded.
func descriptionPrompt(candidates []gdelt.Candidate) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf(scoringPromptFmt, scoringQuestion, "Articles"))
	for _, c := range candidates {
		fmt.Fprintf(&b, "Title: %s\nDescription: %s\n\n", c.Title, c.Description)
	}
	return b.String()
}
