package analyze

import (
	"encoding/json"
	"fmt"

	"github.com/signalwatch/signalwatch/internal/llm"
)

// Impact is one scored prediction that an instrument may be affected by
// a news item. Likelihood runs 1 (minimal) to 10 (near certain).
type Impact struct {
	Ticker     string `json:"ticker"`
	Company    string `json:"company"`
	Likelihood int    `json:"likelihood"`
	Reason     string `json:"reason"`
}

// Payload is the structured object embedded in an analysis document.
type Payload struct {
	PotentialImpacts []Impact `json:"potential_impacts"`
	Summary          string   `json:"summary"`
}

// ParseDocument extracts the embedded payload from a stored analysis
// document, tolerating prose and markdown around the JSON object.
func ParseDocument(text string) (*Payload, error) {
	raw, ok := llm.ExtractJSON(text)
	if !ok {
		return nil, fmt.Errorf("no embedded JSON object in document")
	}
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("parsing embedded payload: %w", err)
	}
	return &p, nil
}
