package pipeline

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/signalwatch/signalwatch/internal/alert"
	"github.com/signalwatch/signalwatch/internal/analyze"
	"github.com/signalwatch/signalwatch/internal/config"
	"github.com/signalwatch/signalwatch/internal/database"
	"github.com/signalwatch/signalwatch/internal/notify"
)

// scriptedProvider returns canned responses in order.
type scriptedProvider struct {
	responses []string
	calls     int
}

func (p *scriptedProvider) Generate(_ context.Context, _ string) (string, error) {
	resp := p.responses[p.calls]
	p.calls++
	return resp, nil
}

func (p *scriptedProvider) IsConfigured() bool { return true }

// recordingMailer captures outbound mail.
type recordingMailer struct {
	sent []string // bodies
	to   []string
}

func (m *recordingMailer) Send(to, subject, body string) error {
	m.to = append(m.to, to)
	m.sent = append(m.sent, body)
	return nil
}

func gzLines(t *testing.T, lines ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	for _, l := range lines {
		gz.Write([]byte(l + "\n"))
	}
	gz.Close()
	return buf.Bytes()
}

func TestEndToEndScenario(t *testing.T) {
	// Three partitions: two English records with a matching title, one
	// non-English duplicate of the same text.
	engLine1 := `{"date":"2026-03-01T10:00:30Z","url":"https://news.example/one","title":"Tariff hike shakes markets","lang":"eng","quotes":[{"quote":"tariffs rise"}]}`
	engLine2 := `{"date":"2026-03-01T10:01:30Z","url":"https://news.example/two","title":"Tariff hike shakes markets","lang":"eng","quotes":[{"quote":"tariffs rise"}]}`
	fraLine := `{"date":"2026-03-01T10:02:30Z","url":"https://news.example/fr","title":"Tariff hike shakes markets","lang":"fra","quotes":[{"quote":"tariffs rise"}]}`

	partitions := map[string][]byte{
		"/20260301100000.gqg.json.gz": gzLines(t, engLine1),
		"/20260301100100.gqg.json.gz": gzLines(t, engLine2),
		"/20260301100200.gqg.json.gz": gzLines(t, fraLine),
	}
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, ok := partitions[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(payload)
	}))
	defer feed.Close()

	dataDir := t.TempDir()
	cfg := &config.Config{
		Feed: config.Feed{
			BaseURL:         feed.URL + "/",
			Language:        "eng",
			Keywords:        []string{"tariff"},
			LookbackMinutes: 2,
			TimeoutSeconds:  2,
			Retries:         0,
		},
		Reasoning: config.Reasoning{PromptBudgetBytes: 130000},
		Output:    config.Output{DataDir: dataDir},
	}

	db, err := database.Open(filepath.Join(dataDir, "signalwatch.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	provider := &scriptedProvider{responses: []string{
		"yes, 1",
		`{"potential_impacts":[{"ticker":"AAPL","company":"Apple","likelihood":9,"reason":"tariff exposure"}],"summary":"tariffs"}`,
	}}

	p := New(cfg, db)
	p.provider = provider
	p.now = func() time.Time { return time.Date(2026, 3, 1, 10, 2, 10, 0, time.UTC) }

	result := p.Run(context.Background())

	if result.Candidates != 2 {
		t.Fatalf("expected exactly 2 candidates (non-English excluded), got %d", result.Candidates)
	}
	if result.Outcome != analyze.OutcomeScored {
		t.Fatalf("expected scored outcome, got %s (steps: %+v)", result.Outcome, result.Steps)
	}

	analyses, _ := db.GetAnalysesAfter(0)
	if len(analyses) != 1 {
		t.Fatalf("expected exactly one stored analysis, got %d", len(analyses))
	}

	// Notification cycle: threshold 8, never sent before.
	if err := db.UpsertSubscriber("sub@example.com", 8, 24); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	mailer := &recordingMailer{}
	engine := alert.NewEngine(db, notify.NewSender(mailer))
	alertResult := engine.Run()

	if alertResult.Sent != 1 || len(mailer.sent) != 1 {
		t.Fatalf("expected exactly one digest, got %+v", alertResult)
	}
	if mailer.to[0] != "sub@example.com" {
		t.Errorf("digest sent to wrong recipient %q", mailer.to[0])
	}
	if !strings.Contains(mailer.sent[0], "AAPL") {
		t.Errorf("digest must contain ticker AAPL:\n%s", mailer.sent[0])
	}

	sub, _ := db.GetSubscriber("sub@example.com")
	if sub.LastSent == 0 {
		t.Error("expected last_sent updated after successful send")
	}
}

func TestRunSkipsFailedStamp(t *testing.T) {
	engLine := `{"date":"2026-03-01T10:01:30Z","url":"https://news.example/ok","title":"Tariff watch","lang":"eng","quotes":[]}`
	good := gzLines(t, engLine)

	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/20260301100100.gqg.json.gz":
			w.Write(good)
		case "/20260301100000.gqg.json.gz":
			w.WriteHeader(http.StatusBadGateway) // hard failure for this stamp only
		default:
			http.NotFound(w, r)
		}
	}))
	defer feed.Close()

	dataDir := t.TempDir()
	cfg := &config.Config{
		Feed: config.Feed{
			BaseURL:         feed.URL + "/",
			Language:        "eng",
			Keywords:        []string{"tariff"},
			LookbackMinutes: 2,
			TimeoutSeconds:  2,
			Retries:         0,
		},
		Reasoning: config.Reasoning{PromptBudgetBytes: 130000},
		Output:    config.Output{DataDir: dataDir},
	}

	db, err := database.Open(filepath.Join(dataDir, "signalwatch.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	p := New(cfg, db)
	p.provider = &scriptedProvider{responses: []string{"abort", ""}}
	p.now = func() time.Time { return time.Date(2026, 3, 1, 10, 2, 10, 0, time.UTC) }

	result := p.Run(context.Background())

	// The bad stamp is skipped; the good one still yields its candidate.
	if result.Candidates != 1 {
		t.Errorf("expected 1 candidate despite failed stamp, got %d", result.Candidates)
	}
	for _, step := range result.Steps {
		if step.Err != nil {
			t.Errorf("step %s should not be fatal: %v", step.Name, step.Err)
		}
	}
}

func TestCollectOrderIsNonDecreasing(t *testing.T) {
	lineFor := func(minute int) string {
		return fmt.Sprintf(`{"date":"2026-03-01T10:%02d:00Z","url":"https://news.example/m%d","title":"tariff news","lang":"eng","quotes":[]}`,
			minute, minute)
	}
	partitions := map[string][]byte{
		"/20260301100000.gqg.json.gz": gzLines(t, lineFor(0)),
		"/20260301100100.gqg.json.gz": gzLines(t, lineFor(1)),
		"/20260301100200.gqg.json.gz": gzLines(t, lineFor(2)),
	}
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := partitions[r.URL.Path]; ok {
			w.Write(p)
			return
		}
		http.NotFound(w, r)
	}))
	defer feed.Close()

	cfg := &config.Config{
		Feed: config.Feed{
			BaseURL: feed.URL + "/", Language: "eng", Keywords: []string{"tariff"},
			LookbackMinutes: 2, TimeoutSeconds: 2,
		},
		Output: config.Output{DataDir: t.TempDir()},
	}
	db, err := database.Open(filepath.Join(cfg.Output.DataDir, "t.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	p := New(cfg, db)
	p.now = func() time.Time { return time.Date(2026, 3, 1, 10, 2, 30, 0, time.UTC) }

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 1, 10, 2, 0, 0, time.UTC)
	candidates, step := p.runCollect(context.Background(), start, end)
	if step.Err != nil {
		t.Fatalf("collect: %v", step.Err)
	}

	var seen []string
	for _, c := range candidates {
		seen = append(seen, c.SeenDate)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Errorf("candidates out of partition order: %v", seen)
		}
	}
	if len(candidates) != 3 {
		t.Errorf("expected 3 candidates, got %d", len(candidates))
	}
}
