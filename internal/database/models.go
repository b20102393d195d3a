package database

// Analysis is one persisted scored document: the verbatim reasoning
// response, keyed by creation time. Rows are append-only and never
// edited or deleted.
type Analysis struct {
	ID        int64
	CreatedAt int64 // epoch seconds
	Content   string
}

// Subscriber is one alert recipient. LastSent is the delivery watermark
// in epoch seconds; 0 means the subscriber has never been sent anything.
type Subscriber struct {
	Email          string
	Threshold      int // 1-10
	FrequencyHours int
	LastSent       int64
}

// Article is one ingested candidate page.
type Article struct {
	ID          int64
	URL         string
	Title       string
	SeenDate    *string
	FullText    *string
	CollectedAt *string
}

// ReasoningError is a persisted error artifact from a failed scoring
// cycle.
type ReasoningError struct {
	ID        int64
	Phase     string
	Detail    string
	CreatedAt *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	Analyses        int
	LatestAnalysis  int64
	Articles        int
	Subscribers     int
	ReasoningErrors int
}
