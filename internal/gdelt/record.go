package gdelt

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"iter"
	"log"
)

// Quote is one quotation extracted from an article.
type Quote struct {
	Pre   string `json:"pre"`
	Quote string `json:"quote"`
	Post  string `json:"post"`
}

// Record is one source event, parsed from a single NDJSON line of a
// partition payload. Immutable once parsed.
type Record struct {
	Date   string  `json:"date"`
	URL    string  `json:"url"`
	Title  string  `json:"title"`
	Lang   string  `json:"lang"`
	Quotes []Quote `json:"quotes"`
}

// maxLineBytes bounds a single NDJSON line; feed lines stay well under
// this but the default scanner buffer does not.
const maxLineBytes = 4 << 20

// Records yields parsed records from a gzip-compressed NDJSON payload in
// line order. Malformed lines are skipped, not fatal; a corrupt gzip
// stream terminates the sequence early.
func Records(payload []byte) iter.Seq[Record] {
	return func(yield func(Record) bool) {
		gz, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			log.Printf("Unreadable partition payload: %v", err)
			return
		}
		defer gz.Close()

		scanner := bufio.NewScanner(gz)
		scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var rec Record
			if err := json.Unmarshal(line, &rec); err != nil {
				continue
			}
			if !yield(rec) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			log.Printf("Partition stream truncated: %v", err)
		}
	}
}
