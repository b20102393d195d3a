package gdelt

import (
	"iter"
	"time"
)

// StampFormat is the partition identifier layout: YYYYMMDDHHMMSS in UTC,
// seconds always zero.
const StampFormat = "20060102150405"

// Stamp identifies one minute-partition of the quotation feed. Stamps
// compare lexically in the same order as the minutes they name.
type Stamp string

// StampFor returns the stamp for the minute containing t.
func StampFor(t time.Time) Stamp {
	return Stamp(t.UTC().Truncate(time.Minute).Format(StampFormat))
}

// Time parses the stamp back into a UTC instant.
func (s Stamp) Time() (time.Time, error) {
	return time.Parse(StampFormat, string(s))
}

// MinuteStamps yields one stamp per minute boundary from floor(start) to
// floor(end) inclusive, in increasing order. An empty sequence results
// when end precedes start after truncation.
func MinuteStamps(start, end time.Time) iter.Seq[Stamp] {
	first := start.UTC().Truncate(time.Minute)
	last := end.UTC().Truncate(time.Minute)
	return func(yield func(Stamp) bool) {
		for cur := first; !cur.After(last); cur = cur.Add(time.Minute) {
			if !yield(StampFor(cur)) {
				return
			}
		}
	}
}
