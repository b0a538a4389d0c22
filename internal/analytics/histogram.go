package analytics

import "github.com/snarg/rtc-engine/internal/store"

// SessionLengthHistogram buckets closed-session durations into the fixed
// bands the read API's channel quality view renders (spec.md §6.4).
type SessionLengthHistogram struct {
	Bucket0to5s    int
	Bucket5to30s   int
	Bucket30to60s  int
	Bucket1to5min  int
	Bucket5to15min int
	Bucket15minPlus int
}

// BuildSessionLengthHistogram buckets every session with a known duration.
func BuildSessionLengthHistogram(sessions []store.SessionRow) SessionLengthHistogram {
	var h SessionLengthHistogram
	for _, s := range sessions {
		if s.DurationSeconds == nil {
			continue
		}
		d := *s.DurationSeconds
		switch {
		case d < 5:
			h.Bucket0to5s++
		case d < 30:
			h.Bucket5to30s++
		case d < 60:
			h.Bucket30to60s++
		case d < 300:
			h.Bucket1to5min++
		case d < 900:
			h.Bucket5to15min++
		default:
			h.Bucket15minPlus++
		}
	}
	return h
}
