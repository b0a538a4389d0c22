package analytics

import (
	"sort"

	"github.com/snarg/rtc-engine/internal/store"
)

// ConcurrencyPoint is one step on the concurrency curve.
type ConcurrencyPoint struct {
	Ts    int64
	Count int
}

type concurrencyEvent struct {
	ts    int64
	delta int
}

// MaxConcurrency implements spec.md §4.2.2: synthesize +1/-1 events from
// session join/leave times, sort ascending by ts with leaves strictly
// before joins at equal timestamps (spec.md §9's off-by-one guard), and
// walk the running sum to find the peak and its earliest timestamp.
// Sessions missing leave_time are treated as still open and excluded from
// the curve's -1 events but still contribute a +1 at join_time.
func MaxConcurrency(sessions []store.SessionRow) (int, int64, []ConcurrencyPoint) {
	var events []concurrencyEvent
	for _, s := range sessions {
		events = append(events, concurrencyEvent{ts: s.JoinTime, delta: 1})
		if s.LeaveTime != nil {
			events = append(events, concurrencyEvent{ts: *s.LeaveTime, delta: -1})
		}
	}
	return walkConcurrency(events)
}

func walkConcurrency(events []concurrencyEvent) (int, int64, []ConcurrencyPoint) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].ts != events[j].ts {
			return events[i].ts < events[j].ts
		}
		return events[i].delta < events[j].delta // -1 before +1
	})

	var curve []ConcurrencyPoint
	running, max, peakTs := 0, 0, int64(0)
	maxSet := false
	for _, e := range events {
		running += e.delta
		curve = append(curve, ConcurrencyPoint{Ts: e.ts, Count: running})
		if !maxSet || running > max {
			max = running
			peakTs = e.ts
			maxSet = true
		}
	}
	return max, peakTs, curve
}
