package analytics

import (
	"testing"

	"github.com/snarg/rtc-engine/internal/store"
)

func i64p(v int64) *int64 { return &v }

// Scenario 1: max_concurrency = 1, peak_ts = 101.
func TestMaxConcurrencyCleanCall(t *testing.T) {
	leave := int64(161)
	sessions := []store.SessionRow{
		{JoinTime: 101, LeaveTime: &leave},
	}
	max, peakTs, _ := MaxConcurrency(sessions)
	if max != 1 || peakTs != 101 {
		t.Fatalf("want max=1 peak=101, got max=%d peak=%d", max, peakTs)
	}
}

func TestMaxConcurrencyLeavesBeforeJoinsAtSameTs(t *testing.T) {
	l1 := int64(100)
	sessions := []store.SessionRow{
		{JoinTime: 0, LeaveTime: &l1},
		{JoinTime: 100, LeaveTime: i64p(200)},
	}
	max, _, curve := MaxConcurrency(sessions)
	if max != 1 {
		t.Fatalf("want max concurrency 1 (leave-before-join tie-break), got %d", max)
	}
	if got := curve[len(curve)-2].Count; got != 1 {
		t.Fatalf("want final count 1 after both ts=100 events settle, got %d", got)
	}
}

// Universal property: concurrency boundedness.
func TestConcurrencyMatchesBruteForce(t *testing.T) {
	sessions := []store.SessionRow{
		{JoinTime: 0, LeaveTime: i64p(50)},
		{JoinTime: 10, LeaveTime: i64p(30)},
		{JoinTime: 20, LeaveTime: i64p(90)},
	}
	_, _, curve := MaxConcurrency(sessions)
	bruteForceAt := func(ts int64) int {
		n := 0
		for _, s := range sessions {
			if s.JoinTime <= ts && (s.LeaveTime == nil || ts < *s.LeaveTime) {
				n++
			}
		}
		return n
	}
	for _, p := range curve {
		if p.Count != bruteForceAt(p.Ts) {
			t.Fatalf("at ts=%d curve says %d, brute force says %d", p.Ts, p.Count, bruteForceAt(p.Ts))
		}
	}
}
