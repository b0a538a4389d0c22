package analytics

import (
	"testing"

	"github.com/snarg/rtc-engine/internal/store"
)

func TestAnalyzeReconnectionsClassification(t *testing.T) {
	cases := []struct {
		name  string
		gaps  []int64 // seconds between leave and next join
		want  ReconnectionPattern
	}{
		{"no reconnections", nil, PatternNoReconnections},
		{"single slow reconnect", []int64{300}, PatternStable},
		{"one rapid", []int64{60}, PatternModerate},
		{"three rapid", []int64{10, 20, 30}, PatternUnstable},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			sessions := buildGappedSessions(c.gaps)
			got := AnalyzeReconnections(sessions)
			if got.Pattern != c.want {
				t.Fatalf("want pattern %s, got %s (analysis=%+v)", c.want, got.Pattern, got)
			}
		})
	}
}

func TestAnalyzeReconnectionsBurstCount(t *testing.T) {
	sessions := buildGappedSessions([]int64{10, 200})
	got := AnalyzeReconnections(sessions)
	if got.BurstSessions != 1 {
		t.Fatalf("want 1 burst session (10s gap), got %d", got.BurstSessions)
	}
	if got.RapidReconnections != 1 {
		t.Fatalf("want 1 rapid reconnect (10s gap only, 200s exceeds threshold), got %d", got.RapidReconnections)
	}
}

func buildGappedSessions(gapsSeconds []int64) []store.SessionRow {
	var sessions []store.SessionRow
	ts := int64(0)
	for i, gap := range gapsSeconds {
		leave := ts + 60
		sessions = append(sessions, store.SessionRow{UID: 1, JoinTime: ts, LeaveTime: &leave})
		ts = leave + gap
		if i == len(gapsSeconds)-1 {
			nextLeave := ts + 60
			sessions = append(sessions, store.SessionRow{UID: 1, JoinTime: ts, LeaveTime: &nextLeave})
		}
	}
	if len(gapsSeconds) == 0 {
		leave := int64(60)
		sessions = append(sessions, store.SessionRow{UID: 1, JoinTime: 0, LeaveTime: &leave})
	}
	return sessions
}
