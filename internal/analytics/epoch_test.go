package analytics

import (
	"testing"

	"github.com/snarg/rtc-engine/internal/store"
)

func TestBuildEpochSummaryBasics(t *testing.T) {
	leave1 := int64(3600)
	leave2 := int64(7200)
	sessions := []store.SessionRow{
		{UID: 1, JoinTime: 0, LeaveTime: &leave1, IsHost: true, DurationSeconds: &leave1},
		{UID: 2, JoinTime: 1800, LeaveTime: &leave2, IsHost: false, DurationSeconds: int64p(5400)},
	}
	summary := BuildEpochSummary(sessions, nil, nil, DefaultQualityWeights)

	if summary.UniqueHosts != 1 || summary.UniqueAudiences != 1 {
		t.Fatalf("want 1 host 1 audience, got hosts=%d audiences=%d", summary.UniqueHosts, summary.UniqueAudiences)
	}
	if summary.WallClockMinutes <= 0 {
		t.Fatalf("want positive wall-clock minutes, got %.2f", summary.WallClockMinutes)
	}
	if summary.Utilization <= 0 {
		t.Fatalf("want positive utilization, got %.2f", summary.Utilization)
	}
}

func int64p(v int64) *int64 { return &v }
