package analytics

import (
	"testing"

	"github.com/snarg/rtc-engine/internal/store"
)

func reasonPtr(v int) *int { return &v }

func sessionWithReason(reason int) store.SessionRow {
	dur := int64(120)
	return store.SessionRow{Reason: reasonPtr(reason), DurationSeconds: &dur}
}

func TestQualityScoreAbnormalLeavesCapAtSixty(t *testing.T) {
	var sessions []store.SessionRow
	for i := 0; i < 10; i++ {
		sessions = append(sessions, sessionWithReason(999))
	}
	score := ChannelQualityScore(sessions, DefaultQualityWeights)
	// 10 * 15 = 150, capped at 60 -> score = 40.
	if score != 40 {
		t.Fatalf("want 40 (100 - capped 60), got %.1f", score)
	}
}

func TestQualityScoreNormalExitBonus(t *testing.T) {
	var sessions []store.SessionRow
	for i := 0; i < 9; i++ {
		sessions = append(sessions, sessionWithReason(1))
	}
	sessions = append(sessions, sessionWithReason(3))
	score := ChannelQualityScore(sessions, DefaultQualityWeights)
	// 9/10 = 0.9 > 0.7 normal-exit ratio: +5 bonus, minus 1*3 permission penalty, avg
	// session length 2 minutes (no short-session penalty). 100 - 3 + 5 = 100 clamped.
	if score != 100 {
		t.Fatalf("want 100 (clamped), got %.1f", score)
	}
}

func TestQualityScoreClampsToZero(t *testing.T) {
	var sessions []store.SessionRow
	for i := 0; i < 20; i++ {
		sessions = append(sessions, sessionWithReason(999))
		sessions = append(sessions, sessionWithReason(0))
	}
	score := ChannelQualityScore(sessions, DefaultQualityWeights)
	if score != 0 {
		t.Fatalf("want 0 (clamped), got %.1f", score)
	}
}

func TestUserQualityScoreUnstableReconnectPenalty(t *testing.T) {
	sessions := []store.SessionRow{sessionWithReason(1)}
	recon := ReconnectionAnalysis{Pattern: PatternUnstable, RapidReconnections: 3}
	score := UserQualityScore(sessions, DefaultQualityWeights, recon)
	// single normal exit: ratio 1/1 = 1.0 > 0.7, so +5 bonus (clamped to 100),
	// minus 25 unstable penalty -> 80.
	if score != 80 {
		t.Fatalf("want 80, got %.1f", score)
	}
}
