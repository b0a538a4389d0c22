package analytics

import (
	"fmt"

	"github.com/snarg/rtc-engine/internal/store"
)

// InsightKind tags an insight string by severity, keeping presentation
// (color, emoji) out of the domain layer (SPEC_FULL.md §4.2, a deliberate
// deviation from the emoji-prefixed strings the reporting tool used to
// emit — the core returns data, not UI).
type InsightKind string

const (
	InsightHigh    InsightKind = "high"
	InsightMedium  InsightKind = "medium"
	InsightLow     InsightKind = "low"
	InsightGood    InsightKind = "good"
	InsightNeutral InsightKind = "neutral"
)

// Insight is one deterministic, tagged observation derived from the same
// reason counters used for quality scoring (spec.md §4.2.4).
type Insight struct {
	Kind InsightKind
	Text string
}

// BuildInsights implements spec.md §4.2.4's "insights" list: fixed
// thresholds over the same counters ChannelQualityScore/UserQualityScore
// use, plus a final quality-band insight.
func BuildInsights(sessions []store.SessionRow, score float64) []Insight {
	counts := CountReasons(sessions)
	var out []Insight

	if counts.Abnormal > 0 {
		out = append(out, Insight{InsightHigh, fmt.Sprintf("%d abnormal user events (reason=999) — frequent join/leave", counts.Abnormal)})
	}
	if counts.Other > 0 {
		out = append(out, Insight{InsightHigh, fmt.Sprintf("%d unknown issues (reason=0) — investigate further", counts.Other)})
	}
	if counts.Timeout > 0 {
		out = append(out, Insight{InsightMedium, fmt.Sprintf("%d connection timeouts (reason=2) — network instability", counts.Timeout)})
	}
	if counts.NetworkFailure > 0 {
		out = append(out, Insight{InsightMedium, fmt.Sprintf("%d network connection problems (reason=10)", counts.NetworkFailure)})
	}
	if counts.IPSwitching > 0 {
		out = append(out, Insight{InsightMedium, fmt.Sprintf("%d IP-switching events (reason=9) — VPN or multiple IPs", counts.IPSwitching)})
	}
	if counts.ServerLoad > 0 {
		out = append(out, Insight{InsightMedium, fmt.Sprintf("%d server-load adjustments (reason=4)", counts.ServerLoad)})
	}
	if counts.Permissions > 0 {
		out = append(out, Insight{InsightLow, fmt.Sprintf("%d permission issues (reason=3) — admin actions", counts.Permissions)})
	}
	if counts.DeviceSwitch > 0 {
		out = append(out, Insight{InsightLow, fmt.Sprintf("%d device switches (reason=5)", counts.DeviceSwitch)})
	}
	if counts.Normal > 0 {
		out = append(out, Insight{InsightGood, fmt.Sprintf("%d normal exits (reason=1)", counts.Normal)})
	}
	if failed := failedCallCount(sessions); failed > 0 {
		out = append(out, Insight{InsightNeutral, fmt.Sprintf("%d failed calls (duration < %ds)", failed, failedCallSeconds)})
	}
	if uniqueUserCount(sessions) == 1 {
		out = append(out, Insight{InsightNeutral, "single-user channel detected"})
	}
	if avg := avgSessionMinutes(sessions); avg < 1 && len(sessions) > 0 {
		out = append(out, Insight{InsightNeutral, fmt.Sprintf("short average session length: %.1f minutes", avg)})
	}

	switch {
	case score < 50:
		out = append(out, Insight{InsightHigh, "poor quality indicators detected"})
	case score < 80:
		out = append(out, Insight{InsightMedium, "moderate quality indicators"})
	default:
		out = append(out, Insight{InsightGood, "good quality indicators"})
	}
	return out
}

func uniqueUserCount(sessions []store.SessionRow) int {
	seen := make(map[int]struct{})
	for _, s := range sessions {
		seen[s.UID] = struct{}{}
	}
	return len(seen)
}
