package analytics

import "github.com/snarg/rtc-engine/internal/store"

// failedCallSeconds is the session-duration threshold below which a
// session counts as a "failed call" for quality scoring (spec.md §4.2.4,
// glossary "Failed call").
const failedCallSeconds = 5

// QualityWeights is the named, exported penalty/bonus table spec.md §9
// asks for so quality-score regressions stay diff-able. Values are
// grounded on the original reason-code weighting (SPEC_FULL.md §4.2).
type QualityWeights struct {
	AbnormalLeavePerEvent float64
	AbnormalLeaveCap      float64
	UnknownPerEvent       float64
	UnknownCap            float64
	NetworkPerEvent       float64
	NetworkCap            float64
	ServerLoadPerEvent    float64
	ServerLoadCap         float64
	ControlPerEvent       float64
	ControlCap            float64
	FailedCallPerEvent    float64
	FailedCallCap         float64
	ShortSessionFlat      float64
	UnstableReconnectFlat float64
	ModerateReconnectFlat float64
	RapidReconnectFlat    float64
	BurstPerEvent         float64
	BurstCap              float64
	NormalExitBonus       float64
	NormalExitRatio       float64
}

// DefaultQualityWeights is the table used unless a caller substitutes one
// (spec.md §9's "expose it as configuration" open question).
var DefaultQualityWeights = QualityWeights{
	AbnormalLeavePerEvent: 15, AbnormalLeaveCap: 60,
	UnknownPerEvent: 10, UnknownCap: 40,
	NetworkPerEvent: 8, NetworkCap: 35,
	ServerLoadPerEvent: 6, ServerLoadCap: 25,
	ControlPerEvent: 3, ControlCap: 15,
	FailedCallPerEvent: 5, FailedCallCap: 30,
	ShortSessionFlat:      20,
	UnstableReconnectFlat: 25,
	ModerateReconnectFlat: 15,
	RapidReconnectFlat:    10,
	BurstPerEvent:         5, BurstCap: 20,
	NormalExitBonus: 5, NormalExitRatio: 0.7,
}

// ReasonCounts tallies leave-reason codes across a set of sessions (spec.md §6.2).
type ReasonCounts struct {
	Normal        int
	Timeout       int
	Permissions   int
	ServerLoad    int
	DeviceSwitch  int
	IPSwitching   int
	NetworkFailure int
	Abnormal      int
	Other         int
	Total         int
}

// CountReasons tallies the leave-reason codes of sessions that have one.
func CountReasons(sessions []store.SessionRow) ReasonCounts {
	var c ReasonCounts
	for _, s := range sessions {
		if s.Reason == nil {
			continue
		}
		c.Total++
		switch *s.Reason {
		case 1:
			c.Normal++
		case 2:
			c.Timeout++
		case 3:
			c.Permissions++
		case 4:
			c.ServerLoad++
		case 5:
			c.DeviceSwitch++
		case 9:
			c.IPSwitching++
		case 10:
			c.NetworkFailure++
		case 999:
			c.Abnormal++
		default:
			c.Other++
		}
	}
	return c
}

func capPenalty(count int, perEvent, limit float64) float64 {
	if count <= 0 {
		return 0
	}
	p := float64(count) * perEvent
	if p > limit {
		return limit
	}
	return p
}

func failedCallCount(sessions []store.SessionRow) int {
	n := 0
	for _, s := range sessions {
		if s.DurationSeconds != nil && *s.DurationSeconds < failedCallSeconds {
			n++
		}
	}
	return n
}

func avgSessionMinutes(sessions []store.SessionRow) float64 {
	if len(sessions) == 0 {
		return 0
	}
	total := 0.0
	for _, s := range sessions {
		if s.DurationSeconds != nil {
			total += float64(*s.DurationSeconds) / 60.0
		}
	}
	return total / float64(len(sessions))
}

// ChannelQualityScore implements spec.md §4.2.4's per-channel variant: the
// reason-code/failed-call/short-session/normal-exit-bonus terms only, no
// reconnection penalty (reconnection is a per-user concept).
func ChannelQualityScore(sessions []store.SessionRow, w QualityWeights) float64 {
	return qualityScore(sessions, w, nil)
}

// UserQualityScore implements spec.md §4.2.4's per-user variant: the full
// table, including the reconnection-pattern and burst-session penalties.
func UserQualityScore(sessions []store.SessionRow, w QualityWeights, recon ReconnectionAnalysis) float64 {
	return qualityScore(sessions, w, &recon)
}

func qualityScore(sessions []store.SessionRow, w QualityWeights, recon *ReconnectionAnalysis) float64 {
	counts := CountReasons(sessions)
	score := 100.0

	score -= capPenalty(counts.Abnormal, w.AbnormalLeavePerEvent, w.AbnormalLeaveCap)
	score -= capPenalty(counts.Other, w.UnknownPerEvent, w.UnknownCap)

	networkTotal := counts.Timeout + counts.NetworkFailure + counts.IPSwitching
	score -= capPenalty(networkTotal, w.NetworkPerEvent, w.NetworkCap)
	score -= capPenalty(counts.ServerLoad, w.ServerLoadPerEvent, w.ServerLoadCap)

	controlTotal := counts.Permissions + counts.DeviceSwitch
	score -= capPenalty(controlTotal, w.ControlPerEvent, w.ControlCap)

	score -= capPenalty(failedCallCount(sessions), w.FailedCallPerEvent, w.FailedCallCap)

	if avgSessionMinutes(sessions) < 1 {
		score -= w.ShortSessionFlat
	}

	if recon != nil {
		switch recon.Pattern {
		case PatternUnstable:
			score -= w.UnstableReconnectFlat
		case PatternModerate:
			score -= w.ModerateReconnectFlat
		default:
			if recon.RapidReconnections > 0 {
				score -= w.RapidReconnectFlat
			}
		}
		score -= capPenalty(recon.BurstSessions, w.BurstPerEvent, w.BurstCap)
	}

	if counts.Total > 0 && float64(counts.Normal)/float64(counts.Total) > w.NormalExitRatio {
		score += w.NormalExitBonus
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}
