package analytics

import "github.com/snarg/rtc-engine/internal/store"

// EpochSummary is the read API's per-epoch detail view (spec.md §6.4):
// wall-clock minutes, user-minutes, utilization, unique host/audience
// counts, plus the role split and quality numbers.
type EpochSummary struct {
	WallClockMinutes float64
	UserMinutes      float64
	Utilization      float64
	UniqueHosts      int
	UniqueAudiences  int
	HostMinutes      float64
	AudienceMinutes  float64
	QualityScore     float64
	Insights         []Insight
	Histogram        SessionLengthHistogram
	MaxConcurrency   int
	PeakTs           int64
	ConcurrencyCurve []ConcurrencyPoint
}

// BuildEpochSummary composes the per-epoch read-API view from a flat list
// of sessions and role events (spec.md §6.4 "Epoch detail").
func BuildEpochSummary(sessions []store.SessionRow, roleEvents []store.RoleEventRow, joinWebhooks []store.RawEventRow, weights QualityWeights) EpochSummary {
	var summary EpochSummary

	hosts := make(map[int]struct{})
	audiences := make(map[int]struct{})
	var minJoin int64
	var maxLeave int64
	haveWindow := false

	for _, s := range sessions {
		if s.IsHost {
			hosts[s.UID] = struct{}{}
		} else {
			audiences[s.UID] = struct{}{}
		}
		if s.DurationSeconds != nil {
			summary.UserMinutes += float64(*s.DurationSeconds) / 60.0
		}

		rm := SessionRoleMinutes(s, roleEvents, joinWebhooks)
		summary.HostMinutes += rm.HostMinutes
		summary.AudienceMinutes += rm.AudienceMinutes

		if !haveWindow || s.JoinTime < minJoin {
			minJoin = s.JoinTime
		}
		if s.LeaveTime != nil && (!haveWindow || *s.LeaveTime > maxLeave) {
			maxLeave = *s.LeaveTime
		}
		haveWindow = true
	}

	summary.UniqueHosts = len(hosts)
	summary.UniqueAudiences = len(audiences)

	if haveWindow && maxLeave > minJoin {
		summary.WallClockMinutes = float64(maxLeave-minJoin) / 60.0
	}
	if summary.WallClockMinutes > 0 {
		summary.Utilization = summary.UserMinutes / summary.WallClockMinutes
	}

	summary.QualityScore = ChannelQualityScore(sessions, weights)
	summary.Insights = BuildInsights(sessions, summary.QualityScore)
	summary.Histogram = BuildSessionLengthHistogram(sessions)
	summary.MaxConcurrency, summary.PeakTs, summary.ConcurrencyCurve = MaxConcurrency(sessions)

	return summary
}
