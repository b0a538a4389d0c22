package analytics

import (
	"strconv"
	"time"

	"github.com/snarg/rtc-engine/internal/mapping"
	"github.com/snarg/rtc-engine/internal/store"
)

// Period selects calendar-day or calendar-month bucketing for MinuteSeries.
type Period int

const (
	PeriodDay Period = iota
	PeriodMonth
)

// BreakdownBy selects the series-key dimension for MinuteSeries (spec.md §4.2.3).
type BreakdownBy int

const (
	BreakdownByRole BreakdownBy = iota
	BreakdownByPlatform
)

// MinutesQuery is the minutes-analytics read-API request shape (spec.md §6.4).
type MinutesQuery struct {
	Start       time.Time
	End         time.Time
	Period      Period
	Platforms   []int
	ClientTypes []int
	Roles       []mapping.Role
	BreakdownBy BreakdownBy
}

// MinuteSeries implements spec.md §4.2.3: split each session's
// [join_time, leave_time) interval (or [join_time, now) if still open)
// across calendar-day boundaries, attribute seconds/60 to the series key
// derived from BreakdownBy, and emit a complete, gap-free, zero-filled,
// sorted array of date keys per series. Series whose total is zero across
// the whole range are dropped.
func MinuteSeries(sessions []store.SessionRow, q MinutesQuery, now time.Time) map[string][]float64 {
	dayKeys := dayKeysFor(q.Start, q.End, q.Period)
	dayIndex := make(map[string]int, len(dayKeys))
	for i, d := range dayKeys {
		dayIndex[d] = i
	}
	windowEnd := rangeEndExclusive(q.End, q.Period)

	totals := make(map[string][]float64)
	for _, sess := range sessions {
		if !matchesFilters(sess, q) {
			continue
		}
		end := windowEnd
		if sess.LeaveTime != nil {
			leaveAt := time.Unix(*sess.LeaveTime, 0).UTC()
			if leaveAt.Before(end) {
				end = leaveAt
			}
		} else if now.Before(end) {
			end = now
		}
		start := time.Unix(sess.JoinTime, 0).UTC()
		if start.Before(q.Start) {
			start = q.Start
		}
		if !end.After(start) {
			continue
		}

		group := seriesGroup(sess, q.BreakdownBy)
		for _, contrib := range splitAcrossDays(start, end, q.Period) {
			idx, ok := dayIndex[contrib.day]
			if !ok {
				continue
			}
			arr, ok := totals[group]
			if !ok {
				arr = make([]float64, len(dayKeys))
				totals[group] = arr
			}
			arr[idx] += contrib.minutes
		}
	}

	out := make(map[string][]float64, len(totals))
	for group, arr := range totals {
		sum := 0.0
		for _, v := range arr {
			sum += v
		}
		if sum == 0 {
			continue
		}
		out[group] = arr
	}
	return out
}

func matchesFilters(sess store.SessionRow, q MinutesQuery) bool {
	if sess.ClientType == nil {
		// NULL client_type only counts when platform = Linux (spec.md §4.2.3).
		if sess.Platform == nil || *sess.Platform != mapping.PlatformLinux {
			return false
		}
	}
	if len(q.Platforms) > 0 && !containsIntPtr(q.Platforms, sess.Platform) {
		return false
	}
	if len(q.ClientTypes) > 0 && !containsIntPtr(q.ClientTypes, sess.ClientType) {
		return false
	}
	if len(q.Roles) > 0 {
		role := mapping.RoleAudience
		if sess.IsHost {
			role = mapping.RoleHost
		}
		found := false
		for _, r := range q.Roles {
			if r == role {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func containsIntPtr(haystack []int, p *int) bool {
	if p == nil {
		return false
	}
	for _, v := range haystack {
		if v == *p {
			return true
		}
	}
	return false
}

func seriesGroup(sess store.SessionRow, by BreakdownBy) string {
	clientType := "null"
	if sess.ClientType != nil {
		clientType = itoa(*sess.ClientType)
	}
	switch by {
	case BreakdownByRole:
		role := "audience"
		if sess.IsHost {
			role = "host"
		}
		return role + "|" + clientType
	default:
		platform := "null"
		if sess.Platform != nil {
			platform = itoa(*sess.Platform)
		}
		return platform + "|" + clientType
	}
}

type dayContribution struct {
	day     string
	minutes float64
}

func splitAcrossDays(start, end time.Time, period Period) []dayContribution {
	var out []dayContribution
	cursor := start
	for cursor.Before(end) {
		var boundary time.Time
		var key string
		if period == PeriodMonth {
			boundary = time.Date(cursor.Year(), cursor.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
			key = cursor.Format("2006-01")
		} else {
			boundary = time.Date(cursor.Year(), cursor.Month(), cursor.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
			key = cursor.Format("2006-01-02")
		}
		segEnd := boundary
		if end.Before(segEnd) {
			segEnd = end
		}
		minutes := segEnd.Sub(cursor).Minutes()
		out = append(out, dayContribution{day: key, minutes: minutes})
		cursor = segEnd
	}
	return out
}

// rangeEndExclusive returns the exclusive upper bound for session clipping:
// one day past end for PeriodDay, or the first day of the month after end's
// month for PeriodMonth — end itself is an inclusive calendar-day/month
// boundary in MinutesQuery, matching spec.md §6.4's `end_date` semantics.
func rangeEndExclusive(end time.Time, period Period) time.Time {
	if period == PeriodMonth {
		return time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	}
	return time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

func dayKeysFor(start, end time.Time, period Period) []string {
	var keys []string
	if period == PeriodMonth {
		start = time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
		for cur := start; !cur.After(end); cur = cur.AddDate(0, 1, 0) {
			keys = append(keys, cur.Format("2006-01"))
		}
		return keys
	}
	for cur := start; !cur.After(end); cur = cur.AddDate(0, 0, 1) {
		keys = append(keys, cur.Format("2006-01-02"))
	}
	return keys
}

func itoa(n int) string { return strconv.Itoa(n) }
