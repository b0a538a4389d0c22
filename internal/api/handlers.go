package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/snarg/rtc-engine/internal/analytics"
	"github.com/snarg/rtc-engine/internal/store"
)

// readDeps are the dependencies shared by the read-only handlers below.
type readDeps struct {
	store                  store.Store
	maxSessionsPerResponse int
}

type epochListItem struct {
	EpochID      string `json:"epochId"`
	Channel      string `json:"channel"`
	CreatedTs    int64  `json:"createdTs"`
	DestroyedTs  *int64 `json:"destroyedTs,omitempty"`
	LastActivity int64  `json:"lastActivity"`
	SessionCount int    `json:"sessionCount"`
}

// listEpochs handles GET /apps/{appID}/epochs (spec.md §6.4 illustrative surface).
func (d *readDeps) listEpochs(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "appID")
	page, err := ParsePagination(r, d.maxSessionsPerResponse)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, total, err := d.store.ListChannelEpochs(r.Context(), appID, page.Limit, page.Offset)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	items := make([]epochListItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, epochListItem{
			EpochID:      row.Epoch.ID.String(),
			Channel:      row.Epoch.Channel,
			CreatedTs:    row.Epoch.CreatedTs,
			DestroyedTs:  row.Epoch.DestroyedTs,
			LastActivity: row.LastActivity,
			SessionCount: row.SessionCount,
		})
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"epochs": items,
		"total":  total,
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}

// epochDetail handles GET /apps/{appID}/channels/{channel}/epochs/{epochTs}
// (spec.md §6.4), composing the full analytics.EpochSummary for one epoch.
func (d *readDeps) epochDetail(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "appID")
	channel := chi.URLParam(r, "channel")
	epochTs, err := strconv.ParseInt(chi.URLParam(r, "epochTs"), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid epoch timestamp")
		return
	}
	epoch := store.Confirmed(appID, channel, epochTs)

	sessions, err := d.store.ListChannelSessions(r.Context(), appID, channel, &epoch, d.maxSessionsPerResponse)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(sessions) == 0 {
		WriteError(w, http.StatusNotFound, "epoch not found or has no sessions")
		return
	}

	roleEvents, err := d.roleEventsForEpoch(r.Context(), appID, epoch, sessions)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	joinWebhooks, err := d.joinWebhooksForEpoch(r.Context(), appID, epoch, sessions)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	summary := analytics.BuildEpochSummary(sessions, roleEvents, joinWebhooks, analytics.DefaultQualityWeights)
	WriteJSON(w, http.StatusOK, summary)
}

// epochWindow returns the earliest join_time and latest activity among sessions.
func epochWindow(sessions []store.SessionRow) (from, to int64) {
	for i, s := range sessions {
		if i == 0 || s.JoinTime < from {
			from = s.JoinTime
		}
		end := s.JoinTime
		if s.LeaveTime != nil {
			end = *s.LeaveTime
		}
		if end > to {
			to = end
		}
	}
	return from, to
}

// roleEventsForEpoch pulls every role event for the sessions' users within
// the epoch's observed time span; used to feed analytics.BuildEpochSummary.
func (d *readDeps) roleEventsForEpoch(ctx context.Context, appID string, epoch store.EpochID, sessions []store.SessionRow) ([]store.RoleEventRow, error) {
	from, to := epochWindow(sessions)

	var all []store.RoleEventRow
	seen := make(map[int]bool)
	for _, s := range sessions {
		if seen[s.UID] {
			continue
		}
		seen[s.UID] = true
		events, err := d.store.QueryRoleEvents(ctx, appID, epoch, s.UID, from, to)
		if err != nil {
			return nil, err
		}
		all = append(all, events...)
	}
	return all, nil
}

// joinWebhooksForEpoch pulls each session user's raw join-webhook rows within
// the epoch's observed time span, feeding the ±5s initial-role match in
// analytics.SessionRoleMinutes (spec.md §4.2.1 precedence rule (a)).
func (d *readDeps) joinWebhooksForEpoch(ctx context.Context, appID string, epoch store.EpochID, sessions []store.SessionRow) ([]store.RawEventRow, error) {
	from, to := epochWindow(sessions)

	var all []store.RawEventRow
	seen := make(map[int]bool)
	for _, s := range sessions {
		if seen[s.UID] {
			continue
		}
		seen[s.UID] = true
		rows, err := d.store.FindJoinWebhooksForEpoch(ctx, appID, epoch, s.UID, from, to)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
	}
	return all, nil
}

type userSessionItem struct {
	SessionID       int64  `json:"sessionId"`
	Channel         string `json:"channel"`
	EpochID         string `json:"epochId"`
	JoinTime        int64  `json:"joinTime"`
	LeaveTime       *int64 `json:"leaveTime,omitempty"`
	DurationSeconds *int64 `json:"durationSeconds,omitempty"`
	IsHost          bool   `json:"isHost"`
	RoleSwitches    int    `json:"roleSwitches"`
}

// userDetail handles GET /apps/{appID}/users/{uid}/sessions (spec.md §6.4).
func (d *readDeps) userDetail(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "appID")
	uid, err := strconv.Atoi(chi.URLParam(r, "uid"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid uid")
		return
	}

	sessions, err := d.store.ListUserSessions(r.Context(), appID, uid, d.maxSessionsPerResponse)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	items := make([]userSessionItem, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, userSessionItem{
			SessionID:       s.ID,
			Channel:         s.Channel,
			EpochID:         s.Epoch.String(),
			JoinTime:        s.JoinTime,
			LeaveTime:       s.LeaveTime,
			DurationSeconds: s.DurationSeconds,
			IsHost:          s.IsHost,
			RoleSwitches:    s.RoleSwitches,
		})
	}

	recon := analytics.AnalyzeReconnections(sessions)
	quality := analytics.UserQualityScore(sessions, analytics.DefaultQualityWeights, recon)

	WriteJSON(w, http.StatusOK, map[string]any{
		"uid":           uid,
		"sessions":      items,
		"reconnections": recon,
		"qualityScore":  quality,
	})
}

// channelQuality handles GET /apps/{appID}/channels/{channel}/quality
// (spec.md §6.4), scoring up to maxSessionsPerResponse of the channel's
// sessions across all of its epochs; no time window is applied.
func (d *readDeps) channelQuality(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "appID")
	channel := chi.URLParam(r, "channel")

	sessions, err := d.store.ListChannelSessions(r.Context(), appID, channel, nil, d.maxSessionsPerResponse)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	score := analytics.ChannelQualityScore(sessions, analytics.DefaultQualityWeights)
	insights := analytics.BuildInsights(sessions, score)
	histogram := analytics.BuildSessionLengthHistogram(sessions)

	WriteJSON(w, http.StatusOK, map[string]any{
		"channel":      channel,
		"qualityScore": score,
		"insights":     insights,
		"histogram":    histogram,
	})
}

// parseMinutesQuery reads the start, end, period and breakdown query
// parameters of the minutes-analytics endpoint (spec.md §6.4) into an
// analytics.MinutesQuery; the query's filter fields are not read from the
// query string.
func parseMinutesQuery(r *http.Request) (analytics.MinutesQuery, error) {
	q := analytics.MinutesQuery{Period: analytics.PeriodDay}

	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return q, errInvalidParam("start")
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		return q, errInvalidParam("end")
	}
	q.Start, q.End = start, end

	if r.URL.Query().Get("period") == "month" {
		q.Period = analytics.PeriodMonth
	}
	switch r.URL.Query().Get("breakdown") {
	case "platform":
		q.BreakdownBy = analytics.BreakdownByPlatform
	default:
		q.BreakdownBy = analytics.BreakdownByRole
	}
	return q, nil
}

// channelMinutes handles GET /apps/{appID}/channels/{channel}/minutes
// (spec.md §6.4), returning zero-filled day-aligned minute series.
func (d *readDeps) channelMinutes(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "appID")
	channel := chi.URLParam(r, "channel")

	q, err := parseMinutesQuery(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sessions, err := d.store.ListChannelSessions(r.Context(), appID, channel, nil, d.maxSessionsPerResponse)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	series := analytics.MinuteSeries(sessions, q, time.Now().UTC())
	WriteJSON(w, http.StatusOK, map[string]any{
		"channel": channel,
		"series":  series,
	})
}
