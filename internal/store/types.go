package store

import "github.com/snarg/rtc-engine/internal/mapping"

// RawEventRow is the durable, append-only record of one accepted
// notification (spec §3 "Notification (raw input)", §4.1.3).
type RawEventRow struct {
	AppID             string
	NoticeID          string
	ProductID         int
	EventType         mapping.EventType
	NotifyMs          int64
	Sid               string
	ChannelName       string
	Ts                int64
	UID               *int
	ClientSeq         *int64
	Platform          *int
	ClientType        *int
	Reason            *int
	Duration          *int64
	ChannelSessionID  string // resolved epoch id (empty if unresolved, e.g. bare destroy with no active epoch)
	RawPayload        []byte // verbatim payload for audit (spec §3)
}

// SessionRow is one (epoch, uid) presence interval (spec §3 "Presence session").
type SessionRow struct {
	ID                int64
	AppID             string
	Channel           string
	Epoch             EpochID
	UID               int
	JoinTime          int64
	LeaveTime         *int64
	DurationSeconds   *int64
	IsHost            bool
	CommunicationMode int // 0 = broadcaster/audience, 1 = communication; fixed at creation
	RoleSwitches      int
	LastClientSeq     int64
	Platform          *int
	ClientType        *int
	Reason            *int
	Sid               string
	Account           string
}

// RoleEventRow is an immutable role-switch record (spec §3 "Role event").
type RoleEventRow struct {
	AppID   string
	Channel string
	Epoch   EpochID
	UID     int
	Ts      int64
	NewRole mapping.Role
}

// ChannelDailyAggRow is a per-(epoch, channel, day) roll-up (spec §3 "Daily aggregates").
type ChannelDailyAggRow struct {
	AppID         string
	Channel       string
	Epoch         EpochID
	Day           string // YYYY-MM-DD, UTC calendar day
	TotalMinutes  float64
	UniqueUsers   int
	FirstActivity int64
	LastActivity  int64
}

// UserDailyAggRow is a per-(epoch, channel, uid, day) roll-up.
type UserDailyAggRow struct {
	AppID         string
	Channel       string
	Epoch         EpochID
	UID           int
	Day           string
	TotalMinutes  float64
	FirstActivity int64
	LastActivity  int64
}

// EpochSummary is the denormalized view the read API's epoch list needs
// (spec §6.4 "List epochs for an app, ordered by last activity desc").
type EpochSummary struct {
	Epoch        ChannelEpochRow
	LastActivity int64
	SessionCount int
}
