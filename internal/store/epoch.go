package store

import "fmt"

// EpochKind distinguishes a confirmed channel epoch (opened by a 101 event)
// from a provisional one synthesized for an orphan user event (spec §3, §9).
//
// Spec design note (§9) calls out modeling this as a tagged-variant sum type
// rather than a string-suffix convention; EpochKind + EpochID is that type.
// EpochID.String() still renders the "<app>_<channel>_<ts>[_provisional]"
// form because that string is the on-the-wire/on-disk channel_session_id
// every other system component (and the read API) keys off of.
type EpochKind int

const (
	EpochConfirmed EpochKind = iota
	EpochProvisional
)

func (k EpochKind) String() string {
	if k == EpochProvisional {
		return "provisional"
	}
	return "confirmed"
}

// EpochID identifies a channel epoch: a half-open [CreatedTs, destroy) interval
// for one (AppID, Channel). Ts is the create_ts for a confirmed epoch or the
// seen_ts of the orphan event that synthesized a provisional one (spec §3).
type EpochID struct {
	AppID   string
	Channel string
	Kind    EpochKind
	Ts      int64
}

// String renders the canonical channel_session_id form, e.g.
// "acme_lobby_1690000000" or "acme_lobby_1690000000_provisional".
func (e EpochID) String() string {
	if e.Kind == EpochProvisional {
		return fmt.Sprintf("%s_%s_%d_provisional", e.AppID, e.Channel, e.Ts)
	}
	return fmt.Sprintf("%s_%s_%d", e.AppID, e.Channel, e.Ts)
}

// Confirmed builds a confirmed EpochID for (appID, channel) created at ts.
func Confirmed(appID, channel string, ts int64) EpochID {
	return EpochID{AppID: appID, Channel: channel, Kind: EpochConfirmed, Ts: ts}
}

// Provisional builds a provisional EpochID for (appID, channel) first seen at ts.
func Provisional(appID, channel string, ts int64) EpochID {
	return EpochID{AppID: appID, Channel: channel, Kind: EpochProvisional, Ts: ts}
}

// ChannelEpochRow is the authoritative lifecycle record for one channel
// epoch: when it opened, when (if ever) it closed. The reconciliation
// engine's lookup ladder (spec §4.1.2) and provisional-merge (spec §4.1.2)
// operate over these records.
type ChannelEpochRow struct {
	AppID       string
	Channel     string
	ID          EpochID
	CreatedTs   int64
	DestroyedTs *int64 // nil while the epoch is still open
}

// Open reports whether the epoch has no destroy event yet.
func (r ChannelEpochRow) Open() bool {
	return r.DestroyedTs == nil
}
