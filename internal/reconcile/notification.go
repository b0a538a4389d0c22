package reconcile

import "github.com/snarg/rtc-engine/internal/mapping"

// Notification is the engine's domain-level view of one inbound event
// (spec.md §3 "Notification (raw input)", §6.1). internal/notify decodes
// the wire JSON into this shape; the engine never touches JSON directly.
type Notification struct {
	AppID     string
	NoticeID  string
	ProductID int
	EventType mapping.EventType
	NotifyMs  int64
	Sid       string

	ChannelName string
	Ts          int64 // unix seconds, authoritative event time
	UID         *int
	ClientSeq   *int64
	Platform    *int
	ClientType  *int
	Reason      *int
	Duration    *int64 // seconds, leave events only

	RawPayload []byte
}

// Outcome is the result of one Ingest call (spec.md §4.1 "Accepted |
// Duplicate | Rejected(reason)").
type Outcome int

const (
	Accepted Outcome = iota
	Duplicate
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Duplicate:
		return "duplicate"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}
