// Package notify decodes the inbound notification envelope (spec.md §6.1)
// into the engine's domain Notification type. It is the only package that
// touches the wire JSON shape; reconcile never imports encoding/json.
package notify

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/snarg/rtc-engine/internal/mapping"
	"github.com/snarg/rtc-engine/internal/reconcile"
)

// envelope mirrors spec.md §6.1's top-level wire shape.
type envelope struct {
	NoticeID  string  `json:"noticeId"`
	ProductID int     `json:"productId"`
	EventType int     `json:"eventType"`
	NotifyMs  int64   `json:"notifyMs"`
	Sid       string  `json:"sid"`
	Payload   payload `json:"payload"`
}

type payload struct {
	ChannelName string `json:"channelName"`
	Ts          int64  `json:"ts"`
	UID         *int   `json:"uid"`
	ClientSeq   *int64 `json:"clientSeq"`
	Platform    *int   `json:"platform"`
	ClientType  *int   `json:"clientType"`
	Reason      *int   `json:"reason"`
	Duration    *int64 `json:"duration"`
}

// Decode parses one notification's JSON body for appID into a
// reconcile.Notification. appID is supplied out-of-band by the caller
// (e.g. the API route or auth token), not carried in the wire payload.
func Decode(appID string, body []byte) (reconcile.Notification, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return reconcile.Notification{}, fmt.Errorf("notify: malformed json: %w", err)
	}

	n := reconcile.Notification{
		AppID:       appID,
		NoticeID:    env.NoticeID,
		ProductID:   env.ProductID,
		EventType:   mapping.EventType(env.EventType),
		NotifyMs:    env.NotifyMs,
		Sid:         env.Sid,
		ChannelName: env.Payload.ChannelName,
		Ts:          env.Payload.Ts,
		UID:         env.Payload.UID,
		ClientSeq:   env.Payload.ClientSeq,
		Platform:    env.Payload.Platform,
		ClientType:  env.Payload.ClientType,
		Reason:      env.Payload.Reason,
		Duration:    env.Payload.Duration,
		RawPayload:  body,
	}
	return n, nil
}
