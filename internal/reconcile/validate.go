package reconcile

import "fmt"

// validate rejects genuinely malformed notifications (spec.md §7
// "validation"): these never reach raw persistence. Missing uid/clientSeq
// on a user event is deliberately NOT checked here — spec.md §4.1.4/§7
// classifies that as "logic-skip": the raw row is still persisted, and the
// caller still gets success. See Engine.Ingest for that check.
func validate(n Notification) error {
	if n.AppID == "" {
		return fmt.Errorf("%w: app_id is required", ErrValidation)
	}
	if n.NoticeID == "" {
		return fmt.Errorf("%w: notice_id is required", ErrValidation)
	}
	if n.ChannelName == "" {
		return fmt.Errorf("%w: payload.channelName is required", ErrValidation)
	}
	return nil
}
