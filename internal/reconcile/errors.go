package reconcile

import "errors"

// Sentinel errors for the error kinds named in spec.md §4.4/§7. The API
// layer translates these to HTTP status codes; the engine itself never
// returns success alongside a partial write.
var (
	// ErrValidation marks a malformed notification (empty app_id,
	// notice_id or payload.channelName).
	ErrValidation = errors.New("reconcile: validation error")

	// ErrDuplicate marks a notice_id already accepted, either via the
	// in-memory recent-set or the store's unique constraint. Ingest returns
	// this alongside Outcome == Duplicate; callers should treat it as
	// success, not failure.
	ErrDuplicate = errors.New("reconcile: duplicate notification")

	// ErrLogicSkip marks a user event missing uid or client_seq: the raw
	// row is still persisted, but no session mutation happens.
	ErrLogicSkip = errors.New("reconcile: logic-skip, missing uid/client_seq")

	// ErrOrphanLeave marks a leave notification with no matching open
	// session and no duration to synthesize one from; the engine drops it
	// as a logic-skip.
	ErrOrphanLeave = errors.New("reconcile: orphan leave, cannot reconstruct session")
)
