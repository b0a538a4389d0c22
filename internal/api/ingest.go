package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/snarg/rtc-engine/internal/notify"
	"github.com/snarg/rtc-engine/internal/reconcile"
)

// ingestResponse mirrors spec.md §6.1's ack body.
type ingestResponse struct {
	Outcome  string `json:"outcome"`
	NoticeID string `json:"noticeId,omitempty"`
}

// handleIngest decodes one webhook notification and feeds it to the
// reconciliation engine (spec.md §6.1, §7). appID comes from the URL path,
// not the wire payload, per notify.Decode's contract.
func handleIngest(engine *reconcile.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appID := chi.URLParam(r, "appID")
		if appID == "" {
			WriteError(w, http.StatusBadRequest, "missing app id")
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			WriteError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}

		n, err := notify.Decode(appID, body)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "malformed notification: "+err.Error())
			return
		}

		outcome, err := engine.Ingest(r.Context(), n)
		if err != nil && !errors.Is(err, reconcile.ErrDuplicate) {
			WriteError(w, statusFor(err), err.Error())
			return
		}

		WriteJSON(w, statusFor(err), ingestResponse{
			Outcome:  outcome.String(),
			NoticeID: n.NoticeID,
		})
	}
}
