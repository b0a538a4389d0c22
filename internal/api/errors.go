package api

import (
	"errors"
	"net/http"

	"github.com/snarg/rtc-engine/internal/reconcile"
)

// statusFor implements spec.md §7's propagation table: validation -> 400,
// duplicate/accepted -> 200, anything else (store-transient/permanent) -> 500.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, reconcile.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, reconcile.ErrDuplicate):
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}
