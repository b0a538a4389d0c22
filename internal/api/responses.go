package api

import (
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

// Pagination holds parsed list-endpoint paging parameters (spec.md §6.4).
type Pagination struct {
	Limit  int
	Offset int
}

// ParsePagination extracts limit/offset from query params, defaulting to
// 50/0 and capping limit at maxLimit (spec.md §5 resource policy).
func ParsePagination(r *http.Request, maxLimit int) (Pagination, error) {
	p := Pagination{Limit: 50, Offset: 0}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, errInvalidParam("limit")
		}
		if n > maxLimit {
			n = maxLimit
		}
		p.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return p, errInvalidParam("offset")
		}
		p.Offset = n
	}
	return p, nil
}

func errInvalidParam(name string) error {
	return &invalidParamError{name: name}
}

type invalidParamError struct{ name string }

func (e *invalidParamError) Error() string { return "invalid query parameter: " + e.name }
