package httpx

import (
	"encoding/json"
	"net/http"
)

// DecodeJSON decodes the request body into dst, rejecting fields the target
// type does not declare. On failure it writes the 400 envelope itself and
// returns false, so handlers read it as a guard.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: err})
		return false
	}
	return true
}

// WriteJSON writes v as the response body with the given status. Encoding
// happens before the header is committed, so a marshal failure still yields
// a clean 500 instead of a truncated 2xx.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	// A short write here means the client went away; there is no recovery.
	_, _ = w.Write(payload)
}

// ErrorParams names the pieces of one error response: the HTTP status, the
// machine-readable error code, and the underlying error for the message.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
}

// WriteError writes the gateway's JSON error envelope.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	WriteJSON(w, p.Code, map[string]string{"error": p.ErrCode, "message": p.Err.Error()})
}
