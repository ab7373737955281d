// respond.go - JSON response and error helpers shared by all handlers.
package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
)

// errorResp matches the {"message": ...} body the frontend consumes.
type errorResp struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResp{Message: msg})
}

// decodeJSON decodes a request body into dst. The body is already capped
// by the body-limit middleware.
func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// writeStoreError maps persistence errors onto the API taxonomy: absent
// entity -> 404, uniqueness clash -> 409, anything else -> generic 500 with
// the detail logged, never returned to the client.
func writeStoreError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, errNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, errDuplicate):
		writeError(w, http.StatusConflict, "already exists")
	default:
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=%s err=%v", rid, op, err)
		writeError(w, http.StatusInternalServerError, "Something went wrong!")
	}
}
