package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/leadforge/leadforge/pkg/engine"
)

// errorResponse is the JSON body returned for failed requests.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Class string `json:"class,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an engine error to an HTTP status. Validation failures are
// 400, missing entities 404, conflicts 409, and illegal state changes 422.
func writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	var oerr *engine.OutreachError
	if errors.As(err, &oerr) {
		resp.Code = oerr.Code
		resp.Class = string(oerr.Class)

		switch oerr.Code {
		case engine.ErrCodeValidation:
			status = http.StatusBadRequest
		case engine.ErrCodeNotFound, engine.ErrCodeMembershipNotFound:
			status = http.StatusNotFound
		case engine.ErrCodeDuplicateMembership:
			status = http.StatusConflict
		case engine.ErrCodeInvalidTransition, engine.ErrCodeInvalidState, engine.ErrCodeInvalidAdvancement:
			status = http.StatusUnprocessableEntity
		default:
			if oerr.Class == engine.ErrorClassConflict {
				status = http.StatusConflict
			}
		}
	}

	writeJSON(w, status, resp)
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return engine.NewPermanentError("invalid request body", err).WithCode(engine.ErrCodeValidation)
	}
	return nil
}
