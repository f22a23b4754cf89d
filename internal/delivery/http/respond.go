package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
)

// statusFor maps a domain error kind to its HTTP status.
func statusFor(kind entity.Kind) int {
	switch kind {
	case entity.KindValidation:
		return http.StatusBadRequest
	case entity.KindNotFound:
		return http.StatusNotFound
	case entity.KindUnauthorized, entity.KindSignatureMismatch:
		return http.StatusUnauthorized
	case entity.KindForbidden:
		return http.StatusForbidden
	case entity.KindInvalidTransition, entity.KindConflict:
		return http.StatusConflict
	case entity.KindGatewayUnavailable:
		return http.StatusBadGateway
	case entity.KindDuplicate:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// duplicateBody acknowledges a repeated request together with the current state.
type duplicateBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg})
}

// writeError renders err. Internal errors are logged and never echoed.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := entity.KindOf(err)
	if kind == entity.KindInternal {
		h.logger.Errorw("Request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, statusFor(kind), errorBody{Error: entity.Message(err), Kind: kind.String()})
}

// respond writes v on success. A duplicate is acknowledged with 200 and the current state.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, code int, v any, err error) {
	switch {
	case err == nil:
		writeJSON(w, code, v)
	case entity.KindOf(err) == entity.KindDuplicate:
		writeJSON(w, http.StatusOK, duplicateBody{Status: "duplicate", Message: entity.Message(err), Data: v})
	default:
		h.writeError(w, r, err)
	}
}

var errBadBody = entity.ValidationError("invalid request body")

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return entity.ValidationError("request body is empty")
		}
		return errBadBody
	}
	return nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, entity.ValidationError(name + " must be a non-negative integer")
	}
	return n, nil
}
