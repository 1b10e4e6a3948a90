// internal/app/system/jsonutil/jsonutil.go
//
// Package jsonutil reads request bodies and writes JSON responses,
// including the single error writer used by every API handler.
package jsonutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dalemusser/questhub/internal/app/system/apierr"
	"github.com/dalemusser/questhub/internal/app/system/limits"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = limits.MaxJSONBody

// Write encodes v as the response body with the given status.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes v with 200.
func OK(w http.ResponseWriter, v any) { Write(w, http.StatusOK, v) }

// Created writes v with 201.
func Created(w http.ResponseWriter, v any) { Write(w, http.StatusCreated, v) }

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Error writes err as {"error": ..., "fields": ...}. Classified errors use
// their own status and message; anything else is logged and hidden behind a
// generic 500.
func Error(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		if ae.Kind == apierr.KindUpstream && log != nil {
			log.Warn("upstream failure",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("path", r.URL.Path),
				zap.Error(err))
		}
		if ae.Kind != apierr.KindInternal {
			Write(w, ae.Kind.Status(), errorBody{Error: ae.Msg, Fields: ae.Fields})
			return
		}
	}
	if log != nil {
		log.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	Write(w, http.StatusInternalServerError, errorBody{Error: http.StatusText(http.StatusInternalServerError)})
}

// Decode reads a JSON body into v. Unknown fields are ignored.
func Decode(w http.ResponseWriter, r *http.Request, v any) error {
	return decode(w, r, v, false)
}

// DecodeStrict reads a JSON body into v and rejects fields v does not
// declare with a validation error naming the field; see UnknownField.
func DecodeStrict(w http.ResponseWriter, r *http.Request, v any) error {
	return decode(w, r, v, true)
}

func decode(w http.ResponseWriter, r *http.Request, v any, strict bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apierr.Invalid("request body is empty", nil)
		}
		if field, ok := UnknownField(err); ok {
			return &apierr.Error{Kind: apierr.KindValidation, Msg: fmt.Sprintf("unknown field %q", field), Err: err}
		}
		return apierr.Invalid("malformed JSON body", nil)
	}
	return nil
}

// UnknownField extracts the field name from a DisallowUnknownFields error.
func UnknownField(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	const prefix = "json: unknown field "
	for ; err != nil; err = errors.Unwrap(err) {
		if msg := err.Error(); strings.HasPrefix(msg, prefix) {
			return strings.Trim(strings.TrimPrefix(msg, prefix), `"`), true
		}
	}
	return "", false
}
