package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/s-rangarajan/festicart/internal/api"
	pkgerrors "github.com/s-rangarajan/festicart/internal/errors"
	"github.com/s-rangarajan/festicart/internal/logger"
)

type successEnvelope struct {
	Data any `json:"data"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

func writeSuccess(ctx context.Context, log *logger.Logger, w http.ResponseWriter, status int, data any) {
	writeJSON(ctx, log, w, status, successEnvelope{Data: data})
}

// writeError renders err with the status of its code. Untyped errors are
// internal errors and never leak their text.
func writeError(ctx context.Context, log *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	if typed.Code() != pkgerrors.CodeInternal {
		if m := typed.Message(); m != "" {
			msg = m
		}
	}

	payload := errorEnvelope{Error: apiError{Code: string(typed.Code()), Message: msg}}
	if meta.DetailsAllowed {
		payload.Error.Details = typed.Details()
	}

	if log != nil {
		fields := map[string]any{"error_code": string(typed.Code())}
		if apiErr, ok := api.AsError(err); ok {
			fields["upstream_status"] = apiErr.Status
		}
		log.Error(log.WithFields(ctx, fields), "request.error", err)
	}

	writeJSON(ctx, log, w, meta.HTTPStatus, payload)
}

func writeJSON(ctx context.Context, log *logger.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && log != nil {
		log.Error(ctx, "failed to encode response", err)
	}
}

// decodeJSONBody decodes a strict JSON body and validates it.
func decodeJSONBody(r *http.Request, dest any) error {
	return decodeBody(r, dest, false)
}

// decodeOptionalJSONBody is decodeJSONBody for routes where an empty body
// means defaults.
func decodeOptionalJSONBody(r *http.Request, dest any) error {
	return decodeBody(r, dest, true)
}

func decodeBody(r *http.Request, dest any, optional bool) error {
	if r.Body == nil {
		if optional {
			return api.Validate(dest)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "request body is required")
	}
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return api.Validate(dest)
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").
			WithDetails(map[string]any{"error": err.Error()})
	}
	return api.Validate(dest)
}
