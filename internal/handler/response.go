package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from the API has the same shape:
//   {"error": "not_found", "message": "post not found with id abc123"}
//
// Validation errors also name the offending field, so a form can highlight it:
//   {"error": "validation_error", "message": "title is required", "field": "title"}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/postvault/internal/apperror"
	"github.com/sakif/postvault/internal/auth"
)

// maxJSONBody caps request bodies. The largest legitimate body is a post
// with a 20 000 character paragraph.
const maxJSONBody = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"`         // Human-readable description
	Field   string `json:"field,omitempty"` // Set on validation errors
}

// MessageResponse is the body of endpoints that have nothing else to say.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status code must be set BEFORE the body is written. Once
// Encode calls w.Write, the headers are sent and later changes are ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// ERROR MAPPING:
//
//	ErrValidation   → 400
//	ErrUnauthorized → 401
//	ErrForbidden    → 403
//	ErrNotFound     → 404
//	ErrConflict     → 409
//	ErrUpstream     → 502
//	anything else   → 500 with a generic message
//
// The service layer never sees HTTP status codes; this is the only place
// where domain errors become protocol errors.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, errorType := statusOf(appErr)
		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
			Field:   appErr.Field,
		})
		return
	}

	// NEVER expose internal error details to the client: the raw message
	// may contain SQL, file paths or hostnames.
	slog.Error("internal error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

func statusOf(appErr *apperror.AppError) (int, string) {
	switch {
	case errors.Is(appErr, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(appErr, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(appErr, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(appErr, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(appErr, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(appErr, apperror.ErrUpstream):
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// decodeJSON reads a JSON request body into dst. Unknown fields and
// trailing data are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "request body must be a valid JSON object")
	}
	if dec.More() {
		return apperror.ValidationFailed("body", "request body must contain a single JSON object")
	}
	return nil
}

// sessionUser returns the authenticated user's ID. Routes behind
// RequireAuth always have one; the error branch covers a handler mounted
// without the middleware.
func sessionUser(r *http.Request) (string, error) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return "", apperror.Unauthorized("valid authentication required")
	}
	return userID, nil
}

// viewer returns the authenticated user's ID or "" for anonymous requests.
func viewer(r *http.Request) string {
	userID, _ := auth.UserIDFromContext(r.Context())
	return userID
}

// pageParams reads ?cursor= and ?limit=. An absent limit is 0, which the
// service turns into the default page size.
func pageParams(r *http.Request) (cursor string, limit int, err error) {
	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			return "", 0, apperror.ValidationFailed("limit", "limit must be an integer")
		}
	}
	return q.Get("cursor"), limit, nil
}
