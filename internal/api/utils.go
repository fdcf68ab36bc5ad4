package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware" // For RequestID
	"go.opentelemetry.io/otel/attribute"

	"github.com/wanderhk/tourism-ai/internal/types"
)

// RouteAttributes builds the standard span attributes for an HTTP handler.
func RouteAttributes(method, route string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.route", route),
	}
}

// ErrorResponse writes a standard JSON error response including request ID.
func ErrorResponse(w http.ResponseWriter, r *http.Request, status int, message string) {
	reqID := middleware.GetReqID(r.Context())
	resp := map[string]interface{}{
		"success":    false,
		"error":      message,
		"request_id": reqID,
	}
	WriteJSONResponse(w, r, status, resp)
}

// ErrorResponseFromErr maps a taxonomy error onto an HTTP status and a
// human-readable reason. Internal error text never leaks verbatim for
// unexpected failures.
func ErrorResponseFromErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, types.ErrInvalidRequest):
		ErrorResponse(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrSessionNotFound):
		ErrorResponse(w, r, http.StatusNotFound, "Conversation not found or expired")
	case errors.Is(err, types.ErrQuotaExceeded):
		ErrorResponse(w, r, http.StatusTooManyRequests, "The assistant is over its usage quota right now. Please try again later.")
	case errors.Is(err, types.ErrProviderTimeout):
		ErrorResponse(w, r, http.StatusGatewayTimeout, "The assistant took too long to answer. Please try again.")
	case errors.Is(err, types.ErrRetrievalUnavailable):
		ErrorResponse(w, r, http.StatusServiceUnavailable, "The knowledge base is temporarily unavailable. Please try again shortly.")
	case errors.Is(err, types.ErrMalformedGeneration):
		ErrorResponse(w, r, http.StatusBadGateway, "The assistant returned an unusable answer. Please try again.")
	default:
		ErrorResponse(w, r, http.StatusInternalServerError, "Something went wrong handling your request.")
	}
}

// WriteJSONResponse encodes the data to JSON and writes the response header and body.
func WriteJSONResponse(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}

	js, err := json.Marshal(data)
	if err != nil {
		reqID := middleware.GetReqID(r.Context())
		slog.ErrorContext(r.Context(), "Failed to marshal JSON response",
			slog.Any("error", err),
			slog.String("request_id", reqID),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// Set headers *before* writing status or body
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)
	if err != nil {
		reqID := middleware.GetReqID(r.Context())
		slog.ErrorContext(r.Context(), "Failed to write response body",
			slog.Any("error", err),
			slog.String("request_id", reqID),
		)
	}
}

// DecodeJSONBody reads and decodes a JSON request body safely.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	// Set a max body size to prevent abuse (e.g., 1MB)
	maxBytes := 1_048_576
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var invalidUnmarshalError *json.InvalidUnmarshalError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)

		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")

		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q (wanted %s)", unmarshalTypeError.Field, unmarshalTypeError.Type)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)

		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")

		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			fieldName = strings.Trim(fieldName, `"`)
			return fmt.Errorf("body contains unknown key %q", fieldName)

		case errors.As(err, &maxBytesError):
			return fmt.Errorf("body must not be larger than %d bytes", maxBytesError.Limit)

		case errors.As(err, &invalidUnmarshalError):
			panic(fmt.Errorf("developer error: invalid argument passed to json.Unmarshal: %w", err))

		default:
			return fmt.Errorf("error decoding JSON body: %w", err)
		}
	}

	// Check for trailing data after the first JSON object
	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}

	return nil
}
