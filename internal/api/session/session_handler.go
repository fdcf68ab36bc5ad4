package session

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wanderhk/tourism-ai/internal/api"
	"github.com/wanderhk/tourism-ai/internal/types"
)

type HandlerImpl struct {
	sessionService Service
	logger         *slog.Logger
}

func NewHandlerImpl(sessionService Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{sessionService: sessionService, logger: logger}
}

// Create handles POST /session: it mints a fresh conversation session.
func (h *HandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("SessionHandler").Start(r.Context(), "Create", trace.WithAttributes(
		api.RouteAttributes(http.MethodPost, "/session")...,
	))
	defer span.End()

	var req struct {
		UserContext *types.UserContext `json:"user_context,omitempty"`
	}
	// An empty body is fine; the session just starts without context.
	if r.ContentLength > 0 {
		if err := api.DecodeJSONBody(w, r, &req); err != nil {
			span.SetStatus(codes.Error, "Invalid request body")
			api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}

	id := h.sessionService.GetOrCreate("", req.UserContext)
	h.logger.InfoContext(ctx, "Session created", slog.String("session_id", id))

	span.SetAttributes(attribute.String("session.id", id))
	span.SetStatus(codes.Ok, "Session created")
	api.WriteJSONResponse(w, r, http.StatusCreated, map[string]string{"session_id": id})
}

// Stats handles GET /session/{id}/stats.
func (h *HandlerImpl) Stats(w http.ResponseWriter, r *http.Request) {
	_, span := otel.Tracer("SessionHandler").Start(r.Context(), "Stats", trace.WithAttributes(
		api.RouteAttributes(http.MethodGet, "/session/{id}/stats")...,
	))
	defer span.End()

	id := chi.URLParam(r, "id")
	stats, err := h.sessionService.Stats(id)
	if err != nil {
		span.SetStatus(codes.Error, "Session not found")
		api.ErrorResponseFromErr(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "Stats returned")
	api.WriteJSONResponse(w, r, http.StatusOK, stats)
}

// History handles GET /session/{id}/history.
func (h *HandlerImpl) History(w http.ResponseWriter, r *http.Request) {
	_, span := otel.Tracer("SessionHandler").Start(r.Context(), "History", trace.WithAttributes(
		api.RouteAttributes(http.MethodGet, "/session/{id}/history")...,
	))
	defer span.End()

	id := chi.URLParam(r, "id")
	if _, err := h.sessionService.Stats(id); err != nil {
		span.SetStatus(codes.Error, "Session not found")
		api.ErrorResponseFromErr(w, r, err)
		return
	}

	messages := h.sessionService.History(id, 0)
	span.SetStatus(codes.Ok, "History returned")
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]any{
		"session_id": id,
		"messages":   messages,
	})
}

// Cleanup handles POST /session/cleanup: it sweeps expired sessions
// immediately instead of waiting for the janitor.
func (h *HandlerImpl) Cleanup(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("SessionHandler").Start(r.Context(), "Cleanup", trace.WithAttributes(
		api.RouteAttributes(http.MethodPost, "/session/cleanup")...,
	))
	defer span.End()

	removed := h.sessionService.CleanupExpired()
	h.logger.InfoContext(ctx, "Manual session cleanup", slog.Int("removed", removed))

	span.SetStatus(codes.Ok, "Cleanup complete")
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]int{"removed": removed})
}
