package itinerary

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wanderhk/tourism-ai/internal/api"
	"github.com/wanderhk/tourism-ai/internal/types"
)

type HandlerImpl struct {
	itineraryService Service
	logger           *slog.Logger
}

func NewHandlerImpl(itineraryService Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{itineraryService: itineraryService, logger: logger}
}

// Plan handles POST /itinerary.
func (h *HandlerImpl) Plan(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ItineraryHandler").Start(r.Context(), "Plan", trace.WithAttributes(
		api.RouteAttributes(http.MethodPost, "/itinerary")...,
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "Plan"))

	var req types.ItineraryRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Invalid itinerary request body", slog.Any("error", err))
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.itineraryService.Plan(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Planning failed")
		api.ErrorResponseFromErr(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "Itinerary planned")
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}
