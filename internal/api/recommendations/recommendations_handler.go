package recommendations

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
	recommendationService Service
	logger                *slog.Logger
}

func NewHandlerImpl(recommendationService Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{recommendationService: recommendationService, logger: logger}
}

// Recommend handles POST /recommendations.
func (h *HandlerImpl) Recommend(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("RecommendationHandler").Start(r.Context(), "Recommend", trace.WithAttributes(
		api.RouteAttributes(http.MethodPost, "/recommendations")...,
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "Recommend"))

	var req types.RecommendationRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Invalid recommendation request body", slog.Any("error", err))
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.recommendationService.Recommend(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Recommendation failed")
		api.ErrorResponseFromErr(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "Recommendations generated")
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}
