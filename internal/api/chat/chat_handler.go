package chat

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
	chatService Service
	logger      *slog.Logger
}

func NewHandlerImpl(chatService Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{chatService: chatService, logger: logger}
}

// Chat handles POST /chat.
func (h *HandlerImpl) Chat(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ChatHandler").Start(r.Context(), "Chat", trace.WithAttributes(
		api.RouteAttributes(http.MethodPost, "/chat")...,
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "Chat"))

	var req types.ChatRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Invalid chat request body", slog.Any("error", err))
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.chatService.Chat(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Chat failed")
		api.ErrorResponseFromErr(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "Chat answered")
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}
