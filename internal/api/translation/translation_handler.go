package translation

import (
	"io"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wanderhk/tourism-ai/internal/api"
	"github.com/wanderhk/tourism-ai/internal/types"
)

const maxImageBytes = 10 << 20 // 10MB upload cap

type HandlerImpl struct {
	translationService Service
	logger             *slog.Logger
}

func NewHandlerImpl(translationService Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{translationService: translationService, logger: logger}
}

// Translate handles POST /translate.
func (h *HandlerImpl) Translate(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("TranslationHandler").Start(r.Context(), "Translate", trace.WithAttributes(
		api.RouteAttributes(http.MethodPost, "/translate")...,
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "Translate"))

	var req types.TranslationRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Invalid translation request body", slog.Any("error", err))
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.translationService.Translate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Translation failed")
		api.ErrorResponseFromErr(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "Translated")
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// TranslateImage handles POST /translate/image as a multipart form with an
// "image" file plus target_language, source_language and context_type
// fields.
func (h *HandlerImpl) TranslateImage(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("TranslationHandler").Start(r.Context(), "TranslateImage", trace.WithAttributes(
		api.RouteAttributes(http.MethodPost, "/translate/image")...,
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "TranslateImage"))

	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		l.WarnContext(ctx, "Invalid multipart form", slog.Any("error", err))
		span.SetStatus(codes.Error, "Invalid multipart form")
		api.ErrorResponse(w, r, http.StatusBadRequest, "expected a multipart form with an image file")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "missing image file")
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxImageBytes))
	if err != nil {
		l.ErrorContext(ctx, "Failed to read uploaded image", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, "failed to read image file")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(image)
	}

	req := types.TranslationRequest{
		SourceLanguage: r.FormValue("source_language"),
		TargetLanguage: r.FormValue("target_language"),
		ContextType:    r.FormValue("context_type"),
	}

	resp, err := h.translationService.TranslateImage(ctx, image, mimeType, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Image translation failed")
		api.ErrorResponseFromErr(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "Image translated")
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}
