package translation

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	rekognitiontypes "github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/aws/aws-sdk-go-v2/service/translate"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wanderhk/tourism-ai/app/observability/metrics"
	generativeAI "github.com/wanderhk/tourism-ai/internal/api/generative_ai"
	"github.com/wanderhk/tourism-ai/internal/cache"
	"github.com/wanderhk/tourism-ai/internal/types"
)

const (
	providerConfidence = 0.9
	fallbackConfidence = 0.7

	// strictFormatReminder is appended to the prompt on one retry when the
	// model ignores the requested line format.
	strictFormatReminder = "Respond with only the requested lines in exactly the format shown, nothing else."
)

// awsLanguageCodes maps the language names the API accepts onto AWS
// Translate codes. Only languages listed here can use the fallback path.
var awsLanguageCodes = map[string]string{
	"english":    "en",
	"cantonese":  "zh-TW",
	"chinese":    "zh",
	"mandarin":   "zh",
	"japanese":   "ja",
	"korean":     "ko",
	"french":     "fr",
	"german":     "de",
	"spanish":    "es",
	"portuguese": "pt",
	"thai":       "th",
	"tagalog":    "tl",
	"indonesian": "id",
	"hindi":      "hi",
}

var _ Service = (*ServiceImpl)(nil)

// Service translates visitor text and photographed signs or menus, adding
// cultural context where it matters.
type Service interface {
	Translate(ctx context.Context, req types.TranslationRequest) (*types.TranslationResponse, error)
	TranslateImage(ctx context.Context, image []byte, mimeType string, req types.TranslationRequest) (*types.TranslationResponse, error)
}

type ServiceImpl struct {
	logger   *slog.Logger
	provider generativeAI.Provider
	cache    *cache.ResponseCache

	// Optional AWS clients. OCR prefers Rekognition when configured, and
	// AWS Translate backstops a provider outage for plain text.
	ocr        *rekognition.Client
	translator *translate.Client
}

func NewService(provider generativeAI.Provider, responseCache *cache.ResponseCache, ocr *rekognition.Client, translator *translate.Client, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:     logger,
		provider:   provider,
		cache:      responseCache,
		ocr:        ocr,
		translator: translator,
	}
}

// Translate translates plain text through the response cache.
func (s *ServiceImpl) Translate(ctx context.Context, req types.TranslationRequest) (*types.TranslationResponse, error) {
	ctx, span := otel.Tracer("TranslationService").Start(ctx, "Translate", trace.WithAttributes(
		attribute.String("translation.target", req.TargetLanguage),
		attribute.String("translation.context_type", req.ContextType),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Translate"))

	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: text must not be empty", types.ErrInvalidRequest)
	}
	if strings.TrimSpace(req.TargetLanguage) == "" {
		return nil, fmt.Errorf("%w: target_language must not be empty", types.ErrInvalidRequest)
	}

	key := cache.Fingerprint(types.KindTranslation, req.Text, map[string]any{
		"source":  strings.ToLower(req.SourceLanguage),
		"target":  strings.ToLower(req.TargetLanguage),
		"context": strings.ToLower(req.ContextType),
	})

	started := time.Now()
	value, hit, err := s.cache.GetOrCompute(ctx, key, types.KindTranslation, func(ctx context.Context) (any, error) {
		return s.translateText(ctx, req)
	})
	metrics.RecordCacheLookup(ctx, types.KindTranslation, hit)
	metrics.RecordGeneration(ctx, types.KindTranslation, time.Since(started), err)
	if err != nil {
		l.ErrorContext(ctx, "Translation failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Translation failed")
		return nil, err
	}

	span.SetAttributes(attribute.Bool("cache.hit", hit))
	span.SetStatus(codes.Ok, "Translated")
	return value.(*types.TranslationResponse), nil
}

// TranslateImage extracts text from a photo and translates it. Rekognition
// does the OCR when configured; otherwise the vision model handles both
// steps in one call.
func (s *ServiceImpl) TranslateImage(ctx context.Context, image []byte, mimeType string, req types.TranslationRequest) (*types.TranslationResponse, error) {
	ctx, span := otel.Tracer("TranslationService").Start(ctx, "TranslateImage", trace.WithAttributes(
		attribute.Int("image.bytes", len(image)),
		attribute.String("translation.target", req.TargetLanguage),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "TranslateImage"))

	if len(image) == 0 {
		return nil, fmt.Errorf("%w: image must not be empty", types.ErrInvalidRequest)
	}
	if strings.TrimSpace(req.TargetLanguage) == "" {
		return nil, fmt.Errorf("%w: target_language must not be empty", types.ErrInvalidRequest)
	}

	if s.ocr != nil {
		extracted, err := s.extractText(ctx, image)
		if err != nil {
			l.WarnContext(ctx, "OCR failed, falling back to vision model", slog.Any("error", err))
		} else if extracted != "" {
			req.Text = extracted
			return s.Translate(ctx, req)
		}
	}

	// Repeated uploads of the same photo share an entry keyed on the
	// image digest, same TTL as text translations.
	key := cache.Fingerprint(types.KindTranslation, fmt.Sprintf("%x", sha256.Sum256(image)), map[string]any{
		"source":  strings.ToLower(req.SourceLanguage),
		"target":  strings.ToLower(req.TargetLanguage),
		"context": strings.ToLower(req.ContextType),
		"image":   true,
	})

	started := time.Now()
	value, hit, err := s.cache.GetOrCompute(ctx, key, types.KindTranslation, func(ctx context.Context) (any, error) {
		return s.visionTranslate(ctx, image, mimeType, req)
	})
	metrics.RecordCacheLookup(ctx, types.KindTranslation, hit)
	metrics.RecordGeneration(ctx, types.KindTranslation, time.Since(started), err)
	if err != nil {
		l.ErrorContext(ctx, "Image translation failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Image translation failed")
		return nil, err
	}

	span.SetAttributes(attribute.Bool("cache.hit", hit))
	span.SetStatus(codes.Ok, "Image translated")
	return value.(*types.TranslationResponse), nil
}

// visionTranslate has the vision model extract and translate in one call,
// echoing the source text so the response can report what it read.
func (s *ServiceImpl) visionTranslate(ctx context.Context, image []byte, mimeType string, req types.TranslationRequest) (*types.TranslationResponse, error) {
	resp, err := s.providerTranslateImage(ctx, image, mimeType, buildImagePrompt(req))
	if errors.Is(err, types.ErrMalformedGeneration) {
		resp, err = s.providerTranslateImage(ctx, image, mimeType, buildImagePrompt(req)+"\n"+strictFormatReminder)
	}
	return resp, err
}

func (s *ServiceImpl) providerTranslateImage(ctx context.Context, image []byte, mimeType string, prompt string) (*types.TranslationResponse, error) {
	raw, err := s.generateWithRetryImage(ctx, prompt, image, mimeType)
	if err != nil {
		return nil, err
	}
	original, translated, culturalContext, err := generativeAI.ParseImageTranslation(raw)
	if err != nil {
		return nil, err
	}
	return &types.TranslationResponse{
		TranslatedText:  translated,
		OriginalText:    original,
		CulturalContext: culturalContext,
		Confidence:      providerConfidence,
	}, nil
}

func (s *ServiceImpl) translateText(ctx context.Context, req types.TranslationRequest) (*types.TranslationResponse, error) {
	resp, err := s.providerTranslate(ctx, req, buildTextPrompt(req))
	if errors.Is(err, types.ErrMalformedGeneration) {
		resp, err = s.providerTranslate(ctx, req, buildTextPrompt(req)+"\n"+strictFormatReminder)
	}
	if err == nil {
		return resp, nil
	}

	// Provider down or talking nonsense: a literal machine translation
	// still beats an error for someone staring at a menu.
	if s.translator != nil && !errors.Is(err, types.ErrInvalidRequest) {
		if resp, ferr := s.fallbackTranslate(ctx, req); ferr == nil {
			return resp, nil
		}
	}
	return nil, err
}

func (s *ServiceImpl) providerTranslate(ctx context.Context, req types.TranslationRequest, prompt string) (*types.TranslationResponse, error) {
	raw, err := s.generateWithRetry(ctx, prompt)
	if err != nil {
		return nil, err
	}
	translated, culturalContext, err := generativeAI.ParseTranslation(raw)
	if err != nil {
		return nil, err
	}
	return &types.TranslationResponse{
		TranslatedText:  translated,
		OriginalText:    req.Text,
		CulturalContext: culturalContext,
		Confidence:      providerConfidence,
	}, nil
}

func (s *ServiceImpl) generateWithRetry(ctx context.Context, prompt string) (string, error) {
	raw, err := s.provider.GenerateCompletion(ctx, prompt)
	if err != nil && errors.Is(err, types.ErrProviderTimeout) {
		raw, err = s.provider.GenerateCompletion(ctx, prompt)
	}
	return raw, err
}

func (s *ServiceImpl) generateWithRetryImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	raw, err := s.provider.GenerateWithImage(ctx, prompt, image, mimeType)
	if err != nil && errors.Is(err, types.ErrProviderTimeout) {
		raw, err = s.provider.GenerateWithImage(ctx, prompt, image, mimeType)
	}
	return raw, err
}

// extractText runs Rekognition text detection and joins the detected lines
// top to bottom.
func (s *ServiceImpl) extractText(ctx context.Context, image []byte) (string, error) {
	out, err := s.ocr.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &rekognitiontypes.Image{Bytes: image},
	})
	if err != nil {
		return "", fmt.Errorf("detecting text: %w", err)
	}
	var lines []string
	for _, d := range out.TextDetections {
		if d.Type == rekognitiontypes.TextTypesLine && d.DetectedText != nil {
			lines = append(lines, *d.DetectedText)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func (s *ServiceImpl) fallbackTranslate(ctx context.Context, req types.TranslationRequest) (*types.TranslationResponse, error) {
	target, ok := awsLanguageCodes[strings.ToLower(req.TargetLanguage)]
	if !ok {
		return nil, fmt.Errorf("no fallback language code for %q", req.TargetLanguage)
	}
	source := "auto"
	if code, ok := awsLanguageCodes[strings.ToLower(req.SourceLanguage)]; ok {
		source = code
	}

	out, err := s.translator.TranslateText(ctx, &translate.TranslateTextInput{
		Text:               aws.String(req.Text),
		SourceLanguageCode: aws.String(source),
		TargetLanguageCode: aws.String(target),
	})
	if err != nil {
		return nil, fmt.Errorf("fallback translation: %w", err)
	}

	s.logger.InfoContext(ctx, "Served translation via fallback engine",
		slog.String("target", target))
	return &types.TranslationResponse{
		TranslatedText: aws.ToString(out.TranslatedText),
		OriginalText:   req.Text,
		Confidence:     fallbackConfidence,
	}, nil
}

// contextGuidance steers the model by what kind of text is being
// translated.
func contextGuidance(contextType string) string {
	switch strings.ToLower(contextType) {
	case "menu":
		return "This is from a restaurant menu. Explain unfamiliar dishes or ingredients in the context line."
	case "sign":
		return "This is from a public sign. Note any rule or warning it conveys in the context line."
	case "conversation":
		return "This is conversational speech. Keep the register natural and note politeness nuances in the context line."
	default:
		return "Note any cultural nuance a visitor to Hong Kong should know in the context line."
	}
}

func buildTextPrompt(req types.TranslationRequest) string {
	source := req.SourceLanguage
	if source == "" {
		source = "the detected language"
	}
	return fmt.Sprintf(`Translate the following text from %s to %s.
%s

Respond in exactly this format:
TRANSLATION: <the translated text>
CONTEXT: <one short sentence of cultural context, or leave blank>

Text: %s`, source, req.TargetLanguage, contextGuidance(req.ContextType), req.Text)
}

func buildImagePrompt(req types.TranslationRequest) string {
	return fmt.Sprintf(`Extract the text visible in this image and translate it to %s.
%s

Respond in exactly this format:
ORIGINAL: <the extracted source text>
TRANSLATION: <the translated text>
CONTEXT: <one short sentence of cultural context, or leave blank>`, req.TargetLanguage, contextGuidance(req.ContextType))
}
