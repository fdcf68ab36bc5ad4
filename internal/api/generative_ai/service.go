package generativeAI

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/wanderhk/tourism-ai/internal/types"
)

const embeddingModel = "text-embedding-004"

var _ Provider = (*AIClient)(nil)

// Provider is the black-box completion/embedding contract the services
// depend on. Tests substitute a counting stub.
type Provider interface {
	GenerateCompletion(ctx context.Context, prompt string) (string, error)
	GenerateWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// AIClient wraps the Gemini SDK with a per-call deadline and maps provider
// failures onto the engine's error taxonomy.
type AIClient struct {
	client      *genai.Client
	model       string
	timeout     time.Duration
	temperature float32
	logger      *slog.Logger
}

func NewAIClient(ctx context.Context, model string, timeout time.Duration, temperature float64, logger *slog.Logger) (*AIClient, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "NewAIClient")
	defer span.End()

	apiKey := os.Getenv("GOOGLE_GEMINI_API_KEY")
	if apiKey == "" {
		err := fmt.Errorf("GOOGLE_GEMINI_API_KEY environment variable is not set")
		span.RecordError(err)
		span.SetStatus(codes.Error, "API key not set")
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create Gemini client")
		return nil, err
	}

	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	span.SetStatus(codes.Ok, "AI client created successfully")
	return &AIClient{
		client:      client,
		model:       model,
		timeout:     timeout,
		temperature: float32(temperature),
		logger:      logger,
	}, nil
}

func (ai *AIClient) config() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{Temperature: genai.Ptr[float32](ai.temperature)}
}

// GenerateCompletion invokes the provider exactly once; retries are the
// caller's responsibility and are bounded there.
func (ai *AIClient) GenerateCompletion(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "GenerateCompletion", trace.WithAttributes(
		attribute.Int("prompt.length", len(prompt)),
		attribute.String("model", ai.model),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, ai.timeout)
	defer cancel()

	result, err := ai.client.Models.GenerateContent(ctx, ai.model, genai.Text(prompt), ai.config())
	if err != nil {
		classified := classifyProviderError(err)
		span.RecordError(classified)
		span.SetStatus(codes.Error, "Failed to generate content")
		return "", classified
	}

	responseText := result.Text()
	span.SetAttributes(attribute.Int("response.length", len(responseText)))
	span.SetStatus(codes.Ok, "Content generated successfully")
	return responseText, nil
}

// GenerateWithImage sends a prompt plus an inline image part, used for
// photographed menus and signs.
func (ai *AIClient) GenerateWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "GenerateWithImage", trace.WithAttributes(
		attribute.Int("image.bytes", len(image)),
		attribute.String("model", ai.model),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, ai.timeout)
	defer cancel()

	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: prompt},
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
		},
	}}
	result, err := ai.client.Models.GenerateContent(ctx, ai.model, contents, ai.config())
	if err != nil {
		classified := classifyProviderError(err)
		span.RecordError(classified)
		span.SetStatus(codes.Error, "Failed to generate content from image")
		return "", classified
	}

	span.SetStatus(codes.Ok, "Content generated successfully")
	return result.Text(), nil
}

// GenerateEmbedding embeds text for vector retrieval.
func (ai *AIClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "GenerateEmbedding")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, ai.timeout)
	defer cancel()

	result, err := ai.client.Models.EmbedContent(ctx, embeddingModel, genai.Text(text), nil)
	if err != nil {
		classified := classifyProviderError(err)
		span.RecordError(classified)
		span.SetStatus(codes.Error, "Failed to embed content")
		return nil, classified
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		err := fmt.Errorf("empty embedding response: %w", types.ErrMalformedGeneration)
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("embedding.dimension", len(result.Embeddings[0].Values)))
	span.SetStatus(codes.Ok, "Embedding generated successfully")
	return result.Embeddings[0].Values, nil
}

// classifyProviderError maps SDK failures onto the taxonomy: deadline
// overruns become ErrProviderTimeout (retryable once), HTTP 429 becomes
// ErrQuotaExceeded (never retried).
func classifyProviderError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", types.ErrProviderTimeout, err)
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", types.ErrQuotaExceeded, err)
	}
	return err
}
