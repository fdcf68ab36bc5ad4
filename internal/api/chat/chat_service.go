package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wanderhk/tourism-ai/app/observability/metrics"
	generativeAI "github.com/wanderhk/tourism-ai/internal/api/generative_ai"
	"github.com/wanderhk/tourism-ai/internal/api/retrieval"
	"github.com/wanderhk/tourism-ai/internal/api/session"
	"github.com/wanderhk/tourism-ai/internal/cache"
	"github.com/wanderhk/tourism-ai/internal/types"
)

const sourceSnippetLen = 200

var _ Service = (*ServiceImpl)(nil)

// Service answers free-form visitor questions grounded in the knowledge
// base and the running conversation.
type Service interface {
	Chat(ctx context.Context, req types.ChatRequest) (*types.ChatResponse, error)
}

type ServiceImpl struct {
	logger    *slog.Logger
	provider  generativeAI.Provider
	retrieval retrieval.Service
	sessions  session.Service
	cache     *cache.ResponseCache
	topK      int
}

func NewService(provider generativeAI.Provider, retrievalSvc retrieval.Service, sessions session.Service, responseCache *cache.ResponseCache, topK int, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:    logger,
		provider:  provider,
		retrieval: retrievalSvc,
		sessions:  sessions,
		cache:     responseCache,
		topK:      topK,
	}
}

// chatResult is the cacheable part of an answer: the session id is stamped
// on per caller after the cache round-trip.
type chatResult struct {
	Message string
	Sources []types.Source
}

// Chat resolves the session, answers through the response cache and records
// both turns in the conversation. Identical questions against identical
// conversation state share one provider call.
func (s *ServiceImpl) Chat(ctx context.Context, req types.ChatRequest) (*types.ChatResponse, error) {
	ctx, span := otel.Tracer("ChatService").Start(ctx, "Chat", trace.WithAttributes(
		attribute.Int("message.length", len(req.Message)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Chat"))

	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("%w: message must not be empty", types.ErrInvalidRequest)
	}

	sessionID := s.sessions.GetOrCreate(req.ConversationID, req.UserContext)
	span.SetAttributes(attribute.String("session.id", sessionID))

	// Context is assembled before the user turn is recorded so concurrent
	// duplicates of the same question see the same conversation state and
	// collapse onto one fingerprint.
	conversationContext := s.sessions.AssembleContext(sessionID)
	if conversationContext == "" && len(req.ConversationHistory) > 0 {
		conversationContext = renderHistory(req.ConversationHistory)
	}
	userContext := req.UserContext
	if userContext == nil {
		userContext = s.sessions.UserContext(sessionID)
	}

	key := cache.Fingerprint(types.KindChat, req.Message, map[string]any{
		"context":      conversationContext,
		"user_context": userContext,
	})

	started := time.Now()
	value, hit, err := s.cache.GetOrCompute(ctx, key, types.KindChat, func(ctx context.Context) (any, error) {
		return s.answer(ctx, req.Message, conversationContext, userContext)
	})
	metrics.RecordCacheLookup(ctx, types.KindChat, hit)
	metrics.RecordGeneration(ctx, types.KindChat, time.Since(started), err)
	if err != nil {
		l.ErrorContext(ctx, "Chat generation failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Generation failed")
		return nil, err
	}
	result := value.(*chatResult)

	s.sessions.AppendMessage(sessionID, "user", req.Message)
	s.sessions.AppendMessage(sessionID, "assistant", result.Message)

	span.SetAttributes(attribute.Bool("cache.hit", hit))
	span.SetStatus(codes.Ok, "Chat answered")
	return &types.ChatResponse{
		Message:        result.Message,
		Sources:        result.Sources,
		ConversationID: sessionID,
	}, nil
}

// answer runs retrieval and generation for a cache miss. Retrieval outages
// degrade to an ungrounded answer; provider failures fail the request.
func (s *ServiceImpl) answer(ctx context.Context, message, conversationContext string, userContext *types.UserContext) (*chatResult, error) {
	chunks, err := s.retrieval.Retrieve(ctx, message, s.topK)
	if err != nil {
		if !errors.Is(err, types.ErrRetrievalUnavailable) {
			return nil, err
		}
		metrics.RecordRetrievalError(ctx)
		s.logger.WarnContext(ctx, "Answering without knowledge grounding", slog.Any("error", err))
		chunks = nil
	}

	prompt := buildChatPrompt(message, chunks, conversationContext, userContext)
	answer, err := s.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	sources := make([]types.Source, 0, len(chunks))
	for _, c := range chunks {
		sources = append(sources, types.Source{
			Title:          c.Title,
			Content:        snippet(c.Content),
			URL:            c.SourceURL,
			RelevanceScore: c.RelevanceScore,
		})
	}
	return &chatResult{Message: answer, Sources: sources}, nil
}

// generate calls the provider with one bounded retry on timeout or
// malformed output. Quota errors are never retried.
func (s *ServiceImpl) generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		raw, err := s.provider.GenerateCompletion(ctx, prompt)
		if err != nil {
			if errors.Is(err, types.ErrProviderTimeout) && attempt == 0 {
				lastErr = err
				continue
			}
			return "", err
		}
		answer, err := generativeAI.NormalizeChatAnswer(raw)
		if err != nil {
			if attempt == 0 {
				lastErr = err
				prompt += "\n\nAnswer in one or two plain-text paragraphs with no formatting."
				continue
			}
			return "", err
		}
		return answer, nil
	}
	return "", lastErr
}

func snippet(content string) string {
	if len(content) <= sourceSnippetLen {
		return content
	}
	return content[:sourceSnippetLen] + "..."
}

func renderHistory(history []types.ConversationMessage) string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		role := "Human"
		if m.Role == "assistant" {
			role = "Assistant"
		}
		lines = append(lines, role+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

func buildChatPrompt(message string, chunks []types.KnowledgeChunk, conversationContext string, userContext *types.UserContext) string {
	var b strings.Builder
	b.WriteString("You are a knowledgeable and friendly Hong Kong tourism assistant. ")
	b.WriteString("Answer the visitor's question accurately and concisely in plain text.\n")

	if len(chunks) > 0 {
		b.WriteString("\nUse the following verified information about Hong Kong:\n")
		for _, c := range chunks {
			fmt.Fprintf(&b, "- %s: %s\n", c.Title, c.Content)
		}
	} else {
		b.WriteString("\nNo reference material is available; answer from general knowledge of Hong Kong and say so when unsure.\n")
	}

	if userContext != nil {
		b.WriteString("\nAbout the visitor:\n")
		if userContext.Location != "" {
			fmt.Fprintf(&b, "- Currently near: %s\n", userContext.Location)
		}
		if len(userContext.Interests) > 0 {
			fmt.Fprintf(&b, "- Interests: %s\n", strings.Join(userContext.Interests, ", "))
		}
		if userContext.BudgetRange != "" {
			fmt.Fprintf(&b, "- Budget: %s\n", userContext.BudgetRange)
		}
	}

	if conversationContext != "" {
		b.WriteString("\nConversation so far:\n")
		b.WriteString(conversationContext)
		b.WriteString("\n")
	}

	b.WriteString("\nVisitor question: ")
	b.WriteString(message)
	return b.String()
}
