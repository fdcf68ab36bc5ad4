package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	generativeAI "github.com/wanderhk/tourism-ai/internal/api/generative_ai"
	"github.com/wanderhk/tourism-ai/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// Service is the knowledge retriever: embed the query, run the
// nearest-neighbor lookup, and drop fragments below the relevance floor so
// answers never get grounded in noise.
type Service interface {
	Retrieve(ctx context.Context, query string, topK int) ([]types.KnowledgeChunk, error)
	CandidateActivities(ctx context.Context, interests []string, limit int) ([]types.CandidateActivity, error)
}

type ServiceImpl struct {
	logger   *slog.Logger
	repo     Repository
	provider generativeAI.Provider
	minScore float64
}

func NewService(repo Repository, provider generativeAI.Provider, minScore float64, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:   logger,
		repo:     repo,
		provider: provider,
		minScore: minScore,
	}
}

// Retrieve returns the top-K most relevant knowledge fragments in
// descending relevance order. Index failures surface as
// ErrRetrievalUnavailable; chat callers degrade to zero grounding,
// itinerary callers fail the request.
func (s *ServiceImpl) Retrieve(ctx context.Context, query string, topK int) ([]types.KnowledgeChunk, error) {
	ctx, span := otel.Tracer("RetrievalService").Start(ctx, "Retrieve", trace.WithAttributes(
		attribute.Int("retrieval.top_k", topK),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Retrieve"))

	embedding, err := s.provider.GenerateEmbedding(ctx, query)
	if err != nil {
		// Quota errors must reach the caller untouched so they are not
		// retried as a retrieval degradation.
		if errors.Is(err, types.ErrQuotaExceeded) {
			span.RecordError(err)
			return nil, err
		}
		l.WarnContext(ctx, "Query embedding failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Embedding failed")
		return nil, fmt.Errorf("%w: embedding query: %v", types.ErrRetrievalUnavailable, err)
	}

	chunks, err := s.repo.FindSimilarChunks(ctx, embedding, topK)
	if err != nil {
		l.WarnContext(ctx, "Vector index unreachable", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Index unreachable")
		return nil, fmt.Errorf("%w: %v", types.ErrRetrievalUnavailable, err)
	}

	filtered := chunks[:0]
	for _, c := range chunks {
		if c.RelevanceScore >= s.minScore {
			filtered = append(filtered, c)
		}
	}

	span.SetAttributes(attribute.Int("chunks.returned", len(filtered)))
	span.SetStatus(codes.Ok, "Retrieved")
	return filtered, nil
}

// CandidateActivities fetches the planner's candidate pool. A failure here
// is also ErrRetrievalUnavailable since the pool lives in the same store.
func (s *ServiceImpl) CandidateActivities(ctx context.Context, interests []string, limit int) ([]types.CandidateActivity, error) {
	ctx, span := otel.Tracer("RetrievalService").Start(ctx, "CandidateActivities")
	defer span.End()

	activities, err := s.repo.FindActivities(ctx, interests, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Activity pool unreachable")
		return nil, fmt.Errorf("%w: %v", types.ErrRetrievalUnavailable, err)
	}
	span.SetAttributes(attribute.Int("activities.count", len(activities)))
	span.SetStatus(codes.Ok, "Candidates retrieved")
	return activities, nil
}
