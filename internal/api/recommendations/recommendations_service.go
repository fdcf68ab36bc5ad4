package recommendations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wanderhk/tourism-ai/app/observability/metrics"
	generativeAI "github.com/wanderhk/tourism-ai/internal/api/generative_ai"
	"github.com/wanderhk/tourism-ai/internal/api/session"
	"github.com/wanderhk/tourism-ai/internal/cache"
	"github.com/wanderhk/tourism-ai/internal/types"
)

const (
	defaultLimit = 5
	maxLimit     = 10
)

var _ Service = (*ServiceImpl)(nil)

// Service produces personalized activity recommendations from the visitor's
// stated and remembered preferences.
type Service interface {
	Recommend(ctx context.Context, req types.RecommendationRequest) (*types.RecommendationResponse, error)
}

type ServiceImpl struct {
	logger   *slog.Logger
	provider generativeAI.Provider
	sessions session.Service
	cache    *cache.ResponseCache
}

func NewService(provider generativeAI.Provider, sessions session.Service, responseCache *cache.ResponseCache, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:   logger,
		provider: provider,
		sessions: sessions,
		cache:    responseCache,
	}
}

// Recommend merges remembered session preferences under the request's
// explicit ones and answers through the response cache. The fingerprint is
// session-scoped: two visitors asking the same thing may hold different
// remembered preferences, so their entries never collide.
func (s *ServiceImpl) Recommend(ctx context.Context, req types.RecommendationRequest) (*types.RecommendationResponse, error) {
	ctx, span := otel.Tracer("RecommendationService").Start(ctx, "Recommend", trace.WithAttributes(
		attribute.String("recommendation.location", req.CurrentLocation),
		attribute.String("recommendation.time_context", req.TimeContext),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Recommend"))

	if req.Limit <= 0 {
		req.Limit = defaultLimit
	}
	if req.Limit > maxLimit {
		req.Limit = maxLimit
	}

	sessionID := s.sessions.GetOrCreate(req.ConversationID, nil)
	prefs := mergePreferences(s.sessions.Preferences(sessionID), req.UserPreferences)

	key := cache.Fingerprint(types.KindRecommendation, req.CurrentLocation+" "+req.TimeContext, map[string]any{
		"session":     sessionID,
		"preferences": prefs,
		"limit":       req.Limit,
	})

	started := time.Now()
	value, hit, err := s.cache.GetOrCompute(ctx, key, types.KindRecommendation, func(ctx context.Context) (any, error) {
		return s.recommend(ctx, req, prefs)
	})
	metrics.RecordCacheLookup(ctx, types.KindRecommendation, hit)
	metrics.RecordGeneration(ctx, types.KindRecommendation, time.Since(started), err)
	if err != nil {
		l.ErrorContext(ctx, "Recommendation generation failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Generation failed")
		return nil, err
	}

	span.SetAttributes(attribute.Bool("cache.hit", hit))
	span.SetStatus(codes.Ok, "Recommendations generated")
	return &types.RecommendationResponse{
		Recommendations: value.([]types.Recommendation),
		ConversationID:  sessionID,
	}, nil
}

func (s *ServiceImpl) recommend(ctx context.Context, req types.RecommendationRequest, prefs map[string]any) ([]types.Recommendation, error) {
	prompt := buildRecommendationPrompt(req, prefs)

	raw, err := s.provider.GenerateCompletion(ctx, prompt)
	if err != nil && errors.Is(err, types.ErrProviderTimeout) {
		raw, err = s.provider.GenerateCompletion(ctx, prompt)
	}
	if err != nil {
		return nil, err
	}

	recs, err := generativeAI.ParseRecommendations(raw)
	if err != nil {
		// One stricter retry before giving up on the format.
		raw, rerr := s.provider.GenerateCompletion(ctx, prompt+"\n\nFollow the RECOMMENDATION block format exactly.")
		if rerr != nil {
			return nil, err
		}
		if recs, rerr = generativeAI.ParseRecommendations(raw); rerr != nil {
			return nil, rerr
		}
	}

	if len(recs) > req.Limit {
		recs = recs[:req.Limit]
	}
	return recs, nil
}

// mergePreferences layers explicit request preferences over the remembered
// session ones.
func mergePreferences(remembered, explicit map[string]any) map[string]any {
	merged := make(map[string]any, len(remembered)+len(explicit))
	for k, v := range remembered {
		merged[k] = v
	}
	for k, v := range explicit {
		merged[k] = v
	}
	return merged
}

func buildRecommendationPrompt(req types.RecommendationRequest, prefs map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Recommend %d things to do in Hong Kong for a visitor.\n", req.Limit)
	if req.CurrentLocation != "" {
		fmt.Fprintf(&b, "They are currently near %s; prefer nearby options.\n", req.CurrentLocation)
	}
	if req.TimeContext != "" {
		fmt.Fprintf(&b, "It is %s; only suggest things suitable for that time of day.\n", req.TimeContext)
	}
	if len(prefs) > 0 {
		b.WriteString("Their preferences:\n")
		keys := make([]string, 0, len(prefs))
		for k := range prefs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %v\n", k, prefs[k])
		}
	}
	b.WriteString(`
For each suggestion respond with a block in exactly this format:
RECOMMENDATION <number>
Name: <place or activity name>
Category: <one of: food, culture, nature, shopping, nightlife, family>
Location: <district or area>
Rating: <1.0-5.0>
Description: <two sentences>
Why recommended: <one sentence tied to their preferences>
Estimated time: <e.g. 2 hours>
Cost range: <e.g. HK$100-300>
Tips: <one practical tip>
Best time: <time of day>`)
	return b.String()
}
