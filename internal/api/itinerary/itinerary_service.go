package itinerary

import (
	"context"
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
	"github.com/wanderhk/tourism-ai/internal/api/planner"
	"github.com/wanderhk/tourism-ai/internal/api/retrieval"
	"github.com/wanderhk/tourism-ai/internal/api/session"
	"github.com/wanderhk/tourism-ai/internal/cache"
	"github.com/wanderhk/tourism-ai/internal/types"
)

const (
	maxTripDays   = 14
	candidateDraw = 50
)

// defaultTips covers a provider outage; an itinerary is still useful
// without generated advice.
var defaultTips = []string{
	"Get an Octopus card on arrival for the MTR, buses, trams and most shops.",
	"Carry some cash; smaller restaurants and market stalls often do not take cards.",
	"Check the weather before heading out, afternoon showers are common in summer.",
	"Book popular attractions like the Peak Tram online to skip the queues.",
}

var _ Service = (*ServiceImpl)(nil)

// Service builds multi-day Hong Kong itineraries from the activity pool.
type Service interface {
	Plan(ctx context.Context, req types.ItineraryRequest) (*types.ItineraryResponse, error)
}

type ServiceImpl struct {
	logger    *slog.Logger
	provider  generativeAI.Provider
	retrieval retrieval.Service
	sessions  session.Service
	cache     *cache.ResponseCache
	planner   *planner.Planner
}

func NewService(provider generativeAI.Provider, retrievalSvc retrieval.Service, sessions session.Service, responseCache *cache.ResponseCache, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:    logger,
		provider:  provider,
		retrieval: retrievalSvc,
		sessions:  sessions,
		cache:     responseCache,
		planner:   planner.New(),
	}
}

// Plan validates the request, schedules activities deterministically and
// decorates the result with generated travel tips. Unlike chat, the
// activity pool is mandatory: an unreachable pool fails the request.
func (s *ServiceImpl) Plan(ctx context.Context, req types.ItineraryRequest) (*types.ItineraryResponse, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "Plan", trace.WithAttributes(
		attribute.Int("trip.duration_days", req.Duration),
		attribute.String("trip.budget", string(req.Budget)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Plan"))

	if err := validate(&req); err != nil {
		return nil, err
	}

	sessionID := s.sessions.GetOrCreate(req.ConversationID, nil)
	s.sessions.SavePreferences(sessionID, map[string]any{
		"interests":    req.Interests,
		"budget":       string(req.Budget),
		"travel_style": string(req.TravelStyle),
		"group_size":   req.GroupSize,
	})

	key := cache.Fingerprint(types.KindItinerary, strings.Join(req.Interests, " "), map[string]any{
		"duration":      req.Duration,
		"budget":        req.Budget,
		"travel_style":  req.TravelStyle,
		"group_size":    req.GroupSize,
		"requirements":  req.SpecialRequirements,
		"accommodation": strings.ToLower(strings.TrimSpace(req.Accommodation)),
	})

	started := time.Now()
	value, hit, err := s.cache.GetOrCompute(ctx, key, types.KindItinerary, func(ctx context.Context) (any, error) {
		return s.build(ctx, req)
	})
	metrics.RecordCacheLookup(ctx, types.KindItinerary, hit)
	metrics.RecordGeneration(ctx, types.KindItinerary, time.Since(started), err)
	if err != nil {
		l.ErrorContext(ctx, "Itinerary planning failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Planning failed")
		return nil, err
	}

	resp := *value.(*types.ItineraryResponse)
	resp.ConversationID = sessionID

	span.SetAttributes(attribute.Bool("cache.hit", hit))
	span.SetStatus(codes.Ok, "Itinerary planned")
	return &resp, nil
}

func (s *ServiceImpl) build(ctx context.Context, req types.ItineraryRequest) (*types.ItineraryResponse, error) {
	candidates, err := s.retrieval.CandidateActivities(ctx, req.Interests, candidateDraw)
	if err != nil {
		metrics.RecordRetrievalError(ctx)
		return nil, err
	}

	plans := s.planner.Plan(req, candidates)

	tips := s.generateTips(ctx, req)
	if len(tips) == 0 {
		tips = defaultTips
	}

	return &types.ItineraryResponse{
		Itinerary:          plans,
		TotalEstimatedCost: planner.TotalCost(plans),
		Tips:               tips,
	}, nil
}

// generateTips is best-effort: a provider failure leaves the itinerary
// intact and falls back to the stock advice.
func (s *ServiceImpl) generateTips(ctx context.Context, req types.ItineraryRequest) []string {
	raw, err := s.provider.GenerateCompletion(ctx, buildTipsPrompt(req))
	if err != nil {
		s.logger.WarnContext(ctx, "Tip generation failed, using defaults", slog.Any("error", err))
		return nil
	}
	return generativeAI.ParseTips(raw)
}

func validate(req *types.ItineraryRequest) error {
	if req.Duration < 1 {
		return fmt.Errorf("%w: duration must be at least 1 day", types.ErrInvalidRequest)
	}
	if req.Duration > maxTripDays {
		return fmt.Errorf("%w: duration must be at most %d days", types.ErrInvalidRequest, maxTripDays)
	}
	if req.GroupSize < 1 {
		return fmt.Errorf("%w: group size must be at least 1", types.ErrInvalidRequest)
	}
	switch req.Budget {
	case "":
		req.Budget = types.BudgetMedium
	case types.BudgetLow, types.BudgetMedium, types.BudgetHigh:
	default:
		return fmt.Errorf("%w: unknown budget %q", types.ErrInvalidRequest, req.Budget)
	}
	switch req.TravelStyle {
	case "":
		req.TravelStyle = types.PaceModerate
	case types.PaceSlow, types.PaceModerate, types.PaceFast:
	default:
		return fmt.Errorf("%w: unknown travel style %q", types.ErrInvalidRequest, req.TravelStyle)
	}
	return nil
}

func buildTipsPrompt(req types.ItineraryRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Give up to 5 short practical travel tips for a %d-day Hong Kong trip", req.Duration)
	if len(req.Interests) > 0 {
		fmt.Fprintf(&b, " focused on %s", strings.Join(req.Interests, ", "))
	}
	fmt.Fprintf(&b, " on a %s budget for a group of %d.", req.Budget, req.GroupSize)
	if area := strings.TrimSpace(req.Accommodation); area != "" {
		fmt.Fprintf(&b, " The group is staying in %s.", area)
	}
	if len(req.SpecialRequirements) > 0 {
		fmt.Fprintf(&b, " Special requirements: %s.", strings.Join(req.SpecialRequirements, ", "))
	}
	b.WriteString(" One tip per line, plain text, no numbering.")
	return b.String()
}
