package recommendations

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wanderhk/tourism-ai/internal/api/session"
	"github.com/wanderhk/tourism-ai/internal/cache"
	"github.com/wanderhk/tourism-ai/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// MockProvider is a mock implementation of generativeAI.Provider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) GenerateCompletion(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) GenerateWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	args := m.Called(ctx, prompt, image, mimeType)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func newRecommendationService(provider *MockProvider) (*ServiceImpl, *session.ServiceImpl) {
	sessions := session.NewService(session.Config{
		TTL:         time.Hour,
		MaxMessages: 50,
	}, testLogger())
	responseCache := cache.New(cache.Config{
		TTLs:          map[types.RequestKind]time.Duration{types.KindRecommendation: 30 * time.Minute},
		SweepInterval: time.Minute,
	}, testLogger())
	return NewService(provider, sessions, responseCache, testLogger()), sessions
}

func recommendationBlocks(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, `RECOMMENDATION %d
Name: Place %d
Category: food
Location: Central
Description: A nice place to visit.
Why recommended: Matches your tastes.

`, i, i)
	}
	return b.String()
}

func TestRecommend(t *testing.T) {
	ctx := context.Background()

	t.Run("parses blocks", func(t *testing.T) {
		provider := new(MockProvider)
		provider.On("GenerateCompletion", mock.Anything, mock.Anything).
			Return(recommendationBlocks(3), nil)

		svc, sessions := newRecommendationService(provider)
		defer sessions.Close()

		resp, err := svc.Recommend(ctx, types.RecommendationRequest{
			CurrentLocation: "Tsim Sha Tsui",
			TimeContext:     "evening",
		})
		require.NoError(t, err)
		require.Len(t, resp.Recommendations, 3)
		assert.Equal(t, "Place 1", resp.Recommendations[0].Name)
		assert.NotEmpty(t, resp.ConversationID)
	})

	t.Run("limit truncates", func(t *testing.T) {
		provider := new(MockProvider)
		provider.On("GenerateCompletion", mock.Anything, mock.Anything).
			Return(recommendationBlocks(8), nil)

		svc, sessions := newRecommendationService(provider)
		defer sessions.Close()

		resp, err := svc.Recommend(ctx, types.RecommendationRequest{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, resp.Recommendations, 2)
	})

	t.Run("session preferences reach the prompt", func(t *testing.T) {
		provider := new(MockProvider)
		provider.On("GenerateCompletion", mock.Anything, mock.MatchedBy(func(prompt string) bool {
			return strings.Contains(prompt, "budget: medium") && strings.Contains(prompt, "pace: fast")
		})).Return(recommendationBlocks(2), nil)

		svc, sessions := newRecommendationService(provider)
		defer sessions.Close()

		id := sessions.GetOrCreate("", nil)
		require.True(t, sessions.SavePreferences(id, map[string]any{"budget": "low", "pace": "fast"}))

		// Explicit request preferences override the remembered ones.
		resp, err := svc.Recommend(ctx, types.RecommendationRequest{
			ConversationID:  id,
			UserPreferences: map[string]any{"budget": "medium"},
		})
		require.NoError(t, err)
		assert.Equal(t, id, resp.ConversationID)
		provider.AssertExpectations(t)
	})

	t.Run("identical requests in one session are cached", func(t *testing.T) {
		provider := new(MockProvider)
		provider.On("GenerateCompletion", mock.Anything, mock.Anything).
			Return(recommendationBlocks(2), nil).Once()

		svc, sessions := newRecommendationService(provider)
		defer sessions.Close()

		id := sessions.GetOrCreate("", nil)
		req := types.RecommendationRequest{ConversationID: id, TimeContext: "morning"}

		first, err := svc.Recommend(ctx, req)
		require.NoError(t, err)
		second, err := svc.Recommend(ctx, req)
		require.NoError(t, err)

		assert.Equal(t, first.Recommendations, second.Recommendations)
		provider.AssertNumberOfCalls(t, "GenerateCompletion", 1)
	})

	t.Run("fingerprints are session scoped", func(t *testing.T) {
		provider := new(MockProvider)
		provider.On("GenerateCompletion", mock.Anything, mock.Anything).
			Return(recommendationBlocks(2), nil)

		svc, sessions := newRecommendationService(provider)
		defer sessions.Close()

		a := sessions.GetOrCreate("", nil)
		b := sessions.GetOrCreate("", nil)

		_, err := svc.Recommend(ctx, types.RecommendationRequest{ConversationID: a})
		require.NoError(t, err)
		_, err = svc.Recommend(ctx, types.RecommendationRequest{ConversationID: b})
		require.NoError(t, err)

		// different sessions must not share cache entries
		provider.AssertNumberOfCalls(t, "GenerateCompletion", 2)
	})

	t.Run("retries with stricter prompt on malformed output", func(t *testing.T) {
		provider := new(MockProvider)
		provider.On("GenerateCompletion", mock.Anything, mock.MatchedBy(func(prompt string) bool {
			return !strings.Contains(prompt, "format exactly")
		})).Return("Just go see the Peak, it's great!", nil).Once()
		provider.On("GenerateCompletion", mock.Anything, mock.MatchedBy(func(prompt string) bool {
			return strings.Contains(prompt, "format exactly")
		})).Return(recommendationBlocks(1), nil).Once()

		svc, sessions := newRecommendationService(provider)
		defer sessions.Close()

		resp, err := svc.Recommend(ctx, types.RecommendationRequest{})
		require.NoError(t, err)
		assert.Len(t, resp.Recommendations, 1)
	})

	t.Run("persistent malformed output fails", func(t *testing.T) {
		provider := new(MockProvider)
		provider.On("GenerateCompletion", mock.Anything, mock.Anything).
			Return("No structure here at all.", nil)

		svc, sessions := newRecommendationService(provider)
		defer sessions.Close()

		_, err := svc.Recommend(ctx, types.RecommendationRequest{})
		assert.ErrorIs(t, err, types.ErrMalformedGeneration)
	})
}
