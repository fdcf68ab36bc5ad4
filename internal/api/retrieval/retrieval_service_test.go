package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wanderhk/tourism-ai/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// MockRepository is a mock implementation of Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindSimilarChunks(ctx context.Context, queryEmbedding []float32, limit int) ([]types.KnowledgeChunk, error) {
	args := m.Called(ctx, queryEmbedding, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.KnowledgeChunk), args.Error(1)
}

func (m *MockRepository) FindActivities(ctx context.Context, interests []string, limit int) ([]types.CandidateActivity, error) {
	args := m.Called(ctx, interests, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.CandidateActivity), args.Error(1)
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

func TestRetrieve(t *testing.T) {
	ctx := context.Background()
	embedding := []float32{0.1, 0.2, 0.3}

	t.Run("filters chunks below the relevance floor", func(t *testing.T) {
		repo := new(MockRepository)
		provider := new(MockProvider)

		provider.On("GenerateEmbedding", mock.Anything, "dim sum").Return(embedding, nil)
		repo.On("FindSimilarChunks", mock.Anything, embedding, 4).Return([]types.KnowledgeChunk{
			{ID: "1", Title: "Dim Sum Guide", RelevanceScore: 0.9},
			{ID: "2", Title: "Hiking Trails", RelevanceScore: 0.2},
			{ID: "3", Title: "Yum Cha Etiquette", RelevanceScore: 0.5},
		}, nil)

		svc := NewService(repo, provider, 0.35, testLogger())
		chunks, err := svc.Retrieve(ctx, "dim sum", 4)
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, "Dim Sum Guide", chunks[0].Title)
		assert.Equal(t, "Yum Cha Etiquette", chunks[1].Title)
	})

	t.Run("index failure maps to ErrRetrievalUnavailable", func(t *testing.T) {
		repo := new(MockRepository)
		provider := new(MockProvider)

		provider.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(embedding, nil)
		repo.On("FindSimilarChunks", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("connection refused"))

		svc := NewService(repo, provider, 0.35, testLogger())
		_, err := svc.Retrieve(ctx, "anything", 4)
		assert.ErrorIs(t, err, types.ErrRetrievalUnavailable)
	})

	t.Run("embedding failure maps to ErrRetrievalUnavailable", func(t *testing.T) {
		repo := new(MockRepository)
		provider := new(MockProvider)

		provider.On("GenerateEmbedding", mock.Anything, mock.Anything).
			Return(nil, errors.New("model unavailable"))

		svc := NewService(repo, provider, 0.35, testLogger())
		_, err := svc.Retrieve(ctx, "anything", 4)
		assert.ErrorIs(t, err, types.ErrRetrievalUnavailable)
		repo.AssertNotCalled(t, "FindSimilarChunks", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("quota errors pass through untouched", func(t *testing.T) {
		repo := new(MockRepository)
		provider := new(MockProvider)

		provider.On("GenerateEmbedding", mock.Anything, mock.Anything).
			Return(nil, types.ErrQuotaExceeded)

		svc := NewService(repo, provider, 0.35, testLogger())
		_, err := svc.Retrieve(ctx, "anything", 4)
		assert.ErrorIs(t, err, types.ErrQuotaExceeded)
		assert.NotErrorIs(t, err, types.ErrRetrievalUnavailable)
	})
}

func TestCandidateActivities(t *testing.T) {
	ctx := context.Background()

	t.Run("returns pool", func(t *testing.T) {
		repo := new(MockRepository)
		provider := new(MockProvider)

		want := []types.CandidateActivity{{ID: "a", Name: "Star Ferry"}}
		repo.On("FindActivities", mock.Anything, []string{"culture"}, 50).Return(want, nil)

		svc := NewService(repo, provider, 0.35, testLogger())
		got, err := svc.CandidateActivities(ctx, []string{"culture"}, 50)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("pool failure maps to ErrRetrievalUnavailable", func(t *testing.T) {
		repo := new(MockRepository)
		provider := new(MockProvider)

		repo.On("FindActivities", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("timeout"))

		svc := NewService(repo, provider, 0.35, testLogger())
		_, err := svc.CandidateActivities(ctx, nil, 50)
		assert.ErrorIs(t, err, types.ErrRetrievalUnavailable)
	})
}
