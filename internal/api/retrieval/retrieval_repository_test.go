package retrieval

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindSimilarChunks_Repository(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	embedding := []float32{0.5, 0.25}
	rows := pgxmock.NewRows([]string{"id", "title", "content", "source_url", "relevance_score"}).
		AddRow("c1", "Victoria Peak", "The Peak offers views over the harbour.", "https://example.hk/peak", 0.92).
		AddRow("c2", "Star Ferry", "Cross the harbour for a few dollars.", "", 0.81)

	mockPool.ExpectQuery("SELECT id, title, content").
		WithArgs("[0.5,0.25]", 2).
		WillReturnRows(rows)

	repo := NewPostgresRepository(mockPool, testLogger())
	chunks, err := repo.FindSimilarChunks(context.Background(), embedding, 2)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "Victoria Peak", chunks[0].Title)
	assert.Equal(t, 0.92, chunks[0].RelevanceScore)
	assert.Empty(t, chunks[1].SourceURL)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestFindActivities_Repository(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	rows := pgxmock.NewRows([]string{
		"id", "name", "description", "area", "interests",
		"cost_hkd", "duration_minutes", "rating", "transport", "tip",
	}).AddRow("a1", "Tai O Village", "Stilt houses and boat rides.", "Lantau",
		[]string{"culture", "nature"}, 120.50, 180, 4.6, "Bus 11 from Tung Chung", "Try the egg waffles")

	mockPool.ExpectQuery("SELECT id, name, description").
		WithArgs([]string{"culture"}).
		WillReturnRows(rows)

	repo := NewPostgresRepository(mockPool, testLogger())
	activities, err := repo.FindActivities(context.Background(), []string{"Culture"}, 10)
	require.NoError(t, err)
	require.Len(t, activities, 1)

	a := activities[0]
	assert.Equal(t, "Tai O Village", a.Name)
	assert.Equal(t, []string{"culture", "nature"}, a.Interests)
	assert.Equal(t, "120.5", a.Cost.String())
	assert.Equal(t, 180, a.DurationMin)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
