package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wanderhk/tourism-ai/internal/types"
)

var _ Repository = (*PostgresRepository)(nil)

// Repository reads the knowledge index and the activity candidate pool.
// The index is external and read-only from the engine's point of view.
type Repository interface {
	FindSimilarChunks(ctx context.Context, queryEmbedding []float32, limit int) ([]types.KnowledgeChunk, error)
	FindActivities(ctx context.Context, interests []string, limit int) ([]types.CandidateActivity, error)
}

// Querier is the slice of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type PostgresRepository struct {
	db     Querier
	logger *slog.Logger
}

func NewPostgresRepository(db Querier, logger *slog.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, logger: logger}
}

// FindSimilarChunks runs a cosine-similarity nearest-neighbor query over
// the knowledge_chunks embeddings, most relevant first.
func (r *PostgresRepository) FindSimilarChunks(ctx context.Context, queryEmbedding []float32, limit int) ([]types.KnowledgeChunk, error) {
	ctx, span := otel.Tracer("RetrievalRepository").Start(ctx, "FindSimilarChunks", trace.WithAttributes(
		attribute.Int("embedding.dimension", len(queryEmbedding)),
		attribute.Int("limit", limit),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "FindSimilarChunks"))

	query := `
        SELECT id, title, content, COALESCE(source_url, ''),
            1 - (embedding <=> $1::vector) AS relevance_score
        FROM knowledge_chunks
        WHERE embedding IS NOT NULL
        ORDER BY embedding <=> $1::vector
        LIMIT $2`

	rows, err := r.db.Query(ctx, query, vectorLiteral(queryEmbedding), limit)
	if err != nil {
		l.ErrorContext(ctx, "Similarity query failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Similarity query failed")
		return nil, fmt.Errorf("querying knowledge chunks: %w", err)
	}
	defer rows.Close()

	var chunks []types.KnowledgeChunk
	for rows.Next() {
		var c types.KnowledgeChunk
		if err := rows.Scan(&c.ID, &c.Title, &c.Content, &c.SourceURL, &c.RelevanceScore); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("scanning knowledge chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("iterating knowledge chunks: %w", err)
	}

	span.SetAttributes(attribute.Int("chunks.count", len(chunks)))
	span.SetStatus(codes.Ok, "Chunks retrieved")
	return chunks, nil
}

// FindActivities returns candidates for the itinerary planner, filtered to
// the requested interest tags when any are given, best-rated first.
func (r *PostgresRepository) FindActivities(ctx context.Context, interests []string, limit int) ([]types.CandidateActivity, error) {
	ctx, span := otel.Tracer("RetrievalRepository").Start(ctx, "FindActivities", trace.WithAttributes(
		attribute.Int("interests.count", len(interests)),
		attribute.Int("limit", limit),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "FindActivities"))

	query := `
        SELECT id, name, description, COALESCE(area, ''), interests,
            cost_hkd, duration_minutes, rating,
            COALESCE(transport, ''), COALESCE(tip, '')
        FROM activities`
	args := []any{}
	if len(interests) > 0 {
		lowered := make([]string, len(interests))
		for i, s := range interests {
			lowered[i] = strings.ToLower(s)
		}
		query += `
        WHERE EXISTS (
            SELECT 1 FROM unnest(interests) AS tag WHERE lower(tag) = ANY($1)
        )`
		args = append(args, lowered)
	}
	query += `
        ORDER BY rating DESC, name ASC
        LIMIT ` + strconv.Itoa(limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		l.ErrorContext(ctx, "Activity query failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Activity query failed")
		return nil, fmt.Errorf("querying activities: %w", err)
	}
	defer rows.Close()

	var activities []types.CandidateActivity
	for rows.Next() {
		var a types.CandidateActivity
		var cost float64
		if err := rows.Scan(&a.ID, &a.Name, &a.Description, &a.Area, &a.Interests,
			&cost, &a.DurationMin, &a.Rating, &a.Transport, &a.Tip); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		a.Cost = decimal.NewFromFloat(cost)
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("iterating activities: %w", err)
	}

	span.SetAttributes(attribute.Int("activities.count", len(activities)))
	span.SetStatus(codes.Ok, "Activities retrieved")
	return activities, nil
}

// vectorLiteral renders an embedding as a pgvector input literal.
func vectorLiteral(embedding []float32) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
