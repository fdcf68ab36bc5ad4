package container

import (
	"context"
	"log/slog"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/translate"
	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/wanderhk/tourism-ai/app/db"
	"github.com/wanderhk/tourism-ai/config"
	"github.com/wanderhk/tourism-ai/internal/api/chat"
	generativeAI "github.com/wanderhk/tourism-ai/internal/api/generative_ai"
	"github.com/wanderhk/tourism-ai/internal/api/itinerary"
	"github.com/wanderhk/tourism-ai/internal/api/recommendations"
	"github.com/wanderhk/tourism-ai/internal/api/retrieval"
	"github.com/wanderhk/tourism-ai/internal/api/session"
	"github.com/wanderhk/tourism-ai/internal/api/translation"
	"github.com/wanderhk/tourism-ai/internal/cache"
	"github.com/wanderhk/tourism-ai/internal/types"
)

// Container holds all application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger
	Pool   *pgxpool.Pool

	SessionService session.Service
	ResponseCache  *cache.ResponseCache

	ChatHandler           *chat.HandlerImpl
	ItineraryHandler      *itinerary.HandlerImpl
	TranslationHandler    *translation.HandlerImpl
	RecommendationHandler *recommendations.HandlerImpl
	SessionHandler        *session.HandlerImpl

	sessionImpl *session.ServiceImpl
}

// NewContainer initializes and wires every service and handler.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		return nil, err
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		return nil, err
	}

	provider, err := generativeAI.NewAIClient(ctx, cfg.Provider.Model, cfg.Provider.Timeout, cfg.Provider.Temperature, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	// AWS OCR and translation fallback are optional; without a region the
	// vision model covers both jobs.
	var ocrClient *rekognition.Client
	var translateClient *translate.Client
	if os.Getenv("AWS_REGION") != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			logger.Warn("Failed to load AWS config, OCR and translation fallback disabled", slog.Any("error", err))
		} else {
			ocrClient = rekognition.NewFromConfig(awsCfg)
			translateClient = translate.NewFromConfig(awsCfg)
			logger.Info("AWS OCR and translation fallback enabled")
		}
	}

	responseCache := cache.New(cache.Config{
		TTLs: map[types.RequestKind]time.Duration{
			types.KindChat:           cfg.Cache.ChatTTL,
			types.KindItinerary:      cfg.Cache.ItineraryTTL,
			types.KindTranslation:    cfg.Cache.TranslationTTL,
			types.KindRecommendation: cfg.Cache.RecommendationTTL,
		},
		SweepInterval: cfg.Cache.SweepInterval,
		MaxEntries:    cfg.Cache.MaxEntries,
	}, logger)

	sessionService := session.NewService(session.Config{
		TTL:           cfg.Session.TTL,
		MaxMessages:   cfg.Session.MaxMessages,
		PreserveTurns: cfg.Session.PreserveTurns,
		ContextBudget: cfg.Session.ContextBudget,
		JanitorPeriod: cfg.Session.JanitorPeriod,
	}, logger)

	retrievalRepo := retrieval.NewPostgresRepository(pool, logger)
	retrievalService := retrieval.NewService(retrievalRepo, provider, cfg.Retrieval.MinScore, logger)

	chatService := chat.NewService(provider, retrievalService, sessionService, responseCache, cfg.Retrieval.TopK, logger)
	itineraryService := itinerary.NewService(provider, retrievalService, sessionService, responseCache, logger)
	translationService := translation.NewService(provider, responseCache, ocrClient, translateClient, logger)
	recommendationService := recommendations.NewService(provider, sessionService, responseCache, logger)

	return &Container{
		Config:                cfg,
		Logger:                logger,
		Pool:                  pool,
		SessionService:        sessionService,
		ResponseCache:         responseCache,
		ChatHandler:           chat.NewHandlerImpl(chatService, logger),
		ItineraryHandler:      itinerary.NewHandlerImpl(itineraryService, logger),
		TranslationHandler:    translation.NewHandlerImpl(translationService, logger),
		RecommendationHandler: recommendations.NewHandlerImpl(recommendationService, logger),
		SessionHandler:        session.NewHandlerImpl(sessionService, logger),
		sessionImpl:           sessionService,
	}, nil
}

// Close releases the pool and stops background workers.
func (c *Container) Close() {
	if c.sessionImpl != nil {
		c.sessionImpl.Close()
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}
