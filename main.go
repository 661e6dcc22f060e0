package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-sync/internal/config"
	"chat-sync/internal/db"
	"chat-sync/internal/feeds"
	"chat-sync/internal/handlers"
	"chat-sync/internal/logging"
	"chat-sync/internal/middleware"
	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/pagecache"
	"chat-sync/internal/rabbitmq"
	"chat-sync/internal/storage"
	synccore "chat-sync/internal/sync"
	"chat-sync/internal/telemetry"
	"chat-sync/internal/transport"
	"chat-sync/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.L()
		boot.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(cfg.Log)
	logger := logging.L()

	ctx := context.Background()
	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Log.ServiceName, cfg.Tracing.OTLPEndpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	database, err := db.Connect(cfg.Database.DSN, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to db")
	}
	defer database.Close()

	messageStore := storage.NewMessageRepo(database)
	conversationStore := storage.NewConversationRepo(database)

	var cache pagecache.Cache
	redisCache, err := pagecache.NewRedisCache(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix, cfg.Redis.TTL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, page cache disabled")
		cache = pagecache.NoopCache{}
	} else {
		cache = redisCache
		defer redisCache.Close()
	}

	backend := transport.NewHTTPClient(cfg.Backend.BaseURL, cfg.Backend.Token)

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
	defer publisher.Close()
	emitter := telemetry.NewAuditEmitter(publisher, cfg.AMQP.AuditRouteKey, cfg.Log.ServiceName, envName(), logger)

	if cfg.AMQP.URL != "" {
		if amqpPub, err := observability.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange); err == nil {
			observability.SetPublisher(amqpPub)
			defer amqpPub.Close()
		} else {
			logger.Warn().Err(err).Msg("observability publisher disabled")
		}
	}

	hub := ws.NewHub(logger)
	busNotifier := synccore.NotifierFunc(func(event models.Event) {
		publishCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := publisher.Publish(publishCtx, "chat_sync.events."+string(event.Type), event); err != nil {
			logger.Warn().Err(err).Str("event", string(event.Type)).Msg("event publish failed")
			observability.IncAMQPPublishError()
		}
	})

	core := synccore.NewCore(
		messageStore,
		conversationStore,
		cache,
		backend,
		synccore.MultiNotifier(hub, busNotifier),
		logger,
		synccore.Options{
			UserID:      cfg.Sync.UserID,
			PageSize:    cfg.Sync.PageSize,
			MatchWindow: cfg.Sync.MatchWindow,
			LaneBuffer:  cfg.Sync.LaneBuffer,
		},
	)
	defer core.Close()

	if cfg.AMQP.URL != "" {
		consumer, err := feeds.NewConsumer(cfg.AMQP.URL, cfg.AMQP.FeedExchange, cfg.AMQP.FeedQueue, core, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect feed consumer")
		}
		if err := consumer.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to start feed consumer")
		}
		defer consumer.Close()
	} else {
		logger.Warn().Msg("amqp disabled, realtime feeds inactive")
	}

	syncHandler := handlers.NewSyncHandler(core)
	snapshotWS := ws.NewSnapshotHandler(hub, cfg.Auth.Token)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Log.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(cfg.Auth.Token)

	router.GET("/conversations", authMiddleware, syncHandler.ListConversations)
	router.GET("/conversations/:conversation_id/messages", authMiddleware, syncHandler.GetMessages)
	router.GET("/conversations/:conversation_id/messages/latest", authMiddleware, syncHandler.GetLatestMessages)
	router.GET("/conversations/:conversation_id/messages/more", authMiddleware, syncHandler.GetMoreMessages)
	router.POST("/conversations/:conversation_id/refresh", authMiddleware, syncHandler.Refresh)
	router.POST("/conversations/:conversation_id/messages", authMiddleware, syncHandler.PostMessage)
	router.POST("/conversations/:conversation_id/read", authMiddleware, syncHandler.MarkConversationRead)
	router.POST("/conversations/:conversation_id/typing", authMiddleware, syncHandler.UpdateTyping)
	router.POST("/conversations/:conversation_id/close", authMiddleware, syncHandler.CloseConversation)
	router.POST("/messages/:message_id/retry", authMiddleware, syncHandler.RetryMessage)
	router.POST("/messages/:message_id/read", authMiddleware, syncHandler.MarkMessageRead)
	router.DELETE("/messages/:message_id", authMiddleware, syncHandler.DeleteMessage)
	router.PATCH("/messages/:message_id", authMiddleware, syncHandler.EditMessage)

	router.GET("/ws/snapshots", snapshotWS.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, core, emitter, cfg.Debug)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Server.Port).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
}

func envName() string {
	if env, ok := os.LookupEnv("ENVIRONMENT"); ok {
		return env
	}
	return "development"
}
