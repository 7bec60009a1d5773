package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"polysynergy/file-manager/internal/api"
	"polysynergy/file-manager/internal/config"
	"polysynergy/file-manager/internal/observability"
	"polysynergy/file-manager/internal/repository/mongo"
	"polysynergy/file-manager/internal/s3url"
	"polysynergy/file-manager/internal/service"
	"polysynergy/file-manager/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		bootLog := observability.NewLogger("info", "json")
		bootLog.Fatal().Err(err).Msg("could not load config")
	}
	log := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("driver", cfg.S3.Driver).Bool("legacy_naming", cfg.Storage.LegacyNaming).Msg("starting file manager")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("jwt.secret must be set")
	}

	metrics := observability.NewMetrics("file_manager")
	ctx := context.Background()

	// --- Object store ---
	store, err := newObjectStore(ctx, cfg, metrics, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize object store")
	}

	// --- Services ---
	files := service.NewFileManager(store, service.FileManagerOptionsFromConfig(cfg), log)
	hosts := cfg.Presign.CustomHosts
	if cfg.S3.Endpoint != "" {
		hosts = append(hosts, cfg.S3.Endpoint)
	}
	refresher := service.NewURLRefresher(store, s3url.NewScanner(hosts), cfg.Presign.TTL, metrics, log)

	// --- Chat history (optional) ---
	var chat *service.ChatService
	if cfg.Database.URI != "" {
		dbClient, err := mongo.ConnectDB(ctx, cfg.Database.URI)
		if err != nil {
			log.Fatal().Err(err).Msg("could not connect to MongoDB")
		}
		defer func() {
			log.Info().Msg("disconnecting MongoDB")
			if err := mongo.DisconnectDB(dbClient); err != nil {
				log.Error().Err(err).Msg("failed to disconnect MongoDB")
			}
		}()
		appDB := dbClient.Database(cfg.Database.Name)

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := mongo.EnsureChatIndexes(ctx, appDB); err != nil {
				log.Error().Err(err).Msg("failed to ensure chat indexes")
				return
			}
			log.Info().Msg("chat indexes ensured")
		}()

		chat = service.NewChatService(mongo.NewMongoChatRepository(appDB), refresher, storage.NewBucketNamer(cfg.Storage.LegacyNaming), log)
	} else {
		log.Warn().Msg("database.uri is empty, chat endpoints are disabled")
	}

	// --- HTTP ---
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), observability.RequestLogger(log), metrics.Middleware())
	router.MaxMultipartMemory = 32 << 20

	api.SetupRoutes(router, cfg.JWT.Secret, api.Services{
		Files:          files,
		Refresher:      refresher,
		Chat:           chat,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
		Metrics:        metrics.Handler(),
	})

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error().Err(err).Msg("server forced to shut down")
	}
	log.Info().Msg("server exited")
}

// newObjectStore selects the store driver. "memory" keeps everything in
// process and is meant for local development.
func newObjectStore(ctx context.Context, cfg config.Config, metrics *observability.Metrics, log zerolog.Logger) (storage.ObjectStore, error) {
	switch cfg.S3.Driver {
	case "memory":
		log.Warn().Msg("using the in-memory object store, data is lost on restart")
		return storage.NewMemoryStorage(), nil
	case "", "s3":
		return storage.NewS3Storage(ctx, cfg.S3, metrics, log)
	default:
		return nil, errors.New("unknown s3.driver " + cfg.S3.Driver)
	}
}
