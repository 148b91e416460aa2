package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	ginGzip "github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	cachecontrol "go.eigsys.de/gin-cachecontrol/v2"

	_ "bingoduel/backend/docs"
	"bingoduel/backend/internal/account"
	"bingoduel/backend/internal/config"
	"bingoduel/backend/internal/database"
	"bingoduel/backend/internal/handler"
	"bingoduel/backend/internal/hub"
	"bingoduel/backend/internal/logger"
	"bingoduel/backend/internal/middleware"
	"bingoduel/backend/internal/repository"
	"bingoduel/backend/internal/room"
	"bingoduel/backend/internal/solo"
)

const (
	cleanupInterval = time.Minute
	limiterIdleTTL  = 10 * time.Minute
)

// @title           Bingo Duel API
// @version         1.0
// @description     Two-player and single-player bingo with live room updates.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logger.Init(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialise logger: %v", err)
	}
	defer logger.Sync()
	gin.SetMode(cfg.GinMode)

	roomStore, ledgerStore, err := openStores(cfg)
	if err != nil {
		logger.Log.Fatalw("Failed to open stores", "driver", cfg.StoreDriver, "error", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	h := hub.NewHub()
	accounts := account.NewService(ledgerStore, cfg.StartingTokens)
	rooms := room.NewService(roomStore, h, room.Options{
		TurnTimeLimit: cfg.TurnTimeLimit,
		VerifyClaims:  cfg.VerifyClaims,
	})
	soloGames := solo.NewManager(accounts, h, solo.ManagerOptions{
		CallInterval: cfg.CallInterval,
		SessionTTL:   cfg.SoloSessionTTL,
	})
	defer soloGames.Close()
	soloGames.StartCleanup(ctx, cleanupInterval)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	limiter.StartCleanup(ctx, cleanupInterval, limiterIdleTTL)

	api := &handler.Handler{
		Rooms:             rooms,
		Solo:              soloGames,
		Accounts:          accounts,
		AdminPasswordHash: cfg.AdminPasswordHash,
		AllowedOrigins:    cfg.Origins(),
		RateLimit:         limiter.Middleware(),
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Origins(),
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", middleware.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	// Event streams and sockets must not be buffered by the compressor.
	router.Use(ginGzip.Gzip(ginGzip.DefaultCompression,
		ginGzip.WithExcludedPathsRegexs([]string{`/events$`, `/ws$`})))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/ping", api.Ping)

	apiV1 := router.Group("/api/v1")
	apiV1.Use(cachecontrol.New(cachecontrol.Config{
		NoStore:        true,
		NoCache:        true,
		MustRevalidate: true,
	}))
	api.RegisterRoutes(apiV1)

	serve(ctx, router, cfg.Port, stop)
}

func openStores(cfg *config.Config) (repository.RoomStore, repository.LedgerStore, error) {
	if cfg.StoreDriver == config.DriverMemory {
		logger.Warnf("Using in-memory stores; state is lost on restart")
		return repository.NewInMemoryRoomStore(), repository.NewInMemoryLedgerStore(), nil
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Infof("Database connection established and migrated")
	return repository.NewGormRoomStore(db), repository.NewGormLedgerStore(db), nil
}

// serve runs the HTTP server until SIGINT or SIGTERM, then drains it.
// Every request context derives from ctx, so stopBackground also ends the
// open event streams and sockets that Shutdown would otherwise wait on.
func serve(ctx context.Context, router *gin.Engine, port string, stopBackground func()) {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		// No WriteTimeout: event streams and sockets stay open.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
		<-sigint
		logger.Infof("Shutdown signal received, shutting down server gracefully...")
		stopBackground()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("HTTP server Shutdown: %v", err)
		}
		close(idleConnsClosed)
	}()

	logger.Infof("Server starting on :%s", port)
	logger.Infof("Swagger UI is available at http://localhost:%s/swagger/index.html", port)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Log.Fatalw("Server failed to start", "error", err)
	}
	<-idleConnsClosed
	logger.Infof("Server shutdown complete")
}
