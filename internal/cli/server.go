package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"quizhost/internal/app"
	"quizhost/internal/config"
	"quizhost/internal/infra/database"
	"quizhost/internal/infra/memory"
	redisinfra "quizhost/internal/infra/redis"
	transport "quizhost/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	db, err := database.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	sessionTTL := config.TTLDuration(cfg.Session.TTL, 24*time.Hour)
	redisTTL := config.TTLDuration(cfg.Redis.TTL, sessionTTL)
	cacheTTL := config.TTLDuration(cfg.Cache.TTL, 5*time.Second)

	var cache app.ActiveQuizCache
	var sessions app.SessionRepository
	if redisClient != nil {
		cache = redisinfra.NewActiveQuizCache(redisClient, cacheTTL)
		sessions = redisinfra.NewSessionStore(redisClient, redisTTL)
		log.Printf("using redis at %s for sessions and cache", cfg.Redis.Addr)
	} else {
		cache = memory.NewActiveQuizCache(cacheTTL)
		sessions = memory.NewSessionStore(sessionTTL)
	}

	service := app.NewQuizService(database.NewStore(db), cache, app.NewLeaderboardFeed())
	sessionManager := transport.NewSessionManager(sessions, cfg.Session.Secret, cfg.Session.CookieName, sessionTTL)
	var handler http.Handler = transport.NewRouter(transport.NewHandler(service, sessionManager, cfg.Admin.Password))
	if len(cfg.Server.CORSOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins:   cfg.Server.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", "X-Requested-With"},
			AllowCredentials: true,
			MaxAge:           300,
		}).Handler(handler)
	}

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
