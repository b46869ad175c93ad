package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"chatgate/internal/api"
	"chatgate/internal/chat"
	"chatgate/internal/config"
	"chatgate/internal/guard"
	"chatgate/internal/provider"
	"chatgate/internal/redis"
	"chatgate/internal/session"
	"chatgate/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	accessLoggers := guard.MultiLogger{guard.NewSlogLogger(logger)}

	var audit *storage.AuditLog
	if cfg.Audit.DSN != "" {
		db, err := storage.Open(cfg.Audit.Driver, cfg.Audit.DSN)
		if err != nil {
			log.Fatalf("open audit database: %v", err)
		}
		defer db.Close()
		if err := storage.Migrate(db, cfg.Audit.Driver); err != nil {
			log.Fatalf("migrate audit database: %v", err)
		}
		audit = storage.NewAuditLog(db, logger)
		accessLoggers = append(accessLoggers, audit)
	}

	windowSpan := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
	var window guard.Window = guard.NewMemoryWindow(cfg.RateLimit.Ceiling, windowSpan)
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(cfg.Redis)
		if err != nil {
			log.Fatalf("create redis client: %v", err)
		}
		defer rdb.Close()
		window = guard.NewRedisWindow(rdb, cfg.RateLimit.Ceiling, windowSpan)
	}

	authPolicy := guard.NewAuthPolicy(cfg.Auth.Enabled, cfg.Auth.Users)
	ratePolicy := guard.NewRatePolicy(cfg.RateLimit.Enabled, cfg.RateLimit.Ceiling, windowSpan, window, logger)
	whitelistPolicy := guard.NewWhitelistPolicy(cfg.IPWhitelist.Enabled, cfg.IPWhitelist.IPs)

	baseChain := guard.NewChain(accessLoggers, authPolicy, whitelistPolicy)
	chatChain := guard.NewChain(accessLoggers, authPolicy, ratePolicy, whitelistPolicy)

	store := session.New()
	factory := provider.NewFactory(cfg.Providers)
	orchestrator := chat.NewOrchestrator(store, factory, logger)

	handler := api.NewHandler(store, orchestrator, cfg, window, whitelistPolicy, audit, baseChain, chatChain)

	router := gin.Default()
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.ServerAddress,
		Handler: cors.AllowAll().Handler(router),
	}
	logger.Info("server starting", "address", cfg.ServerAddress)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
