package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/stake-plus/realm-chat-auth/src/chatauth/alerts"
	"github.com/stake-plus/realm-chat-auth/src/chatauth/auth"
	"github.com/stake-plus/realm-chat-auth/src/chatauth/config"
	"github.com/stake-plus/realm-chat-auth/src/chatauth/data"
	"github.com/stake-plus/realm-chat-auth/src/chatauth/governance"
	"github.com/stake-plus/realm-chat-auth/src/chatauth/provision"
	"github.com/stake-plus/realm-chat-auth/src/chatauth/stream"
	"github.com/stake-plus/realm-chat-auth/src/chatauth/webserver"
)

// chatBackend is what both the Stream client and the in-memory backend offer.
type chatBackend interface {
	provision.Backend
	auth.TokenMinter
}

func newLogger(cfg config.Config) zerolog.Logger {
	var logger zerolog.Logger
	if cfg.Development() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	bootLog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	var db *gorm.DB
	if dsn := os.Getenv("MYSQL_DSN"); dsn != "" {
		var err error
		db, err = data.NewMySQL(dsn)
		if err != nil {
			bootLog.Fatal().Err(err).Msg("mysql connection failed")
		}
	}

	cfg, err := config.Load(db)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}

	logger := newLogger(cfg)
	if !cfg.Development() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = data.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer rdb.Close()
		logger.Info().Msg("connected to Redis")
	}

	ledger := governance.NewRPCLedger(cfg.SolanaRPC, cfg.LedgerTimeout, logger)
	defer ledger.Close()

	backend := newChatBackend(ctx, cfg, logger)

	authn := auth.NewAuthenticator(auth.Options{
		Verifier:    auth.NewVerifier(cfg.AuthMessage),
		Resolver:    governance.NewResolver(ledger, logger),
		Provisioner: provision.New(backend, logger),
		Tokens:      backend,
		Alerts:      newAlertSink(cfg, rdb, logger),
		Mode:        cfg.ProvisionMode,
		Logger:      logger,
	})

	var limiter webserver.Limiter
	if rdb != nil {
		limiter = webserver.NewRedisLimiter(rdb, cfg.RateLimit, cfg.RateWindow)
	} else {
		limiter = webserver.NewMemoryLimiter(ctx, cfg.RateLimit, cfg.RateWindow)
	}

	router := webserver.New(webserver.Deps{
		Authenticator: authn,
		Limiter:       limiter,
		CORSOrigins:   cfg.CORSOrigins,
		Logger:        logger,
	})

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()
	logger.Info().
		Str("port", cfg.Port).
		Str("chat_backend", cfg.ChatBackend).
		Str("provision_mode", string(cfg.ProvisionMode)).
		Msg("realm chat auth listening")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")
	cancel()

	shutCtx, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newChatBackend(ctx context.Context, cfg config.Config, logger zerolog.Logger) chatBackend {
	if cfg.ChatBackend == config.BackendMemory {
		logger.Warn().Msg("using in-memory chat backend; chat state is lost on restart")
		return stream.NewMemoryBackend(cfg.StreamSecret)
	}

	client := stream.NewClient(cfg.StreamURL, cfg.StreamKey, cfg.StreamSecret, cfg.StreamTokenTTL, cfg.ChatTimeout, logger)
	if err := client.EnableMultiTenancy(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to enable chat multi-tenancy")
	}
	return client
}

func newAlertSink(cfg config.Config, rdb *redis.Client, logger zerolog.Logger) alerts.Sink {
	var sinks alerts.Fanout
	if cfg.DiscordAlertWebhook != "" {
		discord, err := alerts.NewDiscordSink(cfg.DiscordAlertWebhook)
		if err != nil {
			logger.Error().Err(err).Msg("discord alert webhook disabled")
		} else {
			sinks = append(sinks, discord)
		}
	}
	if rdb != nil {
		sinks = append(sinks, alerts.NewRedisStreamSink(rdb))
	}
	if len(sinks) == 0 {
		return alerts.NopSink{}
	}
	return sinks
}
