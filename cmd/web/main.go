package main

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"myduka-web/internal/backend"
	"myduka-web/internal/core/auth"
	"myduka-web/internal/core/cache"
	"myduka-web/internal/core/config"
	"myduka-web/internal/core/database"
	"myduka-web/internal/core/logger"
	"myduka-web/internal/core/server"
	"myduka-web/internal/session"
	mdw "myduka-web/internal/transport/http/middleware"
	"myduka-web/internal/transport/http/router"
	"myduka-web/internal/transport/http/ws"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load("")
	if err != nil {
		stdlog.Fatalf("config: %v", err)
	}

	log, flush := logger.New(logger.Options{
		Level:       cfg.Log.Level,
		JSON:        cfg.Log.JSON,
		AddCaller:   true,
		Development: !cfg.Log.JSON,
		Rotate: logger.FileRotate{
			Enable:     cfg.Log.Rotate.Enable,
			Filename:   cfg.Log.Rotate.Filename,
			MaxSizeMB:  cfg.Log.Rotate.MaxSizeMB,
			MaxBackups: cfg.Log.Rotate.MaxBackups,
			MaxAgeDays: cfg.Log.Rotate.MaxAgeDays,
			Compress:   cfg.Log.Rotate.Compress,
		},
	})
	defer flush()
	defer logger.RedirectStdLog(log, zapcore.InfoLevel)()
	if cfg.App.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = logger.ToWriter(log.Named("gin"), zapcore.DebugLevel)
	gin.DefaultErrorWriter = logger.ToWriter(log.Named("gin"), zapcore.ErrorLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// redis：token 存储或 profile 缓存用到时才连
	var rdb *redis.Client
	if cfg.NeedsRedis() {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pctx).Err()
		cancel()
		if err != nil {
			log.Fatal("redis ping", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		defer rdb.Close()
		log.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
	}

	var db *gorm.DB
	if cfg.Session.Driver == session.DriverGorm {
		db = mustOpenDB(cfg, log)
		log.Info("database connected", zap.String("driver", cfg.DB.Driver))
	}

	tokens, err := session.NewTokenStore(cfg.Session.Driver, rdb, db)
	if err != nil {
		log.Fatal("token store", zap.Error(err))
	}
	if gt, ok := tokens.(*session.GormTokens); ok && cfg.DB.AutoMigrate {
		if err := gt.Migrate(); err != nil {
			log.Fatal("automigrate failed", zap.Error(err))
		}
		log.Info("automigrate done")
	}

	client := backend.NewClient(backend.Options{
		BaseURL:  cfg.Backend.BaseURL,
		Timeout:  time.Duration(cfg.Backend.TimeoutSec) * time.Second,
		RetryMax: cfg.Backend.RetryMax,
		Logger:   log.Named("backend"),
	})
	var profiles session.ProfileFetcher = client
	if cfg.Backend.ProfileCacheTTLSec > 0 {
		profiles = backend.NewCachedProfiles(client, cache.NewFromClient(rdb),
			time.Duration(cfg.Backend.ProfileCacheTTLSec)*time.Second, log.Named("profile-cache"))
	}

	reg := session.NewRegistry(tokens, profiles, session.Options{
		RestoreTimeout: cfg.Session.RestoreTimeout(),
		TokenTTL:       cfg.Session.TTL(),
		IdleTTL:        cfg.Session.IdleTTL(),
	}, log.Named("session"))
	hub := ws.NewHub(log.Named("ws"))
	reg.AddListener(hub.Publish)
	go reg.Run(ctx, cfg.Session.SweepInterval())

	h := cfg.App.HTTP
	r := router.NewEngine(router.Deps{
		Log:      log,
		Registry: reg,
		JWT: &auth.JWTer{
			Secret: []byte(cfg.JWT.Secret),
			Issuer: cfg.JWT.Issuer,
			TTL:    cfg.Session.TTL(),
		},
		Cookie: mdw.CookieOptions{
			Name:   cfg.Session.CookieName,
			Domain: cfg.Session.CookieDomain,
			MaxAge: cfg.Session.TTL(),
			Secure: cfg.Session.Secure,
		},
		Auth:        client,
		Hub:         hub,
		CORSOrigins: h.CORSOrigins,
		Limits: router.Limits{
			RPS:           h.RPS,
			Burst:         h.Burst,
			LoginRPS:      h.LoginRPS,
			LoginBurst:    h.LoginBurst,
			MaxConcurrent: h.MaxConcurrent,
			MaxBodyBytes:  h.MaxBodyBytes,
			Timeout:       time.Duration(h.RequestTimeoutSec) * time.Second,
		},
	})

	addr := server.Addr(h.Host, h.Port)
	srv := server.BuildServer(addr, r,
		time.Duration(h.ReadTimeoutSec)*time.Second,
		time.Duration(h.WriteTimeoutSec)*time.Second,
		time.Duration(h.IdleTimeoutSec)*time.Second,
	)

	host4human := h.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(h.Port)
	log.Info("myduka web starting",
		zap.String("env", cfg.App.Env),
		zap.String("open", baseURL),
		zap.String("health", baseURL+"/health"),
		zap.String("backend", cfg.Backend.BaseURL),
		zap.String("session_driver", cfg.Session.Driver),
	)

	go func() {
		if err := server.StartHTTP(srv, log); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http start FAILED", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	hub.Close()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	log.Info("myduka web stopped gracefully")
}

func mustOpenDB(cfg *config.Config, l *zap.Logger) *gorm.DB {
	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
		Log:                l,
	})
	if err != nil {
		l.Fatal("db open", zap.Error(err))
	}
	return db
}
