package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"admin-alerts/api"
	"admin-alerts/broadcast"
	"admin-alerts/ingest"
	"admin-alerts/internal/config"
	"admin-alerts/orders"
	"admin-alerts/storage"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.WithError(err).Warn("tracer shutdown")
		}
	}()

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	hub := broadcast.NewHub(cfg.StreamBuffer)
	var publisher orders.Publisher = hub
	if cfg.RedisURL != "" {
		rc := redis.NewClient(config.RedisOptions(cfg.RedisURL))
		defer rc.Close()
		if err := rc.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis: %v", err)
		}
		bridge := broadcast.NewRedisBridge(rc, hub, cfg.RedisChannel)
		go bridge.Run(ctx)
		publisher = bridge
		store = storage.NewCache(store, rc, cfg.CacheTTL)
		log.WithField("channel", cfg.RedisChannel).Info("redis fan-out enabled")
	}
	svc := orders.NewService(store, publisher)

	if cfg.StorageDriver == config.DriverTable && cfg.OrdersQueue != "" {
		queue, err := ingest.NewAzureQueue(cfg.ConnectionString, cfg.OrdersQueue, cfg.QueueVisibility)
		if err != nil {
			log.Fatalf("queue: %v", err)
		}
		go ingest.NewConsumer(queue, svc).Run(ctx)
		log.WithField("queue", cfg.OrdersQueue).Info("order queue consumer started")
	}

	auth, err := newAuth(cfg.Auth)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	api.Register(e, svc, hub, auth, api.Options{
		Logger:       log.StandardLogger(),
		WebhookToken: cfg.WebhookToken,
		Heartbeat:    cfg.Heartbeat,
	})

	go func() {
		if err := e.Start(cfg.ListenAddr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()
	log.WithField("addr", cfg.ListenAddr()).Info("alert server started")

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown")
	}
}

func openStore(cfg config.Server) (storage.OrderStore, error) {
	switch strings.ToLower(cfg.StorageDriver) {
	case config.DriverPostgres:
		pg, err := storage.OpenPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := pg.Ping(ctx); err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return pg, nil
	case config.DriverMemory:
		log.Warn("using in-memory order store")
		return storage.NewMemoryStore(), nil
	default:
		return storage.NewTableStore(cfg.ConnectionString, cfg.OrdersTable)
	}
}

func newAuth(cfg config.Auth) (*api.Auth, error) {
	switch {
	case cfg.Disabled:
		log.Warn("authentication disabled")
		return api.NewAuth(api.AuthConfig{Disabled: true}), nil
	case cfg.LocalSecret != "":
		return api.NewAuth(api.AuthConfig{Secret: []byte(cfg.LocalSecret), Audience: cfg.Audience}), nil
	}
	jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", cfg.Domain)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
	if err != nil {
		return nil, fmt.Errorf("jwks: %w", err)
	}
	return api.NewAuth(api.AuthConfig{JWKS: jwks, Audience: cfg.Audience, Issuer: "https://" + cfg.Domain + "/"}), nil
}
