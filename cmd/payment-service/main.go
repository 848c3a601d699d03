package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chiearnhub/payment-bridge/internal/payment-service/deposit"
	"github.com/chiearnhub/payment-bridge/internal/payment-service/gateway"
	httpapi "github.com/chiearnhub/payment-bridge/internal/payment-service/http"
	"github.com/chiearnhub/payment-bridge/internal/payment-service/notify"
	"github.com/chiearnhub/payment-bridge/internal/payment-service/repo"
	"github.com/chiearnhub/payment-bridge/internal/payment-service/ws"
	"github.com/chiearnhub/payment-bridge/internal/shared/cache"
	"github.com/chiearnhub/payment-bridge/internal/shared/config"
	"github.com/chiearnhub/payment-bridge/internal/shared/kafka"
	"github.com/chiearnhub/payment-bridge/internal/shared/logger"
	"github.com/chiearnhub/payment-bridge/internal/shared/metrics"
)

func main() {
	// .env é opcional; variáveis do ambiente têm precedência
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}
	log.Info("starting service", zap.String("store", cfg.StoreDriver), zap.String("env", cfg.Env))

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// store transacional (postgres | mongo | memory)
	store, err := repo.Open(ctx, cfg)
	if err != nil {
		log.Fatal("store open", zap.Error(err))
	}
	defer store.Close()
	log.Info("store ready", zap.String("driver", cfg.StoreDriver))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pm := metrics.NewPayments(reg)

	gw := gateway.New(
		cfg.Gateway.BaseURL,
		cfg.Gateway.APIKey,
		cfg.Gateway.BusinessID,
		cfg.Gateway.CallbackURL,
		cfg.Gateway.RedirectURL,
		cfg.Gateway.Timeout,
	)
	gw.Observe = pm.OnGatewayCall

	var notifiers notify.Multi
	var redisClient *redis.Client
	var redisNotifier *notify.Redis
	if cfg.RedisAddr != "" {
		redisClient, err = cache.ConnectRedis(cfg.RedisAddr)
		if err != nil {
			log.Fatal("failed to connect redis", zap.Error(err))
		}
		defer redisClient.Close()
		redisNotifier = notify.NewRedis(log, redisClient, cfg.RedisUpdatesChannel, cfg.ProcessedMarkerTTL)
		notifiers = append(notifiers, redisNotifier)
		log.Info("redis connected")
	}
	if cfg.KafkaBrokers != "" {
		initiated := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicDepositInitiated)
		defer initiated.Close()
		approved := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicDepositApproved)
		defer approved.Close()
		notifiers = append(notifiers, notify.NewKafkaPublisher(log, initiated, approved))
		log.Info("kafka writers ready",
			zap.String("initiated", cfg.TopicDepositInitiated),
			zap.String("approved", cfg.TopicDepositApproved),
		)
	}

	svc := deposit.NewService(log, store, gw, notifiers, cfg.MinDeposit)
	svc.OnInit = pm.OnInit
	svc.OnReconcile = pm.OnReconcile
	svc.OnCredit = pm.OnCredit

	api := httpapi.NewServer(log, svc)
	if redisClient != nil {
		api.Cache = redisNotifier

		// feed websocket depende do pubsub do Redis
		hub := ws.NewHub(func(r *http.Request) bool { return true })
		ws.StartRedisSubscriber(ctx, log, redisClient, cfg.RedisUpdatesChannel, hub)
		metrics.RegisterWSConnections(reg, hub.Connections)
		api.WS = hub.HandleWS
	}

	// healthz: valida dependências críticas
	health := func(ctx context.Context) error {
		if err := store.Ping(ctx); err != nil {
			return fmt.Errorf("store: %w", err)
		}
		if redisClient != nil {
			if err := redisClient.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, reg, health, func(err error) {
		log.Fatal("metrics srv", zap.Error(err))
	})
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("api listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("api srv", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("payment-service stopped")
}
