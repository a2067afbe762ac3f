package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"CollabProject/global"
	"CollabProject/logger"
	mid "CollabProject/middleware"
	midsec "CollabProject/middleware/security"
	"CollabProject/service/gateway"
	"CollabProject/service/kafka"
	"CollabProject/service/mgo"
	"CollabProject/service/natsx"
	"CollabProject/service/storage"
	redisdb "CollabProject/service/storage/redis"
	"CollabProject/tools/security"
)

func main() {
	configPath := flag.String("config", "", "optional yaml config file")
	flag.Parse()

	cfg := global.MustLoad(*configPath)
	logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared cache. The gateway serves degraded without it, so a failed
	// init is logged rather than fatal.
	if cfg.Redis.Addr != "" {
		if err := redisdb.InitRedis(redisdb.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		}); err != nil {
			logger.Warnf("redis unavailable, running degraded: %v", err)
		}
	}

	// Broadcast relay. Without configured servers the gateway runs
	// single-process and relays nowhere. When servers are set, a failed
	// start is fatal: a half-connected relay silently drops rooms.
	var bus gateway.Bus = gateway.NopBus{}
	if len(cfg.Nats.Servers) > 0 {
		// The bus route must exist before StartNats so the pending-route
		// cache applies it during start.
		nb, err := gateway.NewNatsBus(cfg.Nats.Subject)
		if err != nil {
			log.Fatalf("relay route: %v", err)
		}
		natsx.UseGlobalMiddlewares(natsx.NatsxIdemMiddleware(natsx.NewMemIdem(10*time.Minute), 10*time.Minute))
		if err := natsx.StartNats(natsx.NatsxConfig{
			Servers: cfg.Nats.Servers,
			Name:    cfg.Nats.Name,
		}); err != nil {
			log.Fatalf("nats start: %v", err)
		}
		bus = nb
	}

	// Domain event sink.
	var emitter gateway.Emitter = gateway.NopEmitter{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafka.Cfg.Brokers = cfg.Kafka.Brokers
		kafka.Cfg.Topic = cfg.Kafka.Topic
		kafka.Cfg.Compression = cfg.Kafka.Compression
		kafka.Cfg.Retries = cfg.Kafka.Retries
		kafka.Cfg.EnsureTopic = cfg.Kafka.EnsureTopic
		kafka.Cfg.Partitions = cfg.Kafka.Partitions
		kafka.Cfg.ReplicationFactor = cfg.Kafka.ReplicationFactor
		if err := kafka.Start(kafka.Cfg); err != nil {
			logger.Warnf("kafka unavailable, events disabled: %v", err)
		} else {
			emitter = gateway.NewKafkaEmitter()
		}
	}

	// Session audit log, connected in the background.
	if cfg.Mongo.URI != "" {
		mgo.SetCollection(cfg.Mongo.Collection)
		mgo.StartAsync(ctx, &mgo.Config{
			Uri:         cfg.Mongo.URI,
			Database:    cfg.Mongo.Database,
			Collection:  cfg.Mongo.Collection,
			Username:    cfg.Mongo.Username,
			Password:    cfg.Mongo.Password,
			MaxPoolSize: cfg.Mongo.MaxPoolSize,
			MaxRetry:    cfg.Mongo.MaxRetry,
		})
	}

	verifier := gateway.NewJWTVerifier(security.Options{
		Secret: []byte(cfg.Auth.Secret),
		Alg:    cfg.Auth.Alg,
		TTL:    cfg.Auth.TTL,
	}, storage.NewDenylist())

	gw, err := gateway.NewServer(cfg.Gateway, gateway.Deps{
		Sessions: storage.NewSessions(cfg.Gateway.SessionTTL),
		Rates:    storage.NewRates(),
		Verifier: verifier,
		Emitter:  emitter,
		Bus:      bus,
	})
	if err != nil {
		log.Fatalf("gateway init: %v", err)
	}
	gw.Start()

	// The upgrade route runs the registered chain: per-IP throttle, origin
	// allowlist, credential extraction. Order matters; cheap checks first.
	upgrades := mid.NewIPLimiter(cfg.Gateway.UpgradePerSec, cfg.Gateway.UpgradeBurst)
	mid.Manager().Add(mid.Throttle(upgrades))
	if len(cfg.Gateway.AllowedOrigins) > 0 {
		mid.Manager().Add(mid.Origin(cfg.Gateway.AllowedOrigins))
	}
	mid.Manager().Add(midsec.Middleware(midsec.DefaultOptions()))

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET(cfg.Server.WSPath, mid.Manager().Wrap(gw.HandleWS)...)
	mid.GET(r, "/healthz", gw.HandleHealthz, mid.RouteOpt{IsAuth: false})
	mid.GET(r, "/stats", gw.HandleStats, mid.RouteOpt{IsAuth: true})

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: r}
	go func() {
		logger.Infof("gateway %s listening on %s (ws path %s)", gw.GatewayID(), cfg.Server.Addr, cfg.Server.WSPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	gw.Close(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	if err := natsx.StopNats(); err != nil {
		logger.Warnf("nats shutdown: %v", err)
	}
	if err := kafka.Close(); err != nil {
		logger.Warnf("kafka shutdown: %v", err)
	}
	if err := redisdb.CloseRedis(); err != nil {
		logger.Warnf("redis shutdown: %v", err)
	}
	logger.Infof("gateway stopped")
}
