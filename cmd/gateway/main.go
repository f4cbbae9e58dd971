package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/config"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/handlers"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/media"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/repository"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/services"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/webhook"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/whatsapp"
	xhttp "github.com/thameeshasirimanna-dev/whatsbi-sub002/pkg/http"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/pkg/logger"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/pkg/objstore"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/pkg/pg"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/pkg/prom"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 30))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	store, err := objstore.NewFromConfig(
		context.Background(),
		config.Get().AWSRegion,
		config.Get().MediaBucket,
		config.Get().MediaPublicURL,
	)
	if err != nil {
		logger.Error("failed creating object store", "error", err)
		return
	}

	graphConf := whatsapp.DefaultConfig(config.Get().GraphBaseURL)
	graphConf.Timeout = config.Get().GraphRequestTimeout
	provider, err := whatsapp.NewClient(graphConf)
	if err != nil {
		logger.Error("failed creating whatsapp client", "error", err)
		return
	}

	agentRepo := repository.NewAgentRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	deliveryLogRepo := repository.NewDeliveryLogRepository(db)

	mirror := media.NewMirror(provider, store)

	// services
	policy := services.NewPolicyEngine(templateRepo)
	messageService := services.NewMessageService(
		agentRepo,
		customerRepo,
		conversationRepo,
		deliveryLogRepo,
		provider,
		mirror,
		policy,
	)
	healthService := services.NewHealthService(db)

	// inbound pipeline
	dedup := webhook.NewDeduper(redisAdap, config.Get().WebhookDedupTTL)
	notifier := webhook.NewPoolNotifier(
		config.Get().NotifyBufferSize,
		config.Get().NotifyWorkers,
		config.Get().NotifyTimeout,
	)
	go notifier.Start()

	processor := webhook.NewProcessor(webhook.Config{
		VerifyToken:   config.Get().WebhookVerifyToken,
		AppSecret:     config.Get().WebhookAppSecret,
		AllowUnsigned: config.Get().WebhookAllowUnsigned,
	}, agentRepo, customerRepo, conversationRepo, deliveryLogRepo, mirror, dedup, notifier)

	// v1 handlers
	messageHandler := handlers.NewMessageHandler(messageService)
	healthHandler := handlers.NewHealthHandler(healthService)
	webhookHandler := handlers.NewWebhookHandler(processor)

	g := s.Router.Group("/api/v1")
	handlers.RegisterMessageRoutes(g, messageHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)
	handlers.RegisterWebhookRoutes(s.Router, webhookHandler)

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	go func() {
		prom.ListenAndServer(":9100", "/metrics")
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		notifier.Stop()
		s.Shutdown()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
