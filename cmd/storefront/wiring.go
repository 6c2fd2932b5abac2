package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"storefront/internal/app/commands"
	chatapp "storefront/internal/app/handlers/chat"
	"storefront/internal/app/middleware"
	appoutbox "storefront/internal/app/outbox"
	"storefront/internal/app/policies"
	"storefront/internal/app/queries"
	"storefront/internal/app/uow"
	"storefront/internal/infra/broker/kafka"
	"storefront/internal/infra/catalogsync"
	"storefront/internal/infra/config"
	mongostore "storefront/internal/infra/db/mongo"
	ginserver "storefront/internal/infra/http/gin"
	"storefront/internal/infra/obs"
	infraoutbox "storefront/internal/infra/outbox"
	"storefront/internal/infra/security"
	"storefront/internal/infra/storage/memory"
	"storefront/internal/infra/storage/s3"
)

type catalogStore interface {
	policies.ProductCatalog
	policies.ProductProjection
}

type relayOutbox interface {
	appoutbox.Outbox
	appoutbox.Source
	Wake() <-chan struct{}
}

// infrastructure holds the storage adapters selected by STORAGE_MODE.
type infrastructure struct {
	factory     uow.UoWFactory
	directory   policies.ParticipantDirectory
	catalog     catalogStore
	outbox      relayOutbox
	idempotency middleware.IdempotencyStore
	inbox       catalogsync.Inbox
	checks      map[string]obs.Check
	closers     []func(ctx context.Context) error
}

func buildInfrastructure(ctx context.Context, cfg config.Config, logger *slog.Logger) (*infrastructure, error) {
	infra := &infrastructure{checks: map[string]obs.Check{}}
	fixtures, seeded := loadFixtures(cfg.FixturesPath, logger)
	switch cfg.StorageMode {
	case config.StorageMongo:
		client, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		infra.closers = append(infra.closers, client.Close)
		if err := client.EnsureIndexes(ctx, cfg.IdempotencyTTL); err != nil {
			infra.close(logger, cfg.ShutdownTimeout)
			return nil, err
		}
		infra.factory = mongostore.NewFactory(client.DB)
		infra.directory = mongostore.NewDirectory(client.DB)
		infra.catalog = mongostore.NewCatalog(client.DB)
		infra.outbox = infraoutbox.NewStore(client.DB)
		infra.idempotency = mongostore.NewIdempotencyStore(client.DB, cfg.IdempotencyTTL)
		infra.inbox = mongostore.NewInbox(client.DB, cfg.KafkaConsumerGroup)
		infra.checks["mongo"] = client.Ping
		logger.Info("mongo storage ready", "database", cfg.MongoDB)
	default:
		box := memory.NewOutbox(0)
		directory := memory.NewDirectory()
		infra.factory = memory.NewStore(box)
		infra.directory = directory
		infra.catalog = memory.NewCatalog()
		infra.outbox = box
		infra.idempotency = memory.NewIdempotencyStore(cfg.IdempotencyTTL)
		infra.inbox = memory.NewInbox()
		for _, p := range fixtures.Profiles() {
			directory.Put(p)
		}
		logger.Info("in-memory storage ready")
	}
	if seeded {
		seedCatalog(ctx, infra.catalog, fixtures, logger)
	}
	return infra, nil
}

func (i *infrastructure) close(logger *slog.Logger, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for n := len(i.closers) - 1; n >= 0; n-- {
		if err := i.closers[n](ctx); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
	i.closers = nil
}

func loadFixtures(path string, logger *slog.Logger) (memory.Fixtures, bool) {
	if path == "" {
		return memory.Fixtures{}, false
	}
	fixtures, err := memory.LoadFixtures(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("fixtures file not found, skipping", "path", path)
		} else {
			logger.Warn("fixtures load failed", "path", path, "error", err)
		}
		return memory.Fixtures{}, false
	}
	return fixtures, true
}

func seedCatalog(ctx context.Context, catalog policies.ProductProjection, fixtures memory.Fixtures, logger *slog.Logger) {
	for _, p := range fixtures.Products() {
		if err := catalog.UpsertProduct(ctx, p); err != nil {
			logger.Error("fixture product rejected", "product_id", p.ID, "error", err)
		}
	}
}

type relayRunner interface {
	Run(ctx context.Context) error
}

type catalogConsumer interface {
	Run(ctx context.Context, topics []string) error
}

type application struct {
	handlers ginserver.Handlers
	relay    relayRunner
	consumer catalogConsumer
}

func buildApplication(cfg config.Config, infra *infrastructure, metrics *obs.Metrics, logger *slog.Logger) application {
	deps := chatapp.Dependencies{
		UoWFactory: infra.factory,
		Directory:  infra.directory,
		Catalog:    infra.catalog,
		Outbox:     infra.outbox,
		Encoder:    appoutbox.JSONEventEncoder{},
		Logger:     logger,
	}
	commandBus := commands.NewInMemoryBus()
	queryBus := queries.NewInMemoryBus()
	chatapp.Register(commandBus, queryBus, deps)

	validator := middleware.NewStructValidator()
	cmds := middleware.ChainCommands(commandBus,
		middleware.Logging(logger, metrics),
		middleware.Authorization(middleware.CallerRequired{}),
		middleware.Validation(validator),
		middleware.Idempotency(infra.idempotency, nil),
		middleware.OutboxFlush(infra.outbox, logger),
		middleware.Transaction(infra.factory, nil, 3),
	)
	qs := middleware.ChainQueries(queryBus,
		middleware.QueryLogging(logger, metrics),
		middleware.QueryAuthorization(middleware.CallerRequired{}),
		middleware.QueryValidation(validator),
	)

	tokens := security.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer)
	handlers := ginserver.Handlers{
		Chat:           ginserver.ChatHandler{Commands: cmds, Queries: qs, Logger: logger},
		AuthMiddleware: ginserver.AuthMiddleware{Verifier: tokens, Logger: logger}.Handle,
		Metrics:        metrics,
	}
	if store, ok := buildAttachmentStore(cfg, infra, logger); ok {
		handlers.Attachments = ginserver.AttachmentHandler{Queries: qs, Store: store, Logger: logger}
	}

	app := application{handlers: handlers}
	var producer infraoutbox.Producer = infraoutbox.LogProducer{Logger: logger}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			logger.Error("kafka producer unavailable, events will be logged only", "error", err)
		} else {
			producer = kp
			infra.closers = append(infra.closers, func(context.Context) error { return kp.Close() })
		}
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaConsumerGroup, nil, catalogsync.Handler{
			Projection: infra.catalog,
			Inbox:      infra.inbox,
			Logger:     logger,
			Observer:   metrics,
		}, logger)
		if err != nil {
			logger.Error("catalog consumer unavailable", "error", err)
		} else {
			app.consumer = consumer
			infra.closers = append(infra.closers, func(context.Context) error { return consumer.Close() })
		}
	}
	app.relay = &infraoutbox.Worker{
		Source:      infra.outbox,
		Producer:    producer,
		Wake:        infra.outbox.Wake(),
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Backoff:     cfg.RetryBackoff,
		Logger:      logger,
		Observer:    metrics,
	}
	return app
}

func buildAttachmentStore(cfg config.Config, infra *infrastructure, logger *slog.Logger) (ginserver.AttachmentStore, bool) {
	if cfg.S3Endpoint == "" {
		logger.Info("attachment uploads disabled, S3_ENDPOINT not set")
		return nil, false
	}
	client, err := s3.NewClient(s3.Options{
		Endpoint:       cfg.S3Endpoint,
		PublicEndpoint: cfg.S3PublicEndpoint,
		AccessKey:      cfg.S3AccessKey,
		SecretKey:      cfg.S3SecretKey,
		Bucket:         cfg.S3Bucket,
		UseSSL:         cfg.S3UseSSL,
	}, logger)
	if err != nil {
		logger.Error("attachment uploads disabled", "error", err)
		return nil, false
	}
	infra.checks["s3"] = client.Ping
	return client, true
}
