package container

import (
	"context"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"movies-etl/internal/config"
	"movies-etl/internal/domains/catalog"
	catalogRepo "movies-etl/internal/domains/catalog/repository"
	"movies-etl/internal/domains/document"
	"movies-etl/internal/domains/etl"
	etlRepo "movies-etl/internal/domains/etl/repository"
	etlService "movies-etl/internal/domains/etl/service"
	"movies-etl/internal/infrastructure/cache"
	"movies-etl/internal/infrastructure/database"
	"movies-etl/internal/infrastructure/search"
	"movies-etl/pkg/logger"
)

const leaseKey = "etl:sync:lease"

// Container holds the application's dependency graph, built in order:
// config -> infrastructure -> repositories -> services.
type Container struct {
	Config  *config.Config
	DB      *database.PostgresDB
	Redis   *cache.RedisClient
	Elastic *search.ElasticClient

	// AsynqClient enqueues manual sync cycles from the ops surface.
	AsynqClient *asynq.Client

	CatalogRepo catalog.Repository
	Watermarks  etl.WatermarkStore
	Quarantine  etl.QuarantineStore

	SyncService etl.Service
}

// NewContainer initializes the whole dependency graph.
func NewContainer() (*Container, error) {
	log.Println("[Container] Initializing...")

	c := &Container{}
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c.Config = cfg
	logger.Init(cfg.App.Environment)

	dbConfig, err := config.LoadDatabaseConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load database config: %w", err)
	}
	c.DB = database.NewPostgresDB(dbConfig)
	if err := c.DB.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// The two pipeline-owned state tables; the catalog schema is an
	// external contract and is never provisioned here.
	if err := etlRepo.EnsureStateSchema(ctx, c.DB.Pool); err != nil {
		c.Cleanup()
		return nil, fmt.Errorf("failed to ensure state schema: %w", err)
	}

	c.Redis = cache.NewRedisClient(cfg.Redis.Host, cfg.Redis.Password, cfg.Redis.DB)
	if err := c.Redis.Connect(ctx); err != nil {
		c.Cleanup()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	c.Elastic, err = search.NewElasticClient(cfg.Elastic)
	if err != nil {
		c.Cleanup()
		return nil, err
	}
	if err := c.Elastic.Connect(ctx); err != nil {
		c.Cleanup()
		return nil, fmt.Errorf("failed to connect to elasticsearch: %w", err)
	}

	c.AsynqClient = asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Host,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Repositories.
	c.CatalogRepo = catalogRepo.NewPostgresRepository(c.DB.Pool)
	c.Watermarks = etlRepo.NewPostgresWatermarkStore(c.DB.Pool)
	c.Quarantine = etlRepo.NewPostgresQuarantineStore(c.DB.Pool)

	// Services.
	assembler := document.NewAssembler(c.CatalogRepo)
	writer := search.NewBulkWriter(c.Elastic, cfg.Sync.RetryMax, cfg.Sync.RetryDelay)
	lease := etlRepo.NewRedisLease(c.Redis.Client, leaseKey, cfg.Sync.LeaseTTL)

	c.SyncService = etlService.NewETLService(
		c.Watermarks,
		c.CatalogRepo,
		assembler,
		writer,
		c.Quarantine,
		lease,
		etlService.Config{
			BatchSize:   cfg.Sync.BatchSize,
			Workers:     cfg.Sync.Workers,
			CycleBudget: cfg.Sync.CycleBudget,
		},
	)

	log.Println("[Container] Initialized")
	return c, nil
}

// Cleanup tears the container down in reverse order. Safe on a partially
// built container.
func (c *Container) Cleanup() {
	log.Println("[Container] Cleaning up...")

	if c.AsynqClient != nil {
		if err := c.AsynqClient.Close(); err != nil {
			log.Printf("[Container] Failed to close asynq client: %v", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Printf("[Container] Failed to close redis: %v", err)
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			log.Printf("[Container] Failed to close database: %v", err)
		}
	}

	log.Println("[Container] Cleanup complete")
}
