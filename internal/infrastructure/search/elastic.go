package search

import (
	"context"
	"fmt"
	"log"

	"github.com/elastic/go-elasticsearch/v8"

	"movies-etl/internal/config"
)

// ElasticClient wraps the Elasticsearch client and the target index name.
type ElasticClient struct {
	Client *elasticsearch.Client
	Index  string
}

func NewElasticClient(cfg config.ElasticConfig) (*ElasticClient, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		// The bulk writer owns the retry policy; the transport must not
		// stack its own retries on top.
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	return &ElasticClient{
		Client: client,
		Index:  cfg.Index,
	}, nil
}

func (e *ElasticClient) Connect(ctx context.Context) error {
	log.Println("[ELASTIC] Connecting to Elasticsearch...")

	if err := e.HealthCheck(ctx); err != nil {
		return err
	}

	log.Println("[ELASTIC] Connected successfully")
	return nil
}

func (e *ElasticClient) HealthCheck(ctx context.Context) error {
	if e.Client == nil {
		return fmt.Errorf("elasticsearch client is not initialized")
	}

	res, err := e.Client.Ping(e.Client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping returned %s", res.Status())
	}

	return nil
}
