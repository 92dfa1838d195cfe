package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/Zhima-Mochi/minishop-checkout/internal/config"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	domnotify "github.com/Zhima-Mochi/minishop-checkout/internal/domain/notification"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/notify/amqpnotify"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/notify/kafkanotify"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/notify/lognotify"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/redisstore"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StoreDriver {
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
		}
		products := redisstore.NewProductRepository(client)
		return &stores{
			products:  products,
			stock:     products,
			orders:    redisstore.NewOrderRepository(client),
			checkouts: redisstore.NewCheckoutRepository(client),
			close:     client.Close,
		}, nil
	default:
		products := memory.NewProductRepository()
		return &stores{
			products:  products,
			stock:     products,
			orders:    memory.NewOrderRepository(),
			checkouts: memory.NewCheckoutRepository(),
			close:     func() error { return nil },
		}, nil
	}
}

// seedCatalog loads a JSON array of products into the repository.
func seedCatalog(ctx context.Context, path string, repo catalog.Repository) error {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var products []*catalog.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	for _, p := range products {
		if err := repo.Save(ctx, p); err != nil {
			return fmt.Errorf("save product %q: %w", p.ID, err)
		}
	}
	return nil
}

func openNotifier(cfg *config.Config, logger observability.Logger) (domnotify.Notifier, error) {
	switch cfg.NotifyDriver {
	case config.NotifyAMQP:
		n, err := amqpnotify.Dial(cfg.AMQPURL, cfg.AMQPExchange, amqpDialRetries, amqpDialBackoff, logger)
		if err != nil {
			return nil, err
		}
		return n, nil
	case config.NotifyKafka:
		return kafkanotify.New(kafkanotify.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic)), nil
	default:
		return lognotify.New(logger), nil
	}
}
