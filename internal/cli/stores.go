package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"skillquiz-service/internal/app"
	"skillquiz-service/internal/config"
	"skillquiz-service/internal/infra/memory"
	mongostore "skillquiz-service/internal/infra/mongo"
	"skillquiz-service/internal/infra/postgres"
	redisstore "skillquiz-service/internal/infra/redis"
)

// stores groups the persistence adapters for one storage backend.
type stores struct {
	community app.CommunityQuizStore
	results   app.ResultStore
	profiles  app.ProfileStore
	close     func()
}

func openStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (stores, error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		applied, err := postgres.Migrate(ctx, cfg.Postgres.URL)
		if err != nil {
			return stores{}, err
		}
		if len(applied) > 0 {
			logger.Info("migrations applied", "migrations", applied)
		}
		pool, err := postgres.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return stores{}, err
		}
		logger.Info("using postgres storage")
		return stores{
			community: postgres.NewCommunityStore(pool),
			results:   postgres.NewResultStore(pool),
			profiles:  postgres.NewProfileStore(pool),
			close:     pool.Close,
		}, nil

	case config.BackendMongo:
		client, db, err := mongostore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return stores{}, err
		}
		if err := mongostore.EnsureIndexes(ctx, db); err != nil {
			logger.Warn("mongo indexes not created", "error", err)
		}
		logger.Info("using mongo storage", "database", cfg.Mongo.Database)
		return stores{
			community: mongostore.NewCommunityStore(db),
			results:   mongostore.NewResultStore(db),
			profiles:  mongostore.NewProfileStore(db),
			close: func() {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := client.Disconnect(ctx); err != nil {
					logger.Warn("mongo disconnect failed", "error", err)
				}
			},
		}, nil

	case config.BackendMemory:
		logger.Info("using in-memory storage")
		return stores{
			community: memory.NewCommunityStore(),
			results:   memory.NewResultStore(),
			profiles:  memory.NewProfileStore(),
			close:     func() {},
		}, nil
	}
	return stores{}, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

func openRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	if cfg.Redis.Addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// cachedCommunity puts a read cache in front of the community store: Redis when
// configured, otherwise an in-process TTL cache.
func cachedCommunity(client *redis.Client, backing app.CommunityQuizStore, ttl time.Duration) app.CommunityQuizStore {
	if client != nil {
		return redisstore.NewQuizRepository(client, backing, ttl)
	}
	return memory.NewQuizRepository(backing, ttl)
}

func sessionRepository(client *redis.Client, ttl time.Duration, opts ...app.SessionOption) app.SessionRepository {
	if client != nil {
		return redisstore.NewSessionStore(client, ttl, opts...)
	}
	return memory.NewSessionStore(opts...)
}
