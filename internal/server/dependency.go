// Package server is the composition root: it wires storage, the
// orchestrator backend, the event bus, and every domain package (pool,
// queue, quota, deploy, recovery, rpc) into one running process,
// grounded on the reference layout's server package (Dependency + Server
// split, asynq-backed background processing).
package server

import (
	"context"
	"fmt"
	"log/slog"

	"botfleet/internal/config"
	"botfleet/internal/storage"

	"github.com/docker/docker/client"
	"github.com/go-pg/pg/v10"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Dependency owns every infrastructure handle the composition root wires
// domain packages against.
type Dependency struct {
	Docker      *client.Client
	Redis       *redis.Client
	PG          *pg.DB
	AsynqClient *asynq.Client
	AsynqRedis  asynq.RedisClientOpt
	Logger      *slog.Logger
}

// InitDeps connects to every backing service and runs pending migrations.
// The docker client is only required when cfg.Orchestrator.Backend is
// "docker" — the local-development bypass (§4.4 step 3) needs neither it
// nor a running daemon.
func InitDeps(ctx context.Context, cfg *config.Config, migrationsDir string, logger *slog.Logger) (*Dependency, error) {
	var dockerClient *client.Client
	if cfg.Orchestrator.Backend == "docker" {
		var err error
		dockerClient, err = client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return nil, fmt.Errorf("docker client: %w", err)
		}
		if _, err := dockerClient.Ping(ctx); err != nil {
			dockerClient.Close()
			return nil, fmt.Errorf("docker ping: %w", err)
		}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		closeDocker(dockerClient)
		return nil, fmt.Errorf("redis ping (%s): %w", cfg.Redis.Addr, err)
	}

	pgDB := pg.Connect(&pg.Options{
		Addr:     cfg.Postgres.Addr,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		Database: cfg.Postgres.Database,
	})
	if _, err := pgDB.Exec("SELECT 1"); err != nil {
		redisClient.Close()
		closeDocker(dockerClient)
		return nil, fmt.Errorf("postgres ping (%s): %w", cfg.Postgres.Addr, err)
	}

	databaseURL := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Addr, cfg.Postgres.Database)
	if err := storage.RunMigrations(databaseURL, migrationsDir); err != nil {
		pgDB.Close()
		redisClient.Close()
		closeDocker(dockerClient)
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	asynqRedisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	}
	asynqClient := asynq.NewClient(asynqRedisOpt)

	return &Dependency{
		Docker:      dockerClient,
		Redis:       redisClient,
		PG:          pgDB,
		AsynqClient: asynqClient,
		AsynqRedis:  asynqRedisOpt,
		Logger:      logger,
	}, nil
}

func closeDocker(c *client.Client) {
	if c != nil {
		c.Close()
	}
}

func (d *Dependency) Close() {
	if d.AsynqClient != nil {
		d.AsynqClient.Close()
	}
	if d.PG != nil {
		d.PG.Close()
	}
	if d.Redis != nil {
		d.Redis.Close()
	}
	closeDocker(d.Docker)
}
