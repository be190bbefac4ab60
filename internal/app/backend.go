package app

import (
	"context"
	"database/sql"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/marky/internal/config"
	"github.com/MrSnakeDoc/marky/internal/database"
	"github.com/MrSnakeDoc/marky/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marky/internal/logger"
	"github.com/MrSnakeDoc/marky/internal/netutil"
	"github.com/MrSnakeDoc/marky/internal/notify"
	"github.com/MrSnakeDoc/marky/internal/redis"
	"github.com/MrSnakeDoc/marky/internal/scheduler"
	"github.com/MrSnakeDoc/marky/internal/store"
	"github.com/MrSnakeDoc/marky/internal/store/local"
	redisstore "github.com/MrSnakeDoc/marky/internal/store/redis"
	"github.com/MrSnakeDoc/marky/internal/store/sqlstore"
)

// backend is the selected bookmark store with its change broker and
// whatever it holds open.
type backend struct {
	name        string
	store       store.Store
	broker      notify.Broker
	ready       deps.ReadyCheck
	watcher     *scheduler.SlotWatcher // local only, nil when disabled
	redisClient *goredis.Client        // redis only
	db          *sql.DB                // sqlite only
}

func openBackend(ctx context.Context, cfg *config.Config, log logger.Logger) (*backend, error) {
	switch cfg.Backend {
	case store.BackendLocal:
		return openLocal(cfg, log)
	case store.BackendSQLite:
		return openSQLite(ctx, cfg, log)
	case store.BackendRedis:
		return openRedis(ctx, cfg, log)
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func openLocal(cfg *config.Config, log logger.Logger) (*backend, error) {
	slot := local.NewFileSlot(cfg.LocalDir)
	broker := notify.NewMemoryBroker()

	b := &backend{
		name:   store.BackendLocal,
		store:  local.New(slot, local.WithBroker(broker)),
		broker: broker,
		ready: func(context.Context) error {
			_, _, err := slot.Get(local.SlotKey)
			return err
		},
	}

	if cfg.WatchLocal {
		w, err := scheduler.NewSlotWatcher(slot.Path(local.SlotKey), broker, log, scheduler.DefaultDebounce)
		if err != nil {
			_ = broker.Close()
			return nil, err
		}
		b.watcher = w
	}

	log.Info("local bookmark slot selected",
		logger.String("path", slot.Path(local.SlotKey)),
		logger.Bool("watch", cfg.WatchLocal))
	return b, nil
}

func openSQLite(ctx context.Context, cfg *config.Config, log logger.Logger) (*backend, error) {
	db, err := database.Open(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}

	broker := notify.NewMemoryBroker()
	st, err := sqlstore.New(ctx, db,
		sqlstore.WithBroker(broker),
		sqlstore.WithStrictDelete(cfg.StrictDelete))
	if err != nil {
		_ = broker.Close()
		_ = db.Close()
		return nil, err
	}

	log.Info("sqlite bookmark table selected",
		logger.String("path", cfg.SQLitePath),
		logger.Bool("strict_delete", cfg.StrictDelete))
	return &backend{
		name:   store.BackendSQLite,
		store:  st,
		broker: broker,
		ready:  db.PingContext,
		db:     db,
	}, nil
}

func openRedis(ctx context.Context, cfg *config.Config, log logger.Logger) (*backend, error) {
	// fail fast if unavailable
	client, err := redis.New(ctx, redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// changes travel through redis so every replica reconciles
	broker := notify.NewRedisBroker(client)
	st := redisstore.NewStore(client,
		redisstore.WithBroker(broker),
		redisstore.WithStrictDelete(cfg.StrictDelete))

	log.Info("redis bookmark store selected",
		logger.String("addr", cfg.RedisAddr),
		logger.Int("db", cfg.RedisDB))
	return &backend{
		name:   store.BackendRedis,
		store:  st,
		broker: broker,
		ready: func(ctx context.Context) error {
			return redis.Healthy(ctx, client, cfg.RedisPingTimeout)
		},
		redisClient: client,
	}, nil
}

// close releases the broker and connections. The watcher is stopped by
// the app before this runs.
func (b *backend) close(log logger.Logger) {
	if err := b.broker.Close(); err != nil {
		log.Warn("failed to close change broker", logger.Error(err))
	}
	if b.db != nil {
		netutil.CloseLogged(b.db, log, "sqlite")
	}
	if b.redisClient != nil {
		if err := b.redisClient.Close(); err != nil {
			log.Warnf("failed to close redis: %v", err)
		} else {
			log.Info("✅ Redis closed cleanly")
		}
	}
}
