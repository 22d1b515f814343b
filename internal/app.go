package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ak7sky/popmatch/internal/config"
	"github.com/ak7sky/popmatch/internal/core"
	"github.com/ak7sky/popmatch/internal/core/service"
	"github.com/ak7sky/popmatch/internal/core/storage/mem"
	"github.com/ak7sky/popmatch/internal/core/storage/redisstore"
	grpcserver "github.com/ak7sky/popmatch/internal/grpc/server"
	"github.com/ak7sky/popmatch/internal/logger"
	"github.com/ak7sky/popmatch/internal/output"
	"github.com/redis/go-redis/v9"
)

var ErrLocalRedis = errors.New("refusing to load the pop map from a local redis without force")

const redisPingAttempts = 3

type MatchParams struct {
	Source     core.RelaySource
	RequirePop bool
	Out        io.Writer
}

// RunMatch loads the pop map, matches every relay of params.Source and
// writes the records to params.Out.
func RunMatch(ctx context.Context, cfg *config.Config, params MatchParams, appLogger logger.Logger) error {
	msrv, closeStorage, err := newMatchService(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer closeStorage()

	relays, err := params.Source.Relays(ctx)
	if err != nil {
		return err
	}
	appLogger.Info("matching %d relays", len(relays))

	records, stats, err := msrv.MatchRelays(ctx, relays, params.RequirePop)
	if err != nil {
		return err
	}
	if err = output.WriteRecords(params.Out, records); err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}

	appLogger.Info(
		"relays processed: %d, matches found: %d, unmatched: %d, matched missing pop: %d, excluded: %d",
		stats.Total, stats.Matched, stats.UnmatchedIP, stats.UnmatchedPop, stats.Excluded,
	)
	return nil
}

// RunServe loads the pop map and serves match queries over gRPC until ctx is done.
func RunServe(ctx context.Context, cfg *config.Config, appLogger logger.Logger) error {
	msrv, closeStorage, err := newMatchService(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer closeStorage()

	appServer := grpcserver.Start(msrv, appLogger, cfg.GRPC.Addr, cfg.GRPC.ShutdownTimeout)

	var serveErr error
	select {
	case <-ctx.Done():
		appLogger.Info("app stops: %v", context.Cause(ctx))
	case serveErr = <-appServer.ErrCh():
		appLogger.Error("app stops after an err %v", serveErr)
	}

	if err = appServer.Shutdown(); err != nil {
		appLogger.Error("app stopped with err %v", err)
	}
	return serveErr
}

func newMatchService(ctx context.Context, cfg *config.Config, appLogger logger.Logger) (*service.MatchService, func(), error) {
	storage, closeStorage, err := newStorage(ctx, cfg, appLogger)
	if err != nil {
		return nil, nil, err
	}

	excluded, err := cfg.ExcludedSet()
	if err != nil {
		closeStorage()
		return nil, nil, err
	}

	msrv := service.New(storage, service.Options{
		Workers:      cfg.Match.Workers,
		Excluded:     excluded,
		PopCacheSize: cfg.Match.PopCacheSize,
		PopCacheTTL:  cfg.Match.PopCacheTTL,
	}, appLogger)
	if err = msrv.Load(ctx); err != nil {
		closeStorage()
		return nil, nil, err
	}
	return msrv, closeStorage, nil
}

func newStorage(ctx context.Context, cfg *config.Config, appLogger logger.Logger) (core.PopMapStorage, func(), error) {
	if cfg.PopMap.File != "" {
		storage, err := mem.LoadPopMapFile(cfg.PopMap.File, appLogger)
		if err != nil {
			return nil, nil, err
		}
		return storage, func() {}, nil
	}

	if cfg.IsLocalRedis() && !cfg.Redis.ForceLocal {
		appLogger.Warn("loading the whole pop map takes a lot of memory and probably should not run next to a local redis; force it if you know what you are doing")
		return nil, nil, fmt.Errorf("%w: %s", ErrLocalRedis, cfg.Redis.Addr)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		Password: cfg.Redis.Password,
	})
	storage := redisstore.New(client, cfg.Redis.IPListKey, appLogger)
	if err := storage.Ping(ctx, redisPingAttempts); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis %s: %w", cfg.Redis.Addr, err)
	}

	return storage, func() {
		if err := client.Close(); err != nil {
			appLogger.Warn("failed to close redis client: %v", err)
		}
	}, nil
}
