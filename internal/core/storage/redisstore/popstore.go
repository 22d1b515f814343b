// Package redisstore keeps the PoP map in Redis: a set of known addresses
// and one hash per address ("ip:<addr>") holding its pop and asn.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ak7sky/popmatch/internal/core/model"
	"github.com/ak7sky/popmatch/internal/logger"
	retry "github.com/avast/retry-go/v5"
	"github.com/redis/go-redis/v9"
)

const (
	popField  = "pop"
	asnField  = "asn"
	scanCount = 10000
)

var (
	errScanAddrs = "failed to scan addresses of"
	errGetPop    = "failed to get pop of"
	errSavePop   = "failed to save pop of"
)

type PopMapRedisStorage struct {
	client    redis.UniversalClient
	ipListKey string
	logger    logger.Logger
}

func New(client redis.UniversalClient, ipListKey string, logger logger.Logger) *PopMapRedisStorage {
	return &PopMapRedisStorage{
		client:    client,
		ipListKey: ipListKey,
		logger:    logger,
	}
}

// Ping checks the connection, retrying a few times before giving up.
func (storage *PopMapRedisStorage) Ping(ctx context.Context, attempts uint) error {
	return retry.New(
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			storage.logger.Warn("redis ping attempt %d failed: %v", n+1, err)
		}),
	).Do(func() error {
		return storage.client.Ping(ctx).Err()
	})
}

// Addrs scans the address set. Members that are not dotted quads are logged and skipped.
func (storage *PopMapRedisStorage) Addrs(ctx context.Context) ([]model.IPv4, error) {
	seen := map[string]struct{}{}
	var addrs []model.IPv4

	iter := storage.client.SScan(ctx, storage.ipListKey, 0, "", scanCount).Iterator()
	for iter.Next(ctx) {
		member := iter.Val()
		if _, dup := seen[member]; dup {
			continue
		}
		seen[member] = struct{}{}

		ip, err := model.ParseIPv4(member)
		if err != nil {
			storage.logger.Warn("skipping member of %s: %v", storage.ipListKey, err)
			continue
		}
		addrs = append(addrs, ip)
		if len(addrs)%100000 == 0 {
			storage.logger.Debug("scanned %d addresses of %s", len(addrs), storage.ipListKey)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%s %s: %w", errScanAddrs, storage.ipListKey, err)
	}

	return addrs, nil
}

func (storage *PopMapRedisStorage) PopInfo(ctx context.Context, addr model.IPv4) (*model.PopInfo, error) {
	vals, err := storage.client.HMGet(ctx, addr.Key(), popField, asnField).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s %s: %w", errGetPop, addr, err)
	}

	pop, _ := vals[0].(string)
	asn, _ := vals[1].(string)
	if pop == "" && asn == "" {
		return nil, nil
	}
	return &model.PopInfo{Pop: pop, ASN: asn}, nil
}

// Save adds addr to the address set and, when info is given, writes its metadata hash.
func (storage *PopMapRedisStorage) Save(ctx context.Context, addr model.IPv4, info *model.PopInfo) error {
	pipe := storage.client.Pipeline()
	pipe.SAdd(ctx, storage.ipListKey, addr.String())
	if info != nil {
		fields := map[string]any{}
		if info.Pop != "" {
			fields[popField] = info.Pop
		}
		if info.ASN != "" {
			fields[asnField] = info.ASN
		}
		if len(fields) > 0 {
			pipe.HSet(ctx, addr.Key(), fields)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s %s: %w", errSavePop, addr, err)
	}
	return nil
}
