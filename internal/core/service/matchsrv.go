package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ak7sky/popmatch/internal/core"
	"github.com/ak7sky/popmatch/internal/core/matcher"
	"github.com/ak7sky/popmatch/internal/core/model"
	"github.com/ak7sky/popmatch/internal/logger"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go4.org/netipx"
	"golang.org/x/sync/errgroup"
)

var (
	errLoadIndex = "failed to load address index"
	errLookupPop = "failed to look up pop of"
	errMatch     = "failed to match"
)

type Options struct {
	Workers      int
	Excluded     *netipx.IPSet
	PopCacheSize int
	PopCacheTTL  time.Duration
}

type MatchService struct {
	popStorage core.PopMapStorage
	excluded   *netipx.IPSet
	popCache   *expirable.LRU[model.IPv4, *model.PopInfo]
	workers    int
	logger     logger.Logger
	idx        atomic.Pointer[matcher.Index]
}

func New(popStorage core.PopMapStorage, opts Options, logger logger.Logger) *MatchService {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.PopCacheSize < 1 {
		opts.PopCacheSize = 1
	}
	return &MatchService{
		popStorage: popStorage,
		excluded:   opts.Excluded,
		popCache:   expirable.NewLRU[model.IPv4, *model.PopInfo](opts.PopCacheSize, nil, opts.PopCacheTTL),
		workers:    opts.Workers,
		logger:     logger,
	}
}

// Load reads the full candidate set from storage and builds the index searched by all later calls.
func (msrv *MatchService) Load(ctx context.Context) error {
	msrv.logger.Info("loading addresses")
	addrs, err := msrv.popStorage.Addrs(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", errLoadIndex, err)
	}

	idx := matcher.Build(addrs)
	msrv.idx.Store(idx)
	msrv.popCache.Purge()
	msrv.logger.Info("indexed %d addresses in %d /16 and %d /8 buckets", idx.Len(), idx.Slash16s(), idx.Slash8s())
	return nil
}

func (msrv *MatchService) IndexStats() model.IndexStats {
	idx := msrv.idx.Load()
	if idx == nil {
		return model.IndexStats{}
	}
	return model.IndexStats{Addrs: idx.Len(), Slash16s: idx.Slash16s(), Slash8s: idx.Slash8s()}
}

// FindNearest matches a single address text. A nil record without error means no match.
func (msrv *MatchService) FindNearest(ctx context.Context, addrText string) (*model.Record, error) {
	idx := msrv.idx.Load()
	if idx == nil {
		return nil, core.ErrIndexNotLoaded
	}

	query, err := model.ParseIPv4(addrText)
	if err != nil {
		return nil, err
	}
	if msrv.isExcluded(query) {
		return nil, fmt.Errorf("%w: %s", core.ErrExcluded, query)
	}

	match, found := idx.FindNearest(query)
	if !found {
		msrv.logger.Debug("no match found for %s even at /8", query)
		return nil, nil
	}

	info, err := msrv.popInfo(ctx, match.Addr)
	if err != nil {
		return nil, err
	}
	return newRecord(query, match, info, nil), nil
}

// MatchRelays matches every relay on the worker pool. Records keep the order
// of relays; relays without a record are left out. With requirePop set, a
// match whose address has no pop is skipped in favour of the relay's next address.
func (msrv *MatchService) MatchRelays(ctx context.Context, relays []*model.Relay, requirePop bool) ([]*model.Record, model.MatchStats, error) {
	idx := msrv.idx.Load()
	if idx == nil {
		return nil, model.MatchStats{}, core.ErrIndexNotLoaded
	}

	records := make([]*model.Record, len(relays))
	relayStats := make([]model.MatchStats, len(relays))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(msrv.workers)
	for i, relay := range relays {
		i, relay := i, relay
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			msrv.logger.Info("searching for match for %s [%d/%d]", relay.Nick, i+1, len(relays))
			record, stats, err := msrv.matchRelay(groupCtx, idx, relay, requirePop)
			if err != nil {
				return fmt.Errorf("%s relay %q: %w", errMatch, relay.Nick, err)
			}
			records[i] = record
			relayStats[i] = stats
			return nil
		})
	}

	var stats model.MatchStats
	if err := group.Wait(); err != nil {
		return nil, stats, err
	}

	matched := make([]*model.Record, 0, len(records))
	for i, record := range records {
		stats.Add(relayStats[i])
		if record != nil {
			matched = append(matched, record)
		}
	}
	return matched, stats, nil
}

func (msrv *MatchService) matchRelay(
	ctx context.Context, idx *matcher.Index, relay *model.Relay, requirePop bool,
) (*model.Record, model.MatchStats, error) {
	stats := model.MatchStats{Total: 1}

	for _, addrText := range relay.Addrs {
		query, err := model.ParseIPv4(addrText)
		if err != nil {
			continue
		}
		if msrv.isExcluded(query) {
			msrv.logger.Debug("skipping excluded address %s", query)
			stats.Excluded++
			continue
		}

		match, found := idx.FindNearest(query)
		if !found {
			msrv.logger.Warn("no match found for %s even at /8", query)
			stats.UnmatchedIP++
			continue
		}
		msrv.logger.Info("found match for %s: %s at %d bits", query, match.Addr, match.MaskBits)

		info, err := msrv.popInfo(ctx, match.Addr)
		if err != nil {
			return nil, stats, err
		}
		if requirePop && (info == nil || info.Pop == "") {
			msrv.logger.Info("no pop for %s available, will not be included in output", match.Addr)
			stats.UnmatchedPop++
			continue
		}

		stats.Matched++
		return newRecord(query, match, info, relay), stats, nil
	}

	return nil, stats, nil
}

func (msrv *MatchService) popInfo(ctx context.Context, addr model.IPv4) (*model.PopInfo, error) {
	if info, cached := msrv.popCache.Get(addr); cached {
		return info, nil
	}
	info, err := msrv.popStorage.PopInfo(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", errLookupPop, addr, err)
	}
	msrv.popCache.Add(addr, info)
	return info, nil
}

func (msrv *MatchService) isExcluded(ip model.IPv4) bool {
	return msrv.excluded != nil && msrv.excluded.Contains(ip.Addr())
}

func newRecord(query model.IPv4, match model.Match, info *model.PopInfo, relay *model.Relay) *model.Record {
	record := &model.Record{
		IP:        match.Addr.String(),
		RelayIP:   query.String(),
		MatchBits: match.MaskBits,
	}
	if info != nil {
		record.Pop = info.Pop
		record.ASN = info.ASN
	}
	if relay != nil {
		record.Nick = relay.Nick
		record.Fp = relay.Fingerprint
	}
	return record
}
