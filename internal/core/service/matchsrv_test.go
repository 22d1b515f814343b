package service

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"testing"

	"github.com/ak7sky/popmatch/internal/core"
	"github.com/ak7sky/popmatch/internal/core/model"
	"github.com/ak7sky/popmatch/internal/logger"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go4.org/netipx"
)

type mockPopMapStorage struct {
	mock.Mock
}

func (mps *mockPopMapStorage) Addrs(ctx context.Context) ([]model.IPv4, error) {
	args := mps.Called(ctx)
	return args.Get(0).([]model.IPv4), args.Error(1)
}

func (mps *mockPopMapStorage) PopInfo(ctx context.Context, addr model.IPv4) (*model.PopInfo, error) {
	args := mps.Called(ctx, addr)
	return args.Get(0).(*model.PopInfo), args.Error(1)
}

func ipV4(text string) model.IPv4 {
	return model.MustParseIPv4(text)
}

var fixtureAddrs = []model.IPv4{
	ipV4("192.168.5.12"), ipV4("192.168.5.14"), ipV4("192.168.5.128"), ipV4("192.168.5.13"),
}

func newLoadedService(t *testing.T, storage *mockPopMapStorage, opts Options) *MatchService {
	t.Helper()
	storage.On("Addrs", mock.Anything).Return(fixtureAddrs, nil)
	msrv := New(storage, opts, logger.NewNopLogger())
	require.NoError(t, msrv.Load(context.Background()))
	return msrv
}

func TestLoad(t *testing.T) {
	t.Run("builds index", func(t *testing.T) {
		storage := &mockPopMapStorage{}
		msrv := newLoadedService(t, storage, Options{Workers: 2, PopCacheSize: 16})

		require.Equal(t, model.IndexStats{Addrs: 4, Slash16s: 1, Slash8s: 1}, msrv.IndexStats())
		storage.AssertCalled(t, "Addrs", mock.Anything)
	})

	t.Run("storage error", func(t *testing.T) {
		storage := &mockPopMapStorage{}
		expErr := errors.New("error during scanning addresses")
		storage.On("Addrs", mock.Anything).Return(([]model.IPv4)(nil), expErr)
		msrv := New(storage, Options{}, logger.NewNopLogger())

		err := msrv.Load(context.Background())
		require.EqualError(t, err, fmt.Sprintf("%s: %v", errLoadIndex, expErr))
		require.Equal(t, model.IndexStats{}, msrv.IndexStats())
	})
}

func TestFindNearest(t *testing.T) {
	t.Run("not loaded", func(t *testing.T) {
		msrv := New(&mockPopMapStorage{}, Options{}, logger.NewNopLogger())
		_, err := msrv.FindNearest(context.Background(), "192.168.5.12")
		require.ErrorIs(t, err, core.ErrIndexNotLoaded)
	})

	t.Run("match with pop", func(t *testing.T) {
		storage := &mockPopMapStorage{}
		msrv := newLoadedService(t, storage, Options{PopCacheSize: 16})
		storage.On("PopInfo", mock.Anything, ipV4("192.168.5.128")).Return(&model.PopInfo{Pop: "18", ASN: "3356"}, nil)

		record, err := msrv.FindNearest(context.Background(), "192.168.6.12")
		require.NoError(t, err)
		require.Equal(t, &model.Record{
			IP: "192.168.5.128", Pop: "18", ASN: "3356", RelayIP: "192.168.6.12", MatchBits: 22,
		}, record)
	})

	t.Run("pop lookups are cached", func(t *testing.T) {
		storage := &mockPopMapStorage{}
		msrv := newLoadedService(t, storage, Options{PopCacheSize: 16})
		storage.On("PopInfo", mock.Anything, ipV4("192.168.5.12")).Return((*model.PopInfo)(nil), nil).Once()

		for i := 0; i < 3; i++ {
			record, err := msrv.FindNearest(context.Background(), "192.168.5.11")
			require.NoError(t, err)
			require.Equal(t, "192.168.5.12", record.IP)
			require.Empty(t, record.Pop)
		}
		storage.AssertNumberOfCalls(t, "PopInfo", 1)
	})

	t.Run("no match", func(t *testing.T) {
		storage := &mockPopMapStorage{}
		msrv := newLoadedService(t, storage, Options{})

		record, err := msrv.FindNearest(context.Background(), "10.0.0.1")
		require.NoError(t, err)
		require.Nil(t, record)
		storage.AssertNotCalled(t, "PopInfo", mock.Anything, mock.Anything)
	})

	t.Run("parse error", func(t *testing.T) {
		msrv := newLoadedService(t, &mockPopMapStorage{}, Options{})
		_, err := msrv.FindNearest(context.Background(), "192.168.5")
		require.ErrorIs(t, err, model.ErrParse)
	})

	t.Run("excluded", func(t *testing.T) {
		msrv := newLoadedService(t, &mockPopMapStorage{}, Options{Excluded: ipSet(t, "192.168.6.0/24")})
		_, err := msrv.FindNearest(context.Background(), "192.168.6.12")
		require.ErrorIs(t, err, core.ErrExcluded)
	})

	t.Run("pop storage error", func(t *testing.T) {
		storage := &mockPopMapStorage{}
		msrv := newLoadedService(t, storage, Options{})
		expErr := errors.New("connection reset")
		storage.On("PopInfo", mock.Anything, ipV4("192.168.5.12")).Return((*model.PopInfo)(nil), expErr)

		_, err := msrv.FindNearest(context.Background(), "192.168.5.12")
		require.EqualError(t, err, fmt.Sprintf("%s %s: %v", errLookupPop, "192.168.5.12", expErr))
	})
}

func TestMatchRelays(t *testing.T) {
	relays := []*model.Relay{
		{Nick: "exact", Fingerprint: "AAAA", Addrs: []string{"192.168.5.12"}},
		{Nick: "v6first", Fingerprint: "BBBB", Addrs: []string{"[2001:db8::1]", "192.168.6.12"}},
		{Nick: "nomatch", Fingerprint: "CCCC", Addrs: []string{"10.0.0.1", "172.16.0.1"}},
		{Nick: "nopop", Fingerprint: "DDDD", Addrs: []string{"192.168.5.14"}},
		{Nick: "fallback", Fingerprint: "EEEE", Addrs: []string{"192.168.5.14", "192.169.6.12"}},
		{Nick: "excluded", Fingerprint: "FFFF", Addrs: []string{"192.0.2.1"}},
	}

	setupStorage := func() *mockPopMapStorage {
		storage := &mockPopMapStorage{}
		storage.On("PopInfo", mock.Anything, ipV4("192.168.5.12")).Return(&model.PopInfo{Pop: "17", ASN: "3356"}, nil)
		storage.On("PopInfo", mock.Anything, ipV4("192.168.5.128")).Return(&model.PopInfo{Pop: "18"}, nil)
		storage.On("PopInfo", mock.Anything, ipV4("192.168.5.14")).Return((*model.PopInfo)(nil), nil)
		return storage
	}

	t.Run("pop required", func(t *testing.T) {
		msrv := newLoadedService(t, setupStorage(), Options{Workers: 3, PopCacheSize: 16, Excluded: ipSet(t, "192.0.2.0/24")})

		records, stats, err := msrv.MatchRelays(context.Background(), relays, true)
		require.NoError(t, err)
		require.Equal(t, []*model.Record{
			{IP: "192.168.5.12", Pop: "17", ASN: "3356", Nick: "exact", Fp: "AAAA", RelayIP: "192.168.5.12", MatchBits: 31},
			{IP: "192.168.5.128", Pop: "18", Nick: "v6first", Fp: "BBBB", RelayIP: "192.168.6.12", MatchBits: 22},
			{IP: "192.168.5.128", Pop: "18", Nick: "fallback", Fp: "EEEE", RelayIP: "192.169.6.12", MatchBits: 15},
		}, records)
		require.Equal(t, model.MatchStats{Total: 6, Matched: 3, UnmatchedIP: 2, UnmatchedPop: 2, Excluded: 1}, stats)
	})

	t.Run("pop optional", func(t *testing.T) {
		msrv := newLoadedService(t, setupStorage(), Options{Workers: 1, PopCacheSize: 16})

		records, stats, err := msrv.MatchRelays(context.Background(), relays[3:4], false)
		require.NoError(t, err)
		require.Equal(t, []*model.Record{
			{IP: "192.168.5.14", Nick: "nopop", Fp: "DDDD", RelayIP: "192.168.5.14", MatchBits: 31},
		}, records)
		require.Equal(t, model.MatchStats{Total: 1, Matched: 1}, stats)
	})

	t.Run("storage error stops the batch", func(t *testing.T) {
		storage := &mockPopMapStorage{}
		expErr := errors.New("connection reset")
		storage.On("PopInfo", mock.Anything, mock.Anything).Return((*model.PopInfo)(nil), expErr)
		msrv := newLoadedService(t, storage, Options{Workers: 2})

		_, _, err := msrv.MatchRelays(context.Background(), relays, true)
		require.ErrorIs(t, err, expErr)
	})

	t.Run("cancelled context", func(t *testing.T) {
		msrv := newLoadedService(t, setupStorage(), Options{Workers: 1})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, _, err := msrv.MatchRelays(ctx, relays, true)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("not loaded", func(t *testing.T) {
		msrv := New(&mockPopMapStorage{}, Options{}, logger.NewNopLogger())
		_, _, err := msrv.MatchRelays(context.Background(), relays, true)
		require.ErrorIs(t, err, core.ErrIndexNotLoaded)
	})
}

func ipSet(t *testing.T, prefixes ...string) *netipx.IPSet {
	t.Helper()
	var builder netipx.IPSetBuilder
	for _, prefix := range prefixes {
		builder.AddPrefix(netip.MustParsePrefix(prefix))
	}
	set, err := builder.IPSet()
	require.NoError(t, err)
	return set
}
