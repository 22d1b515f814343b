package matcher

import (
	"testing"

	"github.com/ak7sky/popmatch/internal/core/model"
	"github.com/stretchr/testify/require"
)

func ips(texts ...string) []model.IPv4 {
	parsed := make([]model.IPv4, 0, len(texts))
	for _, text := range texts {
		parsed = append(parsed, model.MustParseIPv4(text))
	}
	return parsed
}

func TestBuild(t *testing.T) {
	idx := Build(ips("192.168.5.12", "192.168.5.14", "192.169.0.1", "10.0.0.1", "192.168.5.12"))

	require.Equal(t, 5, idx.Len())
	require.Equal(t, 2, idx.Slash8s())
	require.Equal(t, 3, idx.Slash16s())
	require.Equal(t, ips("192.168.5.12", "192.168.5.14", "192.168.5.12"), idx.Bucket(192, 168))
	require.Equal(t, ips("192.169.0.1"), idx.Bucket(192, 169))
	require.Equal(t, ips("10.0.0.1"), idx.Bucket(10, 0))
}

func TestBucket_Missing(t *testing.T) {
	idx := Build(ips("192.168.5.12"))

	require.Empty(t, idx.Bucket(192, 169))
	require.Empty(t, idx.Bucket(10, 168))
	// a lookup of a missing key must not create buckets
	require.Equal(t, 1, idx.Slash8s())
	require.Equal(t, 1, idx.Slash16s())
}

func TestAllInFirstOctet(t *testing.T) {
	idx := Build(ips("192.169.0.1", "192.168.5.12", "10.0.0.1", "192.1.2.3"))

	require.Equal(t, ips("192.1.2.3", "192.168.5.12", "192.169.0.1"), idx.AllInFirstOctet(192))
	require.Equal(t, []byte{1, 168, 169}, idx.SubBuckets(192))
	require.Empty(t, idx.AllInFirstOctet(11))
	require.Empty(t, idx.SubBuckets(11))
}

func TestBuild_Empty(t *testing.T) {
	idx := Build(nil)

	require.Zero(t, idx.Len())
	require.Zero(t, idx.Slash8s())
	require.Empty(t, idx.Bucket(0, 0))
}
