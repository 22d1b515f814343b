package core

import (
	"context"
	"errors"

	"github.com/ak7sky/popmatch/internal/core/model"
)

var (
	ErrExcluded       = errors.New("address is excluded from matching")
	ErrIndexNotLoaded = errors.New("address index is not loaded")
)

// Matcher answers single nearest-PoP queries; a nil record means no match.
type Matcher interface {
	FindNearest(ctx context.Context, addrText string) (*model.Record, error)
	IndexStats() model.IndexStats
}

// PopMapStorage is the source of known addresses and their PoP metadata.
// Addrs returns only well-formed addresses; PopInfo returns nil when the
// address carries no metadata.
type PopMapStorage interface {
	Addrs(ctx context.Context) ([]model.IPv4, error)
	PopInfo(ctx context.Context, addr model.IPv4) (*model.PopInfo, error)
}

type RelaySource interface {
	Relays(ctx context.Context) ([]*model.Relay, error)
}
