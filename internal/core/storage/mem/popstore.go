package mem

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/ak7sky/popmatch/internal/core/model"
	"github.com/ak7sky/popmatch/internal/logger"
	"gopkg.in/yaml.v3"
)

type PopMapMemStorage struct {
	addrs []model.IPv4
	pops  map[model.IPv4]*model.PopInfo
	mtx   *sync.RWMutex
}

func NewPopMapMemStorage() *PopMapMemStorage {
	return &PopMapMemStorage{
		pops: map[model.IPv4]*model.PopInfo{},
		mtx:  &sync.RWMutex{},
	}
}

type popMapEntry struct {
	IP  string `yaml:"ip"`
	Pop string `yaml:"pop"`
	ASN string `yaml:"asn"`
}

// LoadPopMapFile reads a YAML list of {ip, pop, asn} entries.
// Entries with a malformed ip are logged and skipped.
func LoadPopMapFile(path string, logger logger.Logger) (*PopMapMemStorage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pop map %s: %w", path, err)
	}

	var entries []popMapEntry
	if err = yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode pop map %s: %w", path, err)
	}

	storage := NewPopMapMemStorage()
	for i, entry := range entries {
		ip, err := model.ParseIPv4(entry.IP)
		if err != nil {
			logger.Warn("skipping pop map entry %d: %v", i, err)
			continue
		}
		var info *model.PopInfo
		if entry.Pop != "" || entry.ASN != "" {
			info = &model.PopInfo{Pop: entry.Pop, ASN: entry.ASN}
		}
		storage.Save(ip, info)
	}

	logger.Info("loaded %d of %d pop map entries from %s", len(storage.addrs), len(entries), path)
	return storage, nil
}

// Save adds addr to the candidate set. A nil info leaves existing metadata untouched.
func (storage *PopMapMemStorage) Save(addr model.IPv4, info *model.PopInfo) {
	storage.mtx.Lock()
	storage.addrs = append(storage.addrs, addr)
	if info != nil {
		storage.pops[addr] = info
	}
	storage.mtx.Unlock()
}

func (storage *PopMapMemStorage) Addrs(_ context.Context) ([]model.IPv4, error) {
	storage.mtx.RLock()
	defer storage.mtx.RUnlock()

	addrs := make([]model.IPv4, len(storage.addrs))
	copy(addrs, storage.addrs)
	return addrs, nil
}

func (storage *PopMapMemStorage) PopInfo(_ context.Context, addr model.IPv4) (*model.PopInfo, error) {
	storage.mtx.RLock()
	defer storage.mtx.RUnlock()
	return storage.pops[addr], nil
}
