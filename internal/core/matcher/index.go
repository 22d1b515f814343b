// Package matcher maps arbitrary IPv4 addresses onto the closest address of a
// known set, where closeness is the shared prefix length with numeric
// distance as the tie-break.
package matcher

import (
	"sort"

	"github.com/ak7sky/popmatch/internal/core/model"
)

// Index buckets known addresses by first octet, then by second octet.
// It is read-only once built and safe for concurrent searches.
type Index struct {
	slash8s map[byte]map[byte][]model.IPv4
	size    int
}

// Build organizes addrs into /8 and /16 buckets. Duplicates are kept.
func Build(addrs []model.IPv4) *Index {
	idx := &Index{slash8s: map[byte]map[byte][]model.IPv4{}}
	for _, ip := range addrs {
		o0, o1 := ip.Octet(0), ip.Octet(1)
		slash16s, found := idx.slash8s[o0]
		if !found {
			slash16s = map[byte][]model.IPv4{}
			idx.slash8s[o0] = slash16s
		}
		slash16s[o1] = append(slash16s[o1], ip)
	}
	idx.size = len(addrs)
	return idx
}

// Bucket returns the addresses of the /16 o0.o1.0.0, nil if there are none.
// The returned slice must not be modified.
func (idx *Index) Bucket(o0, o1 byte) []model.IPv4 {
	return idx.slash8s[o0][o1]
}

// AllInFirstOctet returns every address of the /8 o0.0.0.0 as a fresh slice.
func (idx *Index) AllInFirstOctet(o0 byte) []model.IPv4 {
	var all []model.IPv4
	for _, o1 := range idx.SubBuckets(o0) {
		all = append(all, idx.slash8s[o0][o1]...)
	}
	return all
}

// SubBuckets returns the populated second octets of the /8 o0.0.0.0 in ascending order.
func (idx *Index) SubBuckets(o0 byte) []byte {
	slash16s := idx.slash8s[o0]
	keys := make([]byte, 0, len(slash16s))
	for o1 := range slash16s {
		keys = append(keys, o1)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Len is the number of indexed addresses, duplicates included.
func (idx *Index) Len() int {
	return idx.size
}

// Slash16s is the number of populated /16 buckets.
func (idx *Index) Slash16s() int {
	var n int
	for _, slash16s := range idx.slash8s {
		n += len(slash16s)
	}
	return n
}

// Slash8s is the number of populated /8 buckets.
func (idx *Index) Slash8s() int {
	return len(idx.slash8s)
}
