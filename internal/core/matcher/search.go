package matcher

import (
	"github.com/ak7sky/popmatch/internal/core/model"
)

const (
	slash16MaxBits uint8 = 31
	slash16MinBits uint8 = 17
	slash8MaxBits  uint8 = 15
	slash8MinBits  uint8 = 9
)

// potentialMatch pairs a candidate with the query for ranking.
type potentialMatch struct {
	ip   model.IPv4
	dist int64
}

func newPotentialMatch(candidate, query model.IPv4) potentialMatch {
	return potentialMatch{ip: candidate, dist: candidate.DistanceTo(query)}
}

// FindNearest looks for the known address closest to query: first inside the
// query's /16, then across its /8. The second result is false when nothing
// in the /8 agrees with the query on at least 9 leading bits.
func FindNearest(query model.IPv4, idx *Index) (model.Match, bool) {
	if idx == nil {
		return model.Match{}, false
	}
	if match, found := searchSlash16(query, idx); found {
		return match, true
	}
	return searchSlash8(query, idx)
}

func (idx *Index) FindNearest(query model.IPv4) (model.Match, bool) {
	return FindNearest(query, idx)
}

// searchSlash16 narrows from /31 to /17 inside the query's own /16 bucket and
// ranks the first non-empty level by absolute distance, lower address first on ties.
func searchSlash16(query model.IPv4, idx *Index) (model.Match, bool) {
	candidates := idx.Bucket(query.Octet(0), query.Octet(1))
	if len(candidates) == 0 {
		return model.Match{}, false
	}

	for maskBits := slash16MaxBits; maskBits >= slash16MinBits; maskBits-- {
		searchNet := query.Supernet(maskBits)

		var best potentialMatch
		var found bool
		for _, candidate := range candidates {
			if !searchNet.Contains(candidate) {
				continue
			}
			pm := newPotentialMatch(candidate, query)
			if !found || closer(pm, best) {
				best, found = pm, true
			}
		}

		if found {
			return model.Match{Addr: best.ip, MaskBits: maskBits}, true
		}
	}
	return model.Match{}, false
}

func closer(a, b potentialMatch) bool {
	da, db := abs(a.dist), abs(b.dist)
	if da != db {
		return da < db
	}
	return a.ip < b.ip
}

// searchSlash8 widens from /15 to /9. A /16 bucket of the query's /8 is a
// possible source at maskBits when it lies inside the query's supernet.
//
// The candidates of the possible buckets are ranked by the signed
// candidate.DistanceTo(query), smallest first, unlike the absolute ranking of
// searchSlash16. This keeps results compatible with existing PoP match data:
// the numerically highest candidate wins.
func searchSlash8(query model.IPv4, idx *Index) (model.Match, bool) {
	o0 := query.Octet(0)
	subBuckets := idx.SubBuckets(o0)
	if len(subBuckets) == 0 {
		return model.Match{}, false
	}

	for maskBits := slash8MaxBits; maskBits >= slash8MinBits; maskBits-- {
		searchNet := query.Supernet(maskBits)

		var best potentialMatch
		var found bool
		for _, o1 := range subBuckets {
			if !searchNet.Contains(model.IPv4From(o0, o1, 0, 0)) {
				continue
			}
			for _, candidate := range idx.Bucket(o0, o1) {
				pm := newPotentialMatch(candidate, query)
				if !found || pm.dist < best.dist {
					best, found = pm, true
				}
			}
		}

		if found {
			return model.Match{Addr: best.ip, MaskBits: maskBits}, true
		}
	}
	return model.Match{}, false
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
