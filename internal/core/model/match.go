package model

// Match is the outcome of a nearest-address search: the matched known
// address and the prefix length at which it agreed with the query.
type Match struct {
	Addr     IPv4
	MaskBits uint8
}

type PopInfo struct {
	Pop string `yaml:"pop"`
	ASN string `yaml:"asn"`
}

// Relay is a query subject: a named host with one or more candidate addresses.
// Addresses are kept as received; non-IPv4 entries are skipped when matching.
type Relay struct {
	Nick        string
	Fingerprint string
	Addrs       []string
}

// Record is one output line of a batch match.
type Record struct {
	IP        string `json:"ip"`
	Pop       string `json:"pop,omitempty"`
	ASN       string `json:"asn,omitempty"`
	Nick      string `json:"nick,omitempty"`
	Fp        string `json:"fp,omitempty"`
	RelayIP   string `json:"relay_ip"`
	MatchBits uint8  `json:"match_bits"`
}

type IndexStats struct {
	Addrs    int
	Slash16s int
	Slash8s  int
}

// MatchStats summarizes a batch run. Total and Matched count relays,
// the remaining fields count addresses.
type MatchStats struct {
	Total        int
	Matched      int
	UnmatchedIP  int
	UnmatchedPop int
	Excluded     int
}

func (s *MatchStats) Add(other MatchStats) {
	s.Total += other.Total
	s.Matched += other.Matched
	s.UnmatchedIP += other.UnmatchedIP
	s.UnmatchedPop += other.UnmatchedPop
	s.Excluded += other.Excluded
}
