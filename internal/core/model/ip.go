package model

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// KeyPrefix marks a string as an encoded address, e.g. "ip:10.0.0.1".
const KeyPrefix = "ip:"

var ErrParse = errors.New("malformed ipv4 address")

// IPv4 is an immutable IPv4 address in its numeric (big-endian) form.
// Ordering and equality follow the numeric value.
type IPv4 uint32

func IPv4From(o0, o1, o2, o3 byte) IPv4 {
	return IPv4(binary.BigEndian.Uint32([]byte{o0, o1, o2, o3}))
}

// ParseIPv4 parses a dotted quad, optionally prefixed with KeyPrefix.
// Every one of the four segments must be one to three decimal digits in [0,255].
func ParseIPv4(text string) (IPv4, error) {
	segments := strings.Split(strings.TrimPrefix(text, KeyPrefix), ".")
	if len(segments) != 4 {
		return 0, fmt.Errorf("%w: %q", ErrParse, text)
	}

	var octets [4]byte
	for i, seg := range segments {
		if len(seg) == 0 || len(seg) > 3 || strings.TrimLeft(seg, "0123456789") != "" {
			return 0, fmt.Errorf("%w: %q", ErrParse, text)
		}
		val, err := strconv.ParseUint(seg, 10, 8)
		if err != nil {
			return 0, fmt.Errorf("%w: %q: octet %d out of range", ErrParse, text, i)
		}
		octets[i] = byte(val)
	}
	return IPv4(binary.BigEndian.Uint32(octets[:])), nil
}

func MustParseIPv4(text string) IPv4 {
	ip, err := ParseIPv4(text)
	if err != nil {
		panic(err)
	}
	return ip
}

// Octet returns the i-th byte of the address, i in [0,3].
func (ip IPv4) Octet(i int) byte {
	return ip.As4()[i]
}

func (ip IPv4) As4() [4]byte {
	var octets [4]byte
	binary.BigEndian.PutUint32(octets[:], uint32(ip))
	return octets
}

func (ip IPv4) Uint32() uint32 {
	return uint32(ip)
}

// SupernetKey returns the address with all bits beyond the first maskLen cleared.
func (ip IPv4) SupernetKey(maskLen uint8) uint32 {
	return uint32(ip) & Mask(maskLen)
}

func (ip IPv4) Supernet(maskLen uint8) Net {
	if maskLen > MaxMaskLen {
		maskLen = MaxMaskLen
	}
	return Net{Addr: IPv4(ip.SupernetKey(maskLen)), MaskLen: maskLen}
}

// DistanceTo returns other - ip as a signed value.
func (ip IPv4) DistanceTo(other IPv4) int64 {
	return int64(other) - int64(ip)
}

func (ip IPv4) Compare(other IPv4) int {
	switch {
	case ip < other:
		return -1
	case ip > other:
		return 1
	}
	return 0
}

func (ip IPv4) Addr() netip.Addr {
	return netip.AddrFrom4(ip.As4())
}

func (ip IPv4) String() string {
	o := ip.As4()
	return fmt.Sprintf("%d.%d.%d.%d", o[0], o[1], o[2], o[3])
}

// Key is the storage key of the address metadata.
func (ip IPv4) Key() string {
	return KeyPrefix + ip.String()
}

func (ip IPv4) MarshalText() ([]byte, error) {
	return []byte(ip.String()), nil
}

func (ip *IPv4) UnmarshalText(text []byte) error {
	parsed, err := ParseIPv4(string(text))
	if err != nil {
		return err
	}
	*ip = parsed
	return nil
}
