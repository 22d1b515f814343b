package model

import (
	"fmt"
	"math"
	"math/bits"
	"net/netip"
)

const MaxMaskLen = 32

type Net struct {
	Addr    IPv4
	MaskLen uint8
}

func (net Net) Contains(ip IPv4) bool {
	return uint32(ip)&Mask(net.MaskLen) == uint32(net.Addr)
}

// Prefix converts the network to its netip form.
func (net Net) Prefix() netip.Prefix {
	return netip.PrefixFrom(net.Addr.Addr(), int(net.MaskLen))
}

func (net Net) String() string {
	return fmt.Sprintf("%s/%d", net.Addr, net.MaskLen)
}

// Mask returns the netmask with maskLen leading one bits. Lengths above 32 are treated as 32.
func Mask(maskLen uint8) uint32 {
	if maskLen > MaxMaskLen {
		maskLen = MaxMaskLen
	}
	return bits.Reverse32(math.MaxUint32 >> (MaxMaskLen - maskLen))
}
