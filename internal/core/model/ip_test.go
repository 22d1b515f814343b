package model

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseIPv4(t *testing.T) {
	testCases := []struct {
		text     string
		expected IPv4
		valid    bool
	}{
		{text: "192.168.5.12", expected: IPv4From(192, 168, 5, 12), valid: true},
		{text: "ip:192.168.5.12", expected: IPv4From(192, 168, 5, 12), valid: true},
		{text: "0.0.0.0", expected: 0, valid: true},
		{text: "255.255.255.255", expected: IPv4From(255, 255, 255, 255), valid: true},
		{text: "010.001.000.009", expected: IPv4From(10, 1, 0, 9), valid: true},
		{text: "256.1.1.1"},
		{text: "1.2.3"},
		{text: "1.2.3.4.5"},
		{text: "1..3.4"},
		{text: "1.2.3.-4"},
		{text: "1.2.3.+4"},
		{text: "1.2.3.1000"},
		{text: " 1.2.3.4"},
		{text: "ip:"},
		{text: "2001:db8::1"},
		{text: ""},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.text, func(t *testing.T) {
			t.Parallel()
			ip, err := ParseIPv4(tc.text)
			if !tc.valid {
				require.ErrorIs(t, err, ErrParse)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expected, ip)
		})
	}
}

func TestIPv4_TextRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		ip := IPv4(rnd.Uint32())
		parsed, err := ParseIPv4(ip.String())
		require.NoError(t, err)
		require.Equal(t, ip, parsed)
		require.Equal(t, ip.As4(), parsed.As4())
	}
}

func TestIPv4_Accessors(t *testing.T) {
	ip := MustParseIPv4("192.168.5.12")

	require.Equal(t, byte(192), ip.Octet(0))
	require.Equal(t, byte(168), ip.Octet(1))
	require.Equal(t, byte(5), ip.Octet(2))
	require.Equal(t, byte(12), ip.Octet(3))
	require.Equal(t, uint32(192<<24|168<<16|5<<8|12), ip.Uint32())
	require.Equal(t, "ip:192.168.5.12", ip.Key())
	require.Equal(t, "192.168.5.12", ip.Addr().String())
}

func TestIPv4_Supernet(t *testing.T) {
	ip := MustParseIPv4("192.168.5.13")

	require.Equal(t, uint32(ip), ip.SupernetKey(32))
	require.Equal(t, uint32(0), ip.SupernetKey(0))
	require.Equal(t, MustParseIPv4("192.168.5.12").Uint32(), ip.SupernetKey(31))
	require.Equal(t, MustParseIPv4("192.168.4.0").Uint32(), ip.SupernetKey(22))
	require.Equal(t, Net{Addr: MustParseIPv4("192.168.0.0"), MaskLen: 15}, MustParseIPv4("192.169.6.12").Supernet(15))
	require.Equal(t, Net{Addr: ip, MaskLen: 32}, ip.Supernet(33))
}

func TestIPv4_DistanceAndOrder(t *testing.T) {
	low := MustParseIPv4("192.168.5.12")
	high := MustParseIPv4("192.168.6.12")

	require.Equal(t, int64(256), low.DistanceTo(high))
	require.Equal(t, int64(-256), high.DistanceTo(low))
	require.Equal(t, int64(-4294967295), IPv4(0xffffffff).DistanceTo(0))
	require.Equal(t, -1, low.Compare(high))
	require.Equal(t, 1, high.Compare(low))
	require.Equal(t, 0, low.Compare(low))
}

func TestIPv4_UnmarshalText(t *testing.T) {
	var ip IPv4
	require.NoError(t, ip.UnmarshalText([]byte("10.0.0.1")))
	require.Equal(t, IPv4From(10, 0, 0, 1), ip)
	require.ErrorIs(t, ip.UnmarshalText([]byte("10.0.0")), ErrParse)

	text, err := ip.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "10.0.0.1", string(text))
}
