package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseIP(t *testing.T) {
	ip, err := ParseIP("10.1.0.101")
	require.NoError(t, err)
	require.Equal(t, IPAddr{10, 1, 0, 101}, ip)
	require.Equal(t, "10.1.0.101", ip.String())
	require.False(t, ip.IsBroadcast())

	ip, err = ParseIP("255.255.255.255")
	require.NoError(t, err)
	require.True(t, ip.IsBroadcast())

	_, err = ParseIP("fe80::1")
	require.Error(t, err)
	_, err = ParseIP("not-an-ip")
	require.Error(t, err)
}

func TestParseHardwareAddr(t *testing.T) {
	mac, err := ParseHardwareAddr("00:04:a3:01:02:03")
	require.NoError(t, err)
	require.Equal(t, HardwareAddr{0x00, 0x04, 0xa3, 1, 2, 3}, mac)
	require.Equal(t, "00:04:a3:01:02:03", mac.String())
	require.False(t, mac.IsZero())
	require.True(t, HardwareAddr{}.IsZero())

	_, err = ParseHardwareAddr("00:00:00:00:fe:80:00:00:00:00:00:00:02:00:5e:10:00:00:00:01")
	require.Error(t, err)
}

func TestSocket(t *testing.T) {
	require.False(t, InvalidSocket.IsValid())
	require.True(t, Socket(0).IsValid())
}
