package mem

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/relaynode/pkg/transport"
)

var (
	nodeIP  = transport.IPAddr{10, 1, 0, 1}
	nodeMAC = transport.HardwareAddr{0x00, 0x04, 0xa3, 0, 0, 1}
	peerIP  = transport.IPAddr{10, 1, 0, 101}
	peerMAC = transport.HardwareAddr{0x00, 0x04, 0xa3, 0, 0, 101}
)

type memTestEnv struct {
	t        *testing.T
	net      *Network
	node     *Host
	peer     *Host
	received []transport.Datagram
}

func newMemTestEnv(t *testing.T) *memTestEnv {
	env := &memTestEnv{t: t, net: NewNetwork()}
	env.node = env.net.Attach(nodeIP, nodeMAC)
	env.peer = env.net.Attach(peerIP, peerMAC)
	env.peer.Handler = transport.HandleDatagramFunc(func(d transport.Datagram) {
		env.received = append(env.received, d)
	})
	return env
}

func (e *memTestEnv) send(s transport.Socket, data ...byte) error {
	require.True(e.t, e.node.IsSendReady(s))
	for _, b := range data {
		e.node.Put(s, b)
	}
	return e.node.Flush(s)
}

func TestResolveRoundTrip(t *testing.T) {
	env := newMemTestEnv(t)
	require.True(t, env.node.IsResolveReady())
	env.node.Resolve(peerIP)
	require.Equal(t, 1, env.node.ResolveRequests())

	_, ok := env.node.IsResolved(peerIP)
	require.False(t, ok)
	env.node.Pump()
	_, ok = env.node.IsResolved(peerIP)
	require.False(t, ok, "reply requires the peer to be pumped")

	env.peer.Pump()
	env.node.Pump()
	mac, ok := env.node.IsResolved(peerIP)
	require.True(t, ok)
	require.Equal(t, peerMAC, mac)
}

func TestResolveSilentPeer(t *testing.T) {
	env := newMemTestEnv(t)
	env.peer.SetSilent(true)
	env.node.Resolve(peerIP)
	env.peer.Pump()
	env.node.Pump()
	_, ok := env.node.IsResolved(peerIP)
	require.False(t, ok)
}

func TestResolveBroadcast(t *testing.T) {
	env := newMemTestEnv(t)
	env.node.Resolve(transport.BroadcastIP)
	require.Equal(t, 0, env.node.ResolveRequests())
	mac, ok := env.node.IsResolved(transport.BroadcastIP)
	require.True(t, ok)
	require.Equal(t, transport.BroadcastHardwareAddr, mac)
}

func TestDatagramUnicast(t *testing.T) {
	env := newMemTestEnv(t)
	peerSock := env.peer.Open(54124, &transport.Endpoint{IP: nodeIP}, 54123)
	require.True(t, peerSock.IsValid())
	s := env.node.Open(54123, &transport.Endpoint{IP: peerIP}, 54124)
	require.True(t, s.IsValid())

	require.Equal(t, transport.ErrNotResolved, env.send(s, 1, 2))
	env.peer.Pump()
	require.Empty(t, env.received)

	env.node.Resolve(peerIP)
	env.peer.Pump()
	env.node.Pump()
	require.NoError(t, env.send(s, 'H', 'I'))
	require.Equal(t, 1, env.node.DatagramsSent())
	env.peer.Pump()
	require.Len(t, env.received, 1)
	require.Equal(t, transport.Datagram{
		Socket:  peerSock,
		SrcIP:   nodeIP,
		SrcPort: 54123,
		Data:    []byte{'H', 'I'},
	}, env.received[0])
}

func TestDatagramBroadcast(t *testing.T) {
	env := newMemTestEnv(t)
	env.peer.Open(54124, &transport.Endpoint{IP: nodeIP}, 54123)
	s := env.node.Open(54123, &transport.Endpoint{IP: transport.BroadcastIP}, 54124)
	require.NoError(t, env.send(s, 7))
	env.peer.Pump()
	require.Len(t, env.received, 1)
	require.Equal(t, []byte{7}, env.received[0].Data)
}

func TestDatagramWrongPort(t *testing.T) {
	env := newMemTestEnv(t)
	env.peer.Open(1000, &transport.Endpoint{IP: nodeIP}, 54123)
	s := env.node.Open(54123, &transport.Endpoint{IP: transport.BroadcastIP}, 54124)
	require.NoError(t, env.send(s, 7))
	env.peer.Pump()
	require.Empty(t, env.received)
}

func TestSocketLifecycle(t *testing.T) {
	env := newMemTestEnv(t)
	peer := &transport.Endpoint{IP: peerIP}
	require.Equal(t, transport.InvalidSocket, env.node.Open(0, peer, 1))
	require.Equal(t, transport.InvalidSocket, env.node.Open(1, nil, 1))
	s := env.node.Open(54123, peer, 54124)
	require.True(t, s.IsValid())
	require.Equal(t, transport.InvalidSocket, env.node.Open(54123, peer, 54124))

	env.node.SetSendReady(false)
	require.False(t, env.node.IsSendReady(s))
	env.node.SetSendReady(true)
	require.True(t, env.node.IsSendReady(s))

	require.NoError(t, env.node.Close(s))
	require.False(t, env.node.IsSendReady(s))
	require.Equal(t, transport.ErrInvalidSocket, env.node.Close(s))
	require.Equal(t, transport.ErrInvalidSocket, env.node.Flush(s))
	require.False(t, env.node.IsSendReady(transport.InvalidSocket))
}

func TestResolveReady(t *testing.T) {
	env := newMemTestEnv(t)
	env.node.SetResolveReady(false)
	require.False(t, env.node.IsResolveReady())
	env.node.SetResolveReady(true)
	require.True(t, env.node.IsResolveReady())
}
