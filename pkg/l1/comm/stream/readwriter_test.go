package stream

import (
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadWriter(t *testing.T) {
	var buf bytes.Buffer
	rw := New(&buf)
	require.NoError(t, rw.WritePacket([]byte("abc")))
	require.NoError(t, rw.WritePacket(nil))
	require.Equal(t, []byte{3, 0, 0, 0, 'a', 'b', 'c', 0, 0, 0, 0}, buf.Bytes())

	pkt, err := rw.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), pkt)
	pkt, err = rw.ReadPacket()
	require.NoError(t, err)
	require.Empty(t, pkt)
	_, err = rw.ReadPacket()
	require.Error(t, err)
	require.NoError(t, rw.Close())
}

func TestReadWriterOversize(t *testing.T) {
	var buf bytes.Buffer
	rw := New(&buf)
	require.Error(t, rw.WritePacket(make([]byte, MaxPacketSize+1)))
	buf.Write([]byte{0xff, 0xff, 0xff, 0xff})
	_, err := rw.ReadPacket()
	require.Error(t, err)
}

func TestReadWriterConn(t *testing.T) {
	a, b := net.Pipe()
	ra, rb := New(a), New(b)
	defer ra.Close()
	defer rb.Close()
	go func() {
		ra.WritePacket([]byte("ping"))
	}()
	pkt, err := rb.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, []byte("ping"), pkt)
}
