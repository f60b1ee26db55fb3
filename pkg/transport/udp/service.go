// Package udp implements transport.Service on host UDP sockets.
// Address resolution is done by the kernel, Resolve only provokes it
// and IsResolved consults the neighbour table.
package udp

import (
	"fmt"
	"net"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/ipv4"

	fx "github.com/robotalks/relaynode/pkg/framework"
	"github.com/robotalks/relaynode/pkg/transport"
)

const (
	// MaxDatagramSize is the size of a socket transmit buffer.
	MaxDatagramSize = 512
	// DefaultQueueSize is the number of received datagrams buffered between pumps.
	DefaultQueueSize = 64
	// probePort is the discard port, where resolution probes are sent.
	probePort = 9
)

// Service implements transport.Service.
type Service struct {
	Handler   transport.DatagramHandler
	Neighbors NeighborTable
	// TTL sets the IP TTL on opened sockets when positive.
	TTL int

	lock    sync.Mutex
	sockets []*socket
	probe   *net.UDPConn
	rxCh    chan transport.Datagram
}

type socket struct {
	conn *net.UDPConn
	peer *net.UDPAddr
	buf  []byte
	done chan struct{}
}

// New creates a Service using the kernel ARP table.
func New() *Service {
	return &Service{
		Neighbors: &ProcNeighbors{},
		rxCh:      make(chan transport.Datagram, DefaultQueueSize),
	}
}

// Open implements transport.Service.
func (s *Service) Open(localPort uint16, peer *transport.Endpoint, remotePort uint16) transport.Socket {
	if peer == nil {
		return transport.InvalidSocket
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: int(localPort)})
	if err != nil {
		glog.Warningf("open UDP port %d error: %v", localPort, err)
		return transport.InvalidSocket
	}
	if s.TTL > 0 {
		if err := ipv4.NewConn(conn).SetTTL(s.TTL); err != nil {
			glog.Warningf("set TTL %d error: %v", s.TTL, err)
		}
	}
	sock := &socket{
		conn: conn,
		peer: &net.UDPAddr{IP: peer.IP.IP(), Port: int(remotePort)},
		done: make(chan struct{}),
	}
	s.lock.Lock()
	s.sockets = append(s.sockets, sock)
	handle := transport.Socket(len(s.sockets) - 1)
	s.lock.Unlock()
	go s.readLoop(handle, sock)
	glog.Infof("UDP socket %d opened on %s to %s", handle, conn.LocalAddr(), sock.peer)
	return handle
}

// Close implements transport.Service.
func (s *Service) Close(h transport.Socket) error {
	s.lock.Lock()
	sock := s.socketLocked(h)
	if sock != nil {
		s.sockets[h] = nil
	}
	s.lock.Unlock()
	if sock == nil {
		return transport.ErrInvalidSocket
	}
	err := sock.conn.Close()
	<-sock.done
	return err
}

// CloseAll closes all sockets and the probe socket.
func (s *Service) CloseAll() error {
	var errs fx.AggregatedError
	s.lock.Lock()
	count := len(s.sockets)
	probe := s.probe
	s.probe = nil
	s.lock.Unlock()
	for i := 0; i < count; i++ {
		if err := s.Close(transport.Socket(i)); err != transport.ErrInvalidSocket {
			errs.Add(err)
		}
	}
	if probe != nil {
		errs.Add(probe.Close())
	}
	return errs.Aggregate()
}

// LocalAddr returns the local address of an opened socket.
func (s *Service) LocalAddr(h transport.Socket) net.Addr {
	s.lock.Lock()
	defer s.lock.Unlock()
	if sock := s.socketLocked(h); sock != nil {
		return sock.conn.LocalAddr()
	}
	return nil
}

// IsResolveReady implements transport.Service.
func (s *Service) IsResolveReady() bool {
	return true
}

// Resolve implements transport.Service. An empty datagram to the
// discard port makes the kernel send a resolution request.
func (s *Service) Resolve(ip transport.IPAddr) {
	if ip.IsBroadcast() {
		return
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.probe == nil {
		conn, err := net.ListenUDP("udp4", nil)
		if err != nil {
			glog.Warningf("open probe socket error: %v", err)
			return
		}
		s.probe = conn
	}
	if _, err := s.probe.WriteToUDP(nil, &net.UDPAddr{IP: ip.IP(), Port: probePort}); err != nil {
		glog.V(2).Infof("probe %s error: %v", ip, err)
	}
}

// IsResolved implements transport.Service.
func (s *Service) IsResolved(ip transport.IPAddr) (transport.HardwareAddr, bool) {
	if ip.IsBroadcast() {
		return transport.BroadcastHardwareAddr, true
	}
	if s.Neighbors == nil {
		return transport.HardwareAddr{}, false
	}
	return s.Neighbors.Lookup(ip)
}

// IsSendReady implements transport.Service.
func (s *Service) IsSendReady(h transport.Socket) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	sock := s.socketLocked(h)
	return sock != nil && len(sock.buf) < MaxDatagramSize
}

// Put implements transport.Service.
func (s *Service) Put(h transport.Socket, b byte) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if sock := s.socketLocked(h); sock != nil && len(sock.buf) < MaxDatagramSize {
		sock.buf = append(sock.buf, b)
	}
}

// Flush implements transport.Service.
func (s *Service) Flush(h transport.Socket) error {
	s.lock.Lock()
	sock := s.socketLocked(h)
	if sock == nil {
		s.lock.Unlock()
		return transport.ErrInvalidSocket
	}
	data := sock.buf
	sock.buf = nil
	s.lock.Unlock()
	if _, err := sock.conn.WriteToUDP(data, sock.peer); err != nil {
		return fmt.Errorf("send to %s: %w", sock.peer, err)
	}
	return nil
}

// Pump implements transport.Service. It dispatches datagrams received
// by the socket readers without waiting for more.
func (s *Service) Pump() {
	for {
		select {
		case d := <-s.rxCh:
			if h := s.Handler; h != nil {
				h.HandleDatagram(d)
			}
		default:
			return
		}
	}
}

func (s *Service) readLoop(h transport.Socket, sock *socket) {
	defer close(sock.done)
	buf := make([]byte, 1500)
	for {
		n, addr, err := sock.conn.ReadFromUDP(buf)
		if err != nil {
			glog.V(4).Infof("UDP socket %d reader stopped: %v", h, err)
			return
		}
		d := transport.Datagram{
			Socket:  h,
			SrcPort: uint16(addr.Port),
			Data:    append([]byte(nil), buf[:n]...),
		}
		if ip4 := addr.IP.To4(); ip4 != nil {
			copy(d.SrcIP[:], ip4)
		}
		select {
		case s.rxCh <- d:
		default:
			glog.V(2).Infof("UDP socket %d queue full, datagram from %s dropped", h, addr)
		}
	}
}

func (s *Service) socketLocked(h transport.Socket) *socket {
	if !h.IsValid() || int(h) >= len(s.sockets) {
		return nil
	}
	return s.sockets[h]
}
