// Package transport defines the connectionless datagram service the
// controller talks to its peer through.
package transport

import (
	"fmt"
	"net"
)

// IPAddr is a 4-octet network address.
type IPAddr [4]byte

// BroadcastIP is the limited broadcast address.
var BroadcastIP = IPAddr{255, 255, 255, 255}

// ParseIP parses a dotted IPv4 address.
func ParseIP(s string) (IPAddr, error) {
	var a IPAddr
	ip := net.ParseIP(s).To4()
	if ip == nil {
		return a, fmt.Errorf("invalid IPv4 address %q", s)
	}
	copy(a[:], ip)
	return a, nil
}

// IsBroadcast indicates the limited broadcast address.
func (a IPAddr) IsBroadcast() bool {
	return a == BroadcastIP
}

// IP converts to net.IP.
func (a IPAddr) IP() net.IP {
	return net.IPv4(a[0], a[1], a[2], a[3])
}

// String implements fmt.Stringer.
func (a IPAddr) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", a[0], a[1], a[2], a[3])
}

// HardwareAddr is a 6-octet link-layer address.
type HardwareAddr [6]byte

// BroadcastHardwareAddr is what broadcast network addresses resolve to.
var BroadcastHardwareAddr = HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// ParseHardwareAddr parses a colon separated MAC address.
func ParseHardwareAddr(s string) (HardwareAddr, error) {
	var a HardwareAddr
	mac, err := net.ParseMAC(s)
	if err != nil {
		return a, err
	}
	if len(mac) != len(a) {
		return a, fmt.Errorf("invalid MAC-48 address %q", s)
	}
	copy(a[:], mac)
	return a, nil
}

// IsZero indicates the address is not set.
func (a HardwareAddr) IsZero() bool {
	return a == HardwareAddr{}
}

// String implements fmt.Stringer.
func (a HardwareAddr) String() string {
	return net.HardwareAddr(a[:]).String()
}

// Endpoint is the remote peer the controller reports to. MAC is not
// valid until the network address is resolved.
type Endpoint struct {
	IP         IPAddr
	MAC        HardwareAddr
	LocalPort  uint16
	RemotePort uint16
}

// String implements fmt.Stringer.
func (e *Endpoint) String() string {
	return fmt.Sprintf("%s:%d (local %d)", e.IP, e.RemotePort, e.LocalPort)
}

// Socket is an opaque handle of an opened datagram socket.
type Socket int

// InvalidSocket is returned by Open on failure.
const InvalidSocket Socket = -1

// IsValid indicates the socket was opened successfully.
func (s Socket) IsValid() bool {
	return s >= 0
}

// Resolver is the address resolution part of Service.
type Resolver interface {
	// IsResolveReady indicates a resolution request can be sent now.
	IsResolveReady() bool
	// Resolve sends a resolution request for the network address.
	Resolve(ip IPAddr)
	// IsResolved reports the hardware address bound to ip, if known.
	IsResolved(ip IPAddr) (HardwareAddr, bool)
}

// Sender is the datagram sending part of Service.
type Sender interface {
	// IsSendReady indicates the socket has a transmit buffer available.
	IsSendReady(s Socket) bool
	// Put enqueues one byte in the transmit buffer.
	Put(s Socket, b byte)
	// Flush sends the transmit buffer as one datagram and frees it.
	Flush(s Socket) error
}

// Service is the connectionless datagram service. All methods return
// promptly, implementations never block the caller on the network.
type Service interface {
	Resolver
	Sender
	// Open opens a socket bound to localPort, addressed to peer:remotePort.
	// It returns InvalidSocket on failure.
	Open(localPort uint16, peer *Endpoint, remotePort uint16) Socket
	// Close releases the socket.
	Close(s Socket) error
	// Pump processes frames arrived since the last call.
	Pump()
}

// Datagram is a received datagram.
type Datagram struct {
	Socket  Socket
	SrcIP   IPAddr
	SrcPort uint16
	Data    []byte
}

// DatagramHandler is called by Pump for every datagram received on an
// opened socket.
type DatagramHandler interface {
	HandleDatagram(Datagram)
}

// HandleDatagramFunc is the func form of DatagramHandler.
type HandleDatagramFunc func(Datagram)

// HandleDatagram implements DatagramHandler.
func (f HandleDatagramFunc) HandleDatagram(d Datagram) {
	f(d)
}
