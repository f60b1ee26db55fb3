// Package mem is an in-memory LAN implementing transport.Service for
// simulation and tests. Frames are queued on the receiving host and
// only processed when that host is pumped, so resolution takes a
// round trip of pumps like on a real link.
package mem

import (
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/relaynode/pkg/transport"
)

// MaxDatagramSize is the size of a socket transmit buffer.
const MaxDatagramSize = 512

type frameKind int

const (
	frameResolveRequest frameKind = iota
	frameResolveReply
	frameDatagram
)

type frame struct {
	kind    frameKind
	srcIP   transport.IPAddr
	srcMAC  transport.HardwareAddr
	dstIP   transport.IPAddr
	dstMAC  transport.HardwareAddr
	srcPort uint16
	dstPort uint16
	data    []byte
}

// Network connects Hosts.
type Network struct {
	hosts []*Host
	lock  sync.RWMutex
}

// NewNetwork creates an empty Network.
func NewNetwork() *Network {
	return &Network{}
}

// Attach creates a Host on the network.
func (n *Network) Attach(ip transport.IPAddr, mac transport.HardwareAddr) *Host {
	h := &Host{
		IP:      ip,
		MAC:     mac,
		network: n,
		cache:   make(map[transport.IPAddr]transport.HardwareAddr),
	}
	n.lock.Lock()
	n.hosts = append(n.hosts, h)
	n.lock.Unlock()
	return h
}

func (n *Network) deliver(from *Host, f frame) {
	var targets []*Host
	n.lock.RLock()
	for _, h := range n.hosts {
		if h == from {
			continue
		}
		if f.dstMAC == transport.BroadcastHardwareAddr || f.dstMAC == h.MAC {
			targets = append(targets, h)
		}
	}
	n.lock.RUnlock()
	for _, h := range targets {
		h.enqueue(f)
	}
}

// Host is a node on the Network and implements transport.Service.
type Host struct {
	IP      transport.IPAddr
	MAC     transport.HardwareAddr
	Handler transport.DatagramHandler

	network *Network
	lock    sync.Mutex
	inbox   []frame
	cache   map[transport.IPAddr]transport.HardwareAddr
	sockets []*socket

	silent         bool
	sendBlocked    bool
	resolveBlocked bool
	requests       int
	sent           int
}

type socket struct {
	localPort  uint16
	remotePort uint16
	peer       *transport.Endpoint
	buf        []byte
	open       bool
}

// SetSilent stops the host answering resolution requests.
func (h *Host) SetSilent(silent bool) {
	h.lock.Lock()
	h.silent = silent
	h.lock.Unlock()
}

// SetSendReady controls the result of IsSendReady on all sockets.
func (h *Host) SetSendReady(ready bool) {
	h.lock.Lock()
	h.sendBlocked = !ready
	h.lock.Unlock()
}

// SetResolveReady controls the result of IsResolveReady.
func (h *Host) SetResolveReady(ready bool) {
	h.lock.Lock()
	h.resolveBlocked = !ready
	h.lock.Unlock()
}

// ResolveRequests returns the number of resolution requests sent.
func (h *Host) ResolveRequests() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.requests
}

// DatagramsSent returns the number of datagrams flushed.
func (h *Host) DatagramsSent() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.sent
}

// Open implements transport.Service.
func (h *Host) Open(localPort uint16, peer *transport.Endpoint, remotePort uint16) transport.Socket {
	h.lock.Lock()
	defer h.lock.Unlock()
	if localPort == 0 || peer == nil {
		return transport.InvalidSocket
	}
	for _, s := range h.sockets {
		if s.open && s.localPort == localPort {
			return transport.InvalidSocket
		}
	}
	h.sockets = append(h.sockets, &socket{
		localPort:  localPort,
		remotePort: remotePort,
		peer:       peer,
		open:       true,
	})
	return transport.Socket(len(h.sockets) - 1)
}

// Close implements transport.Service.
func (h *Host) Close(s transport.Socket) error {
	h.lock.Lock()
	defer h.lock.Unlock()
	sock := h.socketLocked(s)
	if sock == nil {
		return transport.ErrInvalidSocket
	}
	sock.open, sock.buf = false, nil
	return nil
}

// IsResolveReady implements transport.Service.
func (h *Host) IsResolveReady() bool {
	h.lock.Lock()
	defer h.lock.Unlock()
	return !h.resolveBlocked
}

// Resolve implements transport.Service.
func (h *Host) Resolve(ip transport.IPAddr) {
	if ip.IsBroadcast() {
		return
	}
	h.lock.Lock()
	h.requests++
	h.lock.Unlock()
	glog.V(4).Infof("%s: who-has %s", h.IP, ip)
	h.network.deliver(h, frame{
		kind:   frameResolveRequest,
		srcIP:  h.IP,
		srcMAC: h.MAC,
		dstIP:  ip,
		dstMAC: transport.BroadcastHardwareAddr,
	})
}

// IsResolved implements transport.Service.
func (h *Host) IsResolved(ip transport.IPAddr) (transport.HardwareAddr, bool) {
	if ip.IsBroadcast() {
		return transport.BroadcastHardwareAddr, true
	}
	h.lock.Lock()
	defer h.lock.Unlock()
	mac, ok := h.cache[ip]
	return mac, ok
}

// IsSendReady implements transport.Service.
func (h *Host) IsSendReady(s transport.Socket) bool {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.socketLocked(s) != nil && !h.sendBlocked
}

// Put implements transport.Service.
func (h *Host) Put(s transport.Socket, b byte) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if sock := h.socketLocked(s); sock != nil && len(sock.buf) < MaxDatagramSize {
		sock.buf = append(sock.buf, b)
	}
}

// Flush implements transport.Service.
func (h *Host) Flush(s transport.Socket) error {
	h.lock.Lock()
	sock := h.socketLocked(s)
	if sock == nil {
		h.lock.Unlock()
		return transport.ErrInvalidSocket
	}
	data := sock.buf
	sock.buf = nil
	dstMAC, ok := transport.BroadcastHardwareAddr, true
	if !sock.peer.IP.IsBroadcast() {
		dstMAC, ok = h.cache[sock.peer.IP]
	}
	if ok {
		h.sent++
	}
	h.lock.Unlock()
	if !ok {
		return transport.ErrNotResolved
	}
	h.network.deliver(h, frame{
		kind:    frameDatagram,
		srcIP:   h.IP,
		srcMAC:  h.MAC,
		dstIP:   sock.peer.IP,
		dstMAC:  dstMAC,
		srcPort: sock.localPort,
		dstPort: sock.remotePort,
		data:    data,
	})
	return nil
}

// Pump implements transport.Service.
func (h *Host) Pump() {
	h.lock.Lock()
	frames := h.inbox
	h.inbox = nil
	h.lock.Unlock()
	for _, f := range frames {
		switch f.kind {
		case frameResolveRequest:
			h.answer(f)
		case frameResolveReply:
			h.lock.Lock()
			h.cache[f.srcIP] = f.srcMAC
			h.lock.Unlock()
			glog.V(4).Infof("%s: %s is-at %s", h.IP, f.srcIP, f.srcMAC)
		case frameDatagram:
			h.dispatch(f)
		}
	}
}

func (h *Host) answer(f frame) {
	h.lock.Lock()
	silent := h.silent
	h.lock.Unlock()
	if f.dstIP != h.IP || silent {
		return
	}
	h.network.deliver(h, frame{
		kind:   frameResolveReply,
		srcIP:  h.IP,
		srcMAC: h.MAC,
		dstIP:  f.srcIP,
		dstMAC: f.srcMAC,
	})
}

func (h *Host) dispatch(f frame) {
	if f.dstIP != h.IP && !f.dstIP.IsBroadcast() {
		return
	}
	h.lock.Lock()
	sock := transport.InvalidSocket
	for n, s := range h.sockets {
		if s.open && s.localPort == f.dstPort {
			sock = transport.Socket(n)
			break
		}
	}
	handler := h.Handler
	h.lock.Unlock()
	if !sock.IsValid() {
		glog.V(4).Infof("%s: no socket on port %d", h.IP, f.dstPort)
		return
	}
	if handler != nil {
		handler.HandleDatagram(transport.Datagram{
			Socket:  sock,
			SrcIP:   f.srcIP,
			SrcPort: f.srcPort,
			Data:    f.data,
		})
	}
}

func (h *Host) enqueue(f frame) {
	h.lock.Lock()
	h.inbox = append(h.inbox, f)
	h.lock.Unlock()
}

func (h *Host) socketLocked(s transport.Socket) *socket {
	if !s.IsValid() || int(s) >= len(h.sockets) {
		return nil
	}
	if sock := h.sockets[s]; sock.open {
		return sock
	}
	return nil
}
