package udp

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/robotalks/relaynode/pkg/transport"
)

// NeighborTable looks up resolved hardware addresses.
type NeighborTable interface {
	Lookup(ip transport.IPAddr) (transport.HardwareAddr, bool)
}

// arpFlagComplete is ATF_COM, the entry is resolved.
const arpFlagComplete = 0x02

// DefaultProcARPPath is the Linux kernel ARP table.
const DefaultProcARPPath = "/proc/net/arp"

// ParseARPTable parses the format of /proc/net/arp, keeping complete
// entries only:
//
//	IP address       HW type     Flags       HW address            Mask     Device
//	10.1.0.101       0x1         0x2         00:04:a3:00:00:65     *        eth0
func ParseARPTable(r io.Reader) (map[transport.IPAddr]transport.HardwareAddr, error) {
	table := make(map[transport.IPAddr]transport.HardwareAddr)
	scanner := bufio.NewScanner(r)
	header := true
	for scanner.Scan() {
		if header {
			header = false
			continue
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		ip, err := transport.ParseIP(fields[0])
		if err != nil {
			continue
		}
		flags, err := strconv.ParseUint(strings.TrimPrefix(fields[2], "0x"), 16, 32)
		if err != nil || flags&arpFlagComplete == 0 {
			continue
		}
		mac, err := transport.ParseHardwareAddr(fields[3])
		if err != nil || mac.IsZero() {
			continue
		}
		table[ip] = mac
	}
	return table, scanner.Err()
}

// ProcNeighbors reads the kernel ARP table on every lookup.
type ProcNeighbors struct {
	Path string
}

// Lookup implements NeighborTable.
func (p *ProcNeighbors) Lookup(ip transport.IPAddr) (transport.HardwareAddr, bool) {
	path := p.Path
	if path == "" {
		path = DefaultProcARPPath
	}
	f, err := os.Open(path)
	if err != nil {
		return transport.HardwareAddr{}, false
	}
	defer f.Close()
	table, err := ParseARPTable(f)
	if err != nil {
		return transport.HardwareAddr{}, false
	}
	mac, ok := table[ip]
	return mac, ok
}

// StaticNeighbors is a fixed table, consulted before Fallback.
type StaticNeighbors struct {
	Fallback NeighborTable

	table map[transport.IPAddr]transport.HardwareAddr
	lock  sync.RWMutex
}

// Add binds ip to mac.
func (s *StaticNeighbors) Add(ip transport.IPAddr, mac transport.HardwareAddr) {
	s.lock.Lock()
	if s.table == nil {
		s.table = make(map[transport.IPAddr]transport.HardwareAddr)
	}
	s.table[ip] = mac
	s.lock.Unlock()
}

// Lookup implements NeighborTable.
func (s *StaticNeighbors) Lookup(ip transport.IPAddr) (transport.HardwareAddr, bool) {
	s.lock.RLock()
	mac, ok := s.table[ip]
	s.lock.RUnlock()
	if !ok && s.Fallback != nil {
		return s.Fallback.Lookup(ip)
	}
	return mac, ok
}
