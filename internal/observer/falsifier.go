package observer

import (
	"net"
	"sync"
)

// Falsifier derives consistent fake hardware addresses for targeted IPs.
// The first derivation for an ip is kept for the process lifetime so a
// lying observer never contradicts itself.
type Falsifier struct {
	offset  byte
	targets map[string]struct{}

	mu    sync.RWMutex
	table map[string]string // ip -> fake hwaddr
}

// NewFalsifier creates a falsifier for the given normalized target IPs
func NewFalsifier(offset byte, targets []string) *Falsifier {
	f := &Falsifier{
		offset:  offset,
		targets: make(map[string]struct{}, len(targets)),
		table:   make(map[string]string),
	}
	for _, ip := range targets {
		f.targets[ip] = struct{}{}
	}
	return f
}

// Targets reports whether ip is in the target set
func (f *Falsifier) Targets(ip string) bool {
	_, ok := f.targets[ip]
	return ok
}

// TargetIPs returns the configured targets
func (f *Falsifier) TargetIPs() []string {
	out := make([]string, 0, len(f.targets))
	for ip := range f.targets {
		out = append(out, ip)
	}
	return out
}

// Falsify returns the fake hwaddr for ip, deriving it from hwaddr on first use
func (f *Falsifier) Falsify(ip, hwaddr string) string {
	f.mu.RLock()
	fake, ok := f.table[ip]
	f.mu.RUnlock()
	if ok {
		return fake
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if fake, ok := f.table[ip]; ok {
		return fake
	}
	fake = shiftHWAddr(hwaddr, f.offset)
	f.table[ip] = fake
	return fake
}

// Lookup returns the fake hwaddr already derived for ip
func (f *Falsifier) Lookup(ip string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	fake, ok := f.table[ip]
	return fake, ok
}

// shiftHWAddr adds offset to every octet, mod 256. hwaddr must be normalized.
func shiftHWAddr(hwaddr string, offset byte) string {
	hw, err := net.ParseMAC(hwaddr)
	if err != nil {
		return hwaddr
	}
	out := make(net.HardwareAddr, len(hw))
	for i, b := range hw {
		out[i] = b + offset
	}
	return out.String()
}
