package domain

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"
)

// ErrMalformed marks a binding that cannot be normalized
var ErrMalformed = errors.New("malformed binding")

// Kind is the ARP operation a binding was observed in
type Kind string

const (
	KindRequest Kind = "request"
	KindReply   Kind = "reply"
)

// ParseKind converts a string to Kind. Accepts the ARP opcodes "1" and "2".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "request", "1":
		return KindRequest, nil
	case "reply", "2":
		return KindReply, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrMalformed, s)
	}
}

// Binding is a single IP to hardware address fact, observed or reported
type Binding struct {
	IP         string    `json:"ip"`
	HWAddr     string    `json:"hwaddr"`
	ObserverID string    `json:"observer_id,omitempty"`
	Interface  string    `json:"interface,omitempty"`
	Kind       Kind      `json:"kind"`
	RecordedAt time.Time `json:"recorded_at"`
}

// DedupKey identifies an (ip, hwaddr) pair
type DedupKey struct {
	IP     string
	HWAddr string
}

// String returns the key in ip@hwaddr form
func (k DedupKey) String() string {
	return k.IP + "@" + k.HWAddr
}

// Key returns the dedup key of the binding. Call Normalize first.
func (b Binding) Key() DedupKey {
	return DedupKey{IP: b.IP, HWAddr: b.HWAddr}
}

// Normalize canonicalizes IP and hardware address in place.
// Returns ErrMalformed if either is missing or unparseable, or the kind is
// unknown; the binding is left untouched on error.
func (b *Binding) Normalize() error {
	ip, err := NormalizeIP(b.IP)
	if err != nil {
		return err
	}
	hw, err := NormalizeHWAddr(b.HWAddr)
	if err != nil {
		return err
	}
	kind := b.Kind
	switch kind {
	case KindRequest, KindReply:
	case "":
		kind = KindRequest
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrMalformed, b.Kind)
	}

	b.IP = ip
	b.HWAddr = hw
	b.Kind = kind
	return nil
}

// Normalized returns a normalized copy of the binding
func (b Binding) Normalized() (Binding, error) {
	err := b.Normalize()
	return b, err
}

// NormalizeIP returns the dotted-quad form of an IPv4 address
func NormalizeIP(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: empty ip", ErrMalformed)
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return "", fmt.Errorf("%w: ip %q: %v", ErrMalformed, s, err)
	}
	addr = addr.Unmap()
	if !addr.Is4() {
		return "", fmt.Errorf("%w: ip %q is not IPv4", ErrMalformed, s)
	}
	return addr.String(), nil
}

// NormalizeHWAddr returns the lower-case colon-hex form of a 48-bit MAC.
// Dash, dot and colon separated inputs are accepted.
func NormalizeHWAddr(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: empty hwaddr", ErrMalformed)
	}
	hw, err := net.ParseMAC(s)
	if err != nil {
		return "", fmt.Errorf("%w: hwaddr %q: %v", ErrMalformed, s, err)
	}
	if len(hw) != 6 {
		return "", fmt.Errorf("%w: hwaddr %q is not 48-bit", ErrMalformed, s)
	}
	return hw.String(), nil
}

// String returns a short human-readable form
func (b Binding) String() string {
	return fmt.Sprintf("%s %s -> %s", b.Kind, b.IP, b.HWAddr)
}
