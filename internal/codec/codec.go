package codec

import (
	"fmt"
	"io"
	"sort"

	"arpledger/internal/domain"
)

// Exporter writes a binding table in one format
type Exporter interface {
	Export(bindings []domain.Binding, w io.Writer) error
	Format() string
}

// ForFormat returns the exporter for name
func ForFormat(name string) (Exporter, error) {
	switch name {
	case "json":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	default:
		return nil, fmt.Errorf("unknown export format %q (want json or yaml)", name)
	}
}

// SnapshotBindings flattens a snapshot ordered by ip
func SnapshotBindings(s domain.Snapshot) []domain.Binding {
	out := make([]domain.Binding, 0, len(s))
	for _, ip := range s.IPs() {
		out = append(out, s[ip])
	}
	return out
}

// sortedByIP returns a copy ordered by ip, keeping input order for equal ips
func sortedByIP(bindings []domain.Binding) []domain.Binding {
	out := append([]domain.Binding(nil), bindings...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].IP < out[j].IP })
	return out
}
