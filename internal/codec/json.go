package codec

import (
	"encoding/json"
	"io"

	"arpledger/internal/domain"
)

// JSONCodec exports bindings in the ledger's GetAllARPEntries shape
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

type jsonEntry struct {
	IP         string `json:"ipAddress"`
	MAC        string `json:"macAddress"`
	Interface  string `json:"interface,omitempty"`
	RecordedBy string `json:"recordedBy,omitempty"`
	Kind       string `json:"kind"`
	Timestamp  string `json:"timestamp"`
}

// Export writes bindings as an indented JSON array
func (c *JSONCodec) Export(bindings []domain.Binding, w io.Writer) error {
	entries := make([]jsonEntry, 0, len(bindings))
	for _, b := range sortedByIP(bindings) {
		entries = append(entries, jsonEntry{
			IP:         b.IP,
			MAC:        b.HWAddr,
			Interface:  b.Interface,
			RecordedBy: b.ObserverID,
			Kind:       string(b.Kind),
			Timestamp:  formatTimestamp(b),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}
