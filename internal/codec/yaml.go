package codec

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"arpledger/internal/domain"
)

// YAMLCodec exports bindings grouped under a single document
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

type yamlDocument struct {
	Count    int           `yaml:"count"`
	Bindings []yamlBinding `yaml:"bindings"`
}

type yamlBinding struct {
	IP         string `yaml:"ip"`
	HWAddr     string `yaml:"hwaddr"`
	Interface  string `yaml:"interface,omitempty"`
	ObserverID string `yaml:"observer,omitempty"`
	Kind       string `yaml:"kind"`
	RecordedAt string `yaml:"recorded_at,omitempty"`
}

// Export writes bindings as YAML
func (c *YAMLCodec) Export(bindings []domain.Binding, w io.Writer) error {
	doc := yamlDocument{Count: len(bindings)}
	for _, b := range sortedByIP(bindings) {
		doc.Bindings = append(doc.Bindings, yamlBinding{
			IP:         b.IP,
			HWAddr:     b.HWAddr,
			Interface:  b.Interface,
			ObserverID: b.ObserverID,
			Kind:       string(b.Kind),
			RecordedAt: formatTimestamp(b),
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

func formatTimestamp(b domain.Binding) string {
	if b.RecordedAt.IsZero() {
		return ""
	}
	return b.RecordedAt.UTC().Format(time.RFC3339)
}
