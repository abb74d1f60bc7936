package codec

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"arpledger/internal/domain"
)

func sampleSnapshot() domain.Snapshot {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return domain.Snapshot{
		"10.0.0.9": {IP: "10.0.0.9", HWAddr: "cc:cc:cc:cc:cc:cc", ObserverID: "Org2MSP", Kind: domain.KindReply, RecordedAt: at},
		"10.0.0.5": {IP: "10.0.0.5", HWAddr: "bb:bb:bb:bb:bb:bb", ObserverID: "Org1MSP", Kind: domain.KindRequest, RecordedAt: at},
	}
}

func TestForFormat(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"json", "json", false},
		{"yaml", "yaml", false},
		{"yml", "yaml", false},
		{"csv", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := ForFormat(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ForFormat(%q) error = %v", tt.name, err)
			}
			if err == nil && e.Format() != tt.want {
				t.Errorf("Format() = %q, want %q", e.Format(), tt.want)
			}
		})
	}
}

func TestJSONExport(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONCodec().Export(SnapshotBindings(sampleSnapshot()), &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	var entries []map[string]string
	if err := json.Unmarshal(buf.Bytes(), &entries); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0]["ipAddress"] != "10.0.0.5" || entries[0]["macAddress"] != "bb:bb:bb:bb:bb:bb" {
		t.Errorf("first entry = %v", entries[0])
	}
	if entries[1]["recordedBy"] != "Org2MSP" || entries[1]["timestamp"] != "2024-01-01T00:00:00Z" {
		t.Errorf("second entry = %v", entries[1])
	}
}

func TestJSONExportEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONCodec().Export(nil, &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty export = %q", buf.String())
	}
}

func TestYAMLExport(t *testing.T) {
	var buf bytes.Buffer
	if err := NewYAMLCodec().Export(SnapshotBindings(sampleSnapshot()), &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	var doc yamlDocument
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not YAML: %v", err)
	}
	if doc.Count != 2 || len(doc.Bindings) != 2 {
		t.Fatalf("doc = %+v", doc)
	}
	if doc.Bindings[0].IP != "10.0.0.5" || doc.Bindings[1].Kind != "reply" {
		t.Errorf("bindings = %+v", doc.Bindings)
	}
}
