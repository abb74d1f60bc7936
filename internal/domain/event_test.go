package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewEvent(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cur := Binding{IP: "10.0.0.5", HWAddr: "bb:bb:bb:bb:bb:bb", ObserverID: "Org1MSP", Interface: "eth0"}

	tests := []struct {
		name     string
		typ      EventType
		previous string
		wantMsg  string
		wantPrev string
	}{
		{"new", EventNew, "", "New device: 10.0.0.5 -> bb:bb:bb:bb:bb:bb", ""},
		{"unchanged", EventUnchanged, "bb:bb:bb:bb:bb:bb", "Valid update: 10.0.0.5 -> bb:bb:bb:bb:bb:bb", ""},
		{"changed", EventChanged, "aa:aa:aa:aa:aa:aa", "MAC CHANGED! 10.0.0.5: aa:aa:aa:aa:aa:aa -> bb:bb:bb:bb:bb:bb", "aa:aa:aa:aa:aa:aa"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := NewEvent(tt.typ, cur, tt.previous, at)
			if ev.ID == "" {
				t.Error("expected an event id")
			}
			if ev.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", ev.Message, tt.wantMsg)
			}
			if ev.PreviousHWAddr != tt.wantPrev {
				t.Errorf("PreviousHWAddr = %q, want %q", ev.PreviousHWAddr, tt.wantPrev)
			}
			if ev.IsSpoofingSignal() != (tt.typ == EventChanged) {
				t.Errorf("IsSpoofingSignal() = %v", ev.IsSpoofingSignal())
			}
		})
	}
}

func TestEventJSONFieldNames(t *testing.T) {
	ev := NewEvent(EventChanged, Binding{IP: "10.0.0.5", HWAddr: "bb:bb:bb:bb:bb:bb", ObserverID: "Org2MSP"}, "aa:aa:aa:aa:aa:aa", time.Unix(0, 0).UTC())

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for _, key := range []string{"id", "eventType", "ipAddress", "macAddress", "previousMAC", "recordedBy", "timestamp", "message"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("missing field %q in %s", key, data)
		}
	}
	if _, ok := fields["interface"]; ok {
		t.Error("empty interface should be omitted")
	}
}
