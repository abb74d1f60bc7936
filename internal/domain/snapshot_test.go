package domain

import (
	"testing"
	"time"
)

func snap(pairs ...string) Snapshot {
	s := make(Snapshot)
	for i := 0; i+1 < len(pairs); i += 2 {
		s[pairs[i]] = Binding{IP: pairs[i], HWAddr: pairs[i+1], ObserverID: "Org1"}
	}
	return s
}

func TestDiff(t *testing.T) {
	t.Run("changed and new", func(t *testing.T) {
		known := snap("10.0.0.5", "aa:aa:aa:aa:aa:aa")
		next := snap("10.0.0.5", "bb:bb:bb:bb:bb:bb", "10.0.0.9", "cc:cc:cc:cc:cc:cc")

		got := Diff(known, next)
		if len(got) != 2 {
			t.Fatalf("expected 2 classifications, got %d", len(got))
		}

		if got[0].Type != EventChanged || got[0].Current.IP != "10.0.0.5" {
			t.Errorf("expected changed for 10.0.0.5, got %+v", got[0])
		}
		if got[0].Previous != "aa:aa:aa:aa:aa:aa" || got[0].Current.HWAddr != "bb:bb:bb:bb:bb:bb" {
			t.Errorf("unexpected change payload: %+v", got[0])
		}
		if got[1].Type != EventNew || got[1].Current.IP != "10.0.0.9" {
			t.Errorf("expected new for 10.0.0.9, got %+v", got[1])
		}
	})

	t.Run("identical snapshot is unchanged", func(t *testing.T) {
		known := snap("10.0.0.5", "aa:aa:aa:aa:aa:aa")
		got := Diff(known, known.Clone())
		if len(got) != 1 || got[0].Type != EventUnchanged {
			t.Errorf("expected one unchanged, got %+v", got)
		}
	})

	t.Run("empty known reports everything new", func(t *testing.T) {
		next := snap("10.0.0.1", "aa:aa:aa:aa:aa:aa", "10.0.0.2", "bb:bb:bb:bb:bb:bb")
		for _, c := range Diff(nil, next) {
			if c.Type != EventNew {
				t.Errorf("expected new for %s, got %s", c.Current.IP, c.Type)
			}
		}
	})

	t.Run("ips missing from next are not reported", func(t *testing.T) {
		known := snap("10.0.0.1", "aa:aa:aa:aa:aa:aa")
		if got := Diff(known, Snapshot{}); len(got) != 0 {
			t.Errorf("expected no classifications, got %+v", got)
		}
	})
}

func TestBuildSnapshot(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("latest recorded wins", func(t *testing.T) {
		s := BuildSnapshot([]Binding{
			{IP: "10.0.0.1", HWAddr: "bb:bb:bb:bb:bb:bb", RecordedAt: t0.Add(time.Minute)},
			{IP: "10.0.0.1", HWAddr: "aa:aa:aa:aa:aa:aa", RecordedAt: t0},
		})
		if hw, _ := s.HWAddr("10.0.0.1"); hw != "bb:bb:bb:bb:bb:bb" {
			t.Errorf("expected latest hwaddr, got %s", hw)
		}
	})

	t.Run("later position wins on tie", func(t *testing.T) {
		s := BuildSnapshot([]Binding{
			{IP: "10.0.0.1", HWAddr: "aa:aa:aa:aa:aa:aa", RecordedAt: t0},
			{IP: "10.0.0.1", HWAddr: "bb:bb:bb:bb:bb:bb", RecordedAt: t0},
		})
		if hw, _ := s.HWAddr("10.0.0.1"); hw != "bb:bb:bb:bb:bb:bb" {
			t.Errorf("expected later entry, got %s", hw)
		}
	})
}

func TestClassificationEvent(t *testing.T) {
	at := time.Now()
	c := Classification{
		Type:     EventChanged,
		Current:  Binding{IP: "10.0.0.5", HWAddr: "bb:bb:bb:bb:bb:bb", ObserverID: "Org3"},
		Previous: "aa:aa:aa:aa:aa:aa",
	}
	ev := c.Event(at)

	if ev.ID == "" {
		t.Error("expected event ID")
	}
	if ev.PreviousHWAddr != "aa:aa:aa:aa:aa:aa" {
		t.Errorf("expected previous hwaddr, got %q", ev.PreviousHWAddr)
	}
	if ev.ObserverID != "Org3" {
		t.Errorf("expected observer Org3, got %q", ev.ObserverID)
	}
	if !ev.IsSpoofingSignal() {
		t.Error("expected changed event to be a spoofing signal")
	}

	c.Type = EventUnchanged
	if ev := c.Event(at); ev.PreviousHWAddr != "" {
		t.Errorf("unchanged event must not carry previous hwaddr, got %q", ev.PreviousHWAddr)
	}
}
