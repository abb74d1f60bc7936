package domain

import (
	"errors"
	"testing"
)

func TestNormalizeHWAddr(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"AA:BB:CC:DD:EE:FF", "aa:bb:cc:dd:ee:ff", false},
		{"aa-bb-cc-dd-ee-ff", "aa:bb:cc:dd:ee:ff", false},
		{"aabb.ccdd.eeff", "aa:bb:cc:dd:ee:ff", false},
		{" 11:22:33:44:55:66 ", "11:22:33:44:55:66", false},
		{"", "", true},
		{"not-a-mac", "", true},
		{"00:00:00:00:fe:80:00:00:00:00:00:00:02:00:5e:10:00:00:00:01", "", true},
	}

	for _, tt := range tests {
		got, err := NormalizeHWAddr(tt.input)
		if tt.wantErr {
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("NormalizeHWAddr(%q) error = %v, want ErrMalformed", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeHWAddr(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeHWAddr(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalizeIP(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"10.0.0.5", "10.0.0.5", false},
		{" 192.168.100.1", "192.168.100.1", false},
		{"::ffff:10.0.0.9", "10.0.0.9", false},
		{"fe80::1", "", true},
		{"10.0.0", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := NormalizeIP(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NormalizeIP(%q) expected error", tt.input)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("NormalizeIP(%q) = %q, %v; want %q", tt.input, got, err, tt.want)
		}
	}
}

func TestBindingNormalize(t *testing.T) {
	t.Run("defaults kind to request", func(t *testing.T) {
		b := Binding{IP: "10.0.0.2", HWAddr: "11:22:33:44:55:66"}
		if err := b.Normalize(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if b.Kind != KindRequest {
			t.Errorf("expected kind request, got %s", b.Kind)
		}
	})

	t.Run("case differences share a dedup key", func(t *testing.T) {
		a, err := Binding{IP: "10.0.0.2", HWAddr: "AA:BB:CC:DD:EE:FF", Kind: KindReply}.Normalized()
		if err != nil {
			t.Fatal(err)
		}
		b, err := Binding{IP: "10.0.0.2", HWAddr: "aa:bb:cc:dd:ee:ff", Kind: KindRequest}.Normalized()
		if err != nil {
			t.Fatal(err)
		}
		if a.Key() != b.Key() {
			t.Errorf("expected equal keys, got %s and %s", a.Key(), b.Key())
		}
	})

	t.Run("rejects unknown kind", func(t *testing.T) {
		b := Binding{IP: "10.0.0.2", HWAddr: "11:22:33:44:55:66", Kind: "gratuitous"}
		if err := b.Normalize(); !errors.Is(err, ErrMalformed) {
			t.Errorf("expected ErrMalformed, got %v", err)
		}
	})

	t.Run("leaves binding untouched on error", func(t *testing.T) {
		tests := []struct {
			name string
			in   Binding
		}{
			{"bad hwaddr", Binding{IP: "10.0.0.2", HWAddr: "bogus"}},
			{"unknown kind", Binding{IP: " 10.0.0.2 ", HWAddr: "AA-BB-CC-DD-EE-FF", Kind: "gratuitous"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				b := tt.in
				err := b.Normalize()
				if !errors.Is(err, ErrMalformed) {
					t.Fatalf("Normalize() error = %v, want ErrMalformed", err)
				}
				if b != tt.in {
					t.Errorf("binding mutated on error: %+v, want %+v", b, tt.in)
				}
			})
		}
	})
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		input string
		want  Kind
	}{
		{"request", KindRequest},
		{"REPLY", KindReply},
		{"1", KindRequest},
		{"2", KindReply},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.input)
		if err != nil || got != tt.want {
			t.Errorf("ParseKind(%q) = %s, %v; want %s", tt.input, got, err, tt.want)
		}
	}
	if _, err := ParseKind("3"); err == nil {
		t.Error("expected error for opcode 3")
	}
}
