package source

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"arpledger/internal/domain"
)

// streamRecord is one line of a decoded packet feed
type streamRecord struct {
	IP        string `json:"ip"`
	HWAddr    string `json:"hwaddr"`
	Kind      string `json:"kind"`
	Interface string `json:"interface"`
	At        string `json:"at"`
}

// Stream reads decoded ARP packets as JSON lines, e.g. from an external
// capture tool or a replay file. It ends at EOF.
type Stream struct {
	name  string
	open  func() (io.ReadCloser, error)
	iface string
}

// NewStream reads from path; "-" means stdin. iface is used for records
// that do not name one.
func NewStream(path, iface string) *Stream {
	return &Stream{
		name:  path,
		iface: iface,
		open: func() (io.ReadCloser, error) {
			if path == "-" {
				return io.NopCloser(os.Stdin), nil
			}
			return os.Open(path)
		},
	}
}

// NewReaderStream reads from an already open reader
func NewReaderStream(r io.Reader, iface string) *Stream {
	return &Stream{
		name:  "reader",
		iface: iface,
		open:  func() (io.ReadCloser, error) { return io.NopCloser(r), nil },
	}
}

// Bindings decodes the feed in order. Undecodable lines are skipped.
func (s *Stream) Bindings(ctx context.Context) (<-chan domain.Binding, error) {
	rc, err := s.open()
	if err != nil {
		return nil, fmt.Errorf("open stream %s: %w", s.name, err)
	}

	out := make(chan domain.Binding, 64)
	go func() {
		defer close(out)
		defer rc.Close()

		scanner := bufio.NewScanner(rc)
		line := 0
		for scanner.Scan() {
			line++
			text := strings.TrimSpace(scanner.Text())
			if text == "" || strings.HasPrefix(text, "#") {
				continue
			}

			b, err := s.decode(text)
			if err != nil {
				logrus.Warnf("Stream: %s line %d: %v", s.name, line, err)
				continue
			}

			select {
			case out <- b:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			logrus.Warnf("Stream: %s: %v", s.name, err)
		}
	}()

	return out, nil
}

func (s *Stream) decode(text string) (domain.Binding, error) {
	var rec streamRecord
	if err := json.Unmarshal([]byte(text), &rec); err != nil {
		return domain.Binding{}, fmt.Errorf("decode: %w", err)
	}

	b := domain.Binding{
		IP:         rec.IP,
		HWAddr:     rec.HWAddr,
		Interface:  rec.Interface,
		RecordedAt: time.Now(),
	}
	if b.Interface == "" {
		b.Interface = s.iface
	}

	if rec.Kind != "" {
		kind, err := domain.ParseKind(rec.Kind)
		if err != nil {
			// leave it for the agent to reject and count
			kind = domain.Kind(rec.Kind)
		}
		b.Kind = kind
	}

	if rec.At != "" {
		at, err := time.Parse(time.RFC3339Nano, rec.At)
		if err != nil {
			return domain.Binding{}, fmt.Errorf("timestamp %q: %w", rec.At, err)
		}
		b.RecordedAt = at
	}
	return b, nil
}
