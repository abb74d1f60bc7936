package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"arpledger/internal/domain"
)

const incompleteHWAddr = "00:00:00:00:00:00"

// Neighbors periodically reads the kernel neighbour table (/proc/net/arp).
// Cache entries are second-hand, so they are reported as requests.
type Neighbors struct {
	path     string
	interval time.Duration
}

// NewNeighbors creates a source reading path every interval
func NewNeighbors(path string, interval time.Duration) *Neighbors {
	return &Neighbors{path: path, interval: interval}
}

// Bindings starts polling the table until ctx is cancelled
func (n *Neighbors) Bindings(ctx context.Context) (<-chan domain.Binding, error) {
	if _, err := os.Stat(n.path); err != nil {
		return nil, fmt.Errorf("neighbour table: %w", err)
	}
	logrus.Infof("Neighbors: reading %s every %s", n.path, n.interval)
	return poll(ctx, "Neighbors", n.interval, n.read), nil
}

func (n *Neighbors) read(_ context.Context) ([]domain.Binding, error) {
	f, err := os.Open(n.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseProcNetARP(f, time.Now())
}

// parseProcNetARP parses the Linux /proc/net/arp format:
//
//	IP address  HW type  Flags  HW address  Mask  Device
func parseProcNetARP(r io.Reader, at time.Time) ([]domain.Binding, error) {
	var out []domain.Binding

	scanner := bufio.NewScanner(r)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			first = false
			if strings.HasPrefix(line, "IP address") {
				continue
			}
		}

		fields := strings.Fields(line)
		if len(fields) < 6 {
			continue
		}
		// flags 0x0 is an incomplete entry
		if fields[2] == "0x0" || fields[3] == incompleteHWAddr {
			continue
		}

		out = append(out, domain.Binding{
			IP:         fields[0],
			HWAddr:     fields[3],
			Interface:  fields[5],
			Kind:       domain.KindRequest,
			RecordedAt: at,
		})
	}
	return out, scanner.Err()
}
