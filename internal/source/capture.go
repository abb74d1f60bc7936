package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/mdlayher/arp"
	"github.com/sirupsen/logrus"

	"arpledger/internal/domain"
)

// maxReadErrors bounds consecutive read failures before capture gives up
const maxReadErrors = 50

// Capture observes ARP traffic live on one interface. Requires CAP_NET_RAW.
type Capture struct {
	iface string
}

// NewCapture creates a live capture source for iface
func NewCapture(iface string) *Capture {
	return &Capture{iface: iface}
}

// Bindings opens the interface and streams every request and reply seen
func (c *Capture) Bindings(ctx context.Context) (<-chan domain.Binding, error) {
	ifi, err := net.InterfaceByName(c.iface)
	if err != nil {
		return nil, fmt.Errorf("interface %s: %w", c.iface, err)
	}
	client, err := arp.Dial(ifi)
	if err != nil {
		return nil, fmt.Errorf("open arp socket on %s: %w", c.iface, err)
	}

	out := make(chan domain.Binding, 64)

	// unblock Read on cancellation
	go func() {
		<-ctx.Done()
		client.Close()
	}()

	go func() {
		defer close(out)
		logrus.Infof("Capture: listening for ARP on %s", c.iface)

		var packets, failures int
		defer func() {
			logrus.Infof("Capture: stopped on %s after %d packets", c.iface, packets)
		}()

		for {
			p, _, err := client.Read()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return
				}
				failures++
				if failures >= maxReadErrors {
					logrus.Errorf("Capture: giving up on %s: %v", c.iface, err)
					return
				}
				logrus.Debugf("Capture: read error on %s: %v", c.iface, err)
				continue
			}
			failures = 0

			b, ok := packetToBinding(p, c.iface, time.Now())
			if !ok {
				continue
			}
			packets++

			select {
			case out <- b:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// packetToBinding extracts the sender's claim from an ARP packet. Probes
// (unspecified sender) and unknown operations are ignored.
func packetToBinding(p *arp.Packet, iface string, at time.Time) (domain.Binding, bool) {
	var kind domain.Kind
	switch p.Operation {
	case arp.OperationRequest:
		kind = domain.KindRequest
	case arp.OperationReply:
		kind = domain.KindReply
	default:
		return domain.Binding{}, false
	}

	if !p.SenderIP.IsValid() || p.SenderIP.IsUnspecified() {
		return domain.Binding{}, false
	}

	return domain.Binding{
		IP:         p.SenderIP.String(),
		HWAddr:     p.SenderHardwareAddr.String(),
		Interface:  iface,
		Kind:       kind,
		RecordedAt: at,
	}, true
}
