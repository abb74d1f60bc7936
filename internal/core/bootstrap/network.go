package bootstrap

import (
	"fmt"
	"net"
	"os"
	"strings"
)

func probeInterface(name string) Check {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return Check{Name: "interface", Detail: fmt.Sprintf("%s: %v", name, err)}
	}
	if ifi.Flags&net.FlagUp == 0 {
		return Check{Name: "interface", Detail: name + " is down"}
	}
	if len(ifi.HardwareAddr) != 6 {
		return Check{Name: "interface", Detail: name + " has no Ethernet address"}
	}
	return Check{Name: "interface", OK: true, Detail: fmt.Sprintf("%s up, hwaddr %s", name, ifi.HardwareAddr)}
}

// DefaultGateway reads the IPv4 default route from /proc/net/route. The
// gateway is the usual spoofing target on a LAN.
func DefaultGateway() (gateway, iface string, ok bool) {
	data, err := os.ReadFile("/proc/net/route")
	if err != nil {
		return "", "", false
	}
	return parseDefaultRoute(string(data))
}

func parseDefaultRoute(table string) (gateway, iface string, ok bool) {
	lines := strings.Split(table, "\n")
	if len(lines) < 2 {
		return "", "", false
	}

	// skip header
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) < 3 || fields[1] != "00000000" {
			continue
		}
		gw := fields[2]
		if len(gw) != 8 {
			continue
		}
		// hex, little-endian
		var b1, b2, b3, b4 uint8
		if _, err := fmt.Sscanf(gw, "%02x%02x%02x%02x", &b4, &b3, &b2, &b1); err != nil {
			continue
		}
		return fmt.Sprintf("%d.%d.%d.%d", b1, b2, b3, b4), fields[0], true
	}
	return "", "", false
}
