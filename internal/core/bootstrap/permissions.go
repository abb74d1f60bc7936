package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

func probeUser() Check {
	euid := os.Geteuid()
	return Check{
		Name:   "effective_uid",
		OK:     true,
		Detail: fmt.Sprintf("uid=%d root=%v", euid, euid == 0),
	}
}

// probeRawSocket checks for CAP_NET_RAW by opening a link-layer socket, the
// same kind live capture and injection use
func probeRawSocket() Check {
	fd, err := syscall.Socket(syscall.AF_PACKET, syscall.SOCK_RAW, 0)
	if err != nil {
		return Check{
			Name:   "raw_socket",
			Detail: "cannot open AF_PACKET socket (need root or CAP_NET_RAW): " + err.Error(),
		}
	}
	syscall.Close(fd)
	return Check{Name: "raw_socket", OK: true, Detail: "AF_PACKET socket available"}
}

func probeNmap() Check {
	path, err := exec.LookPath("nmap")
	if err != nil {
		return Check{Name: "nmap", Detail: "nmap not in PATH"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		return Check{Name: "nmap", Detail: "nmap exists but --version failed: " + err.Error()}
	}
	version := strings.Split(string(output), "\n")[0]
	return Check{Name: "nmap", OK: true, Detail: version}
}

func probeNeighborTable(path string) Check {
	if path == "" {
		path = "/proc/net/arp"
	}
	if _, err := os.ReadFile(path); err != nil {
		return Check{Name: "neighbor_table", Detail: "cannot read " + path + ": " + err.Error()}
	}
	return Check{Name: "neighbor_table", OK: true, Detail: "can read " + path}
}
