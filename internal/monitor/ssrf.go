package monitor

import (
	"context"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// SSRFProtection blocks probes aimed at internal destinations
type SSRFProtection struct {
	allowPrivateIPs bool
}

// NewSSRFProtection creates a new destination guard
func NewSSRFProtection(allowPrivateIPs bool) *SSRFProtection {
	return &SSRFProtection{
		allowPrivateIPs: allowPrivateIPs,
	}
}

var (
	localhostNames = []string{
		"localhost",
		"localhost.localdomain",
		"ip6-localhost",
	}

	// Cloud metadata endpoints are refused even when private IPs are allowed.
	metadataHosts = []string{
		"169.254.169.254", // AWS, Azure, GCP metadata
		"metadata.google.internal",
		"169.254.170.2", // AWS ECS metadata
		"fd00:ec2::254", // AWS IMDSv2 IPv6
	}

	privateNets = mustParseCIDRs(
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"100.64.0.0/10", // carrier-grade NAT
		"fc00::/7",
	)
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		nets = append(nets, n)
	}
	return nets
}

// CheckHost rejects hostnames that are blocked before any lookup happens
func (s *SSRFProtection) CheckHost(hostname string) error {
	hostname = strings.ToLower(strings.Trim(hostname, "[]"))
	if hostname == "" {
		return fmt.Errorf("URL must have a hostname")
	}

	for _, blocked := range metadataHosts {
		if hostname == blocked || strings.HasSuffix(hostname, "."+blocked) {
			return fmt.Errorf("access to %s is not allowed", hostname)
		}
	}

	if s.allowPrivateIPs {
		return nil
	}
	for _, name := range localhostNames {
		if hostname == name {
			return fmt.Errorf("access to %s is not allowed", hostname)
		}
	}
	if ip := net.ParseIP(hostname); ip != nil {
		return s.CheckIP(ip)
	}
	return nil
}

// CheckIP rejects addresses outside the public unicast space
func (s *SSRFProtection) CheckIP(ip net.IP) error {
	for _, blocked := range metadataHosts {
		if b := net.ParseIP(blocked); b != nil && b.Equal(ip) {
			return fmt.Errorf("access to metadata address %s is not allowed", ip)
		}
	}

	if s.allowPrivateIPs {
		return nil
	}

	switch {
	case ip.IsLoopback():
		return fmt.Errorf("access to loopback address %s is not allowed", ip)
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return fmt.Errorf("access to link-local address %s is not allowed", ip)
	case ip.IsMulticast():
		return fmt.Errorf("access to multicast address %s is not allowed", ip)
	case ip.IsUnspecified():
		return fmt.Errorf("access to unspecified address %s is not allowed", ip)
	}
	for _, n := range privateNets {
		if n.Contains(ip) {
			return fmt.Errorf("access to private address %s is not allowed", ip)
		}
	}
	return nil
}

// Control is a net.Dialer hook that validates the resolved address right
// before connecting, so DNS answers cannot redirect a probe inward.
func (s *SSRFProtection) Control(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("invalid dial address %q: %w", address, err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return fmt.Errorf("dial address %q is not an IP", address)
	}
	return s.CheckIP(ip)
}

// DialContext returns a dial function guarded by Control
func (s *SSRFProtection) DialContext(dialer *net.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	d := *dialer
	d.Control = s.Control
	return d.DialContext
}
