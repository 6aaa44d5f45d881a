// Package network carries capture streams between instances and finds
// ADB-over-TCP devices on the local network.
package network

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ADBPort is the port adbd listens on in TCP mode.
const ADBPort = 5555

// DiscoveredHost is a host that accepted a TCP connection on the probed port.
type DiscoveredHost struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// Addr returns "ip:port", the form "adb connect" takes.
func (h DiscoveredHost) Addr() string {
	return net.JoinHostPort(h.IP, strconv.Itoa(h.Port))
}

// GetLocalIP returns the primary local IP address
func GetLocalIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}

// Scanner probes hosts for an open TCP port.
type Scanner struct {
	Timeout time.Duration
	Workers int
	Dial    func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewScanner returns a scanner with a 500ms probe timeout.
func NewScanner() *Scanner {
	d := &net.Dialer{}
	return &Scanner{Timeout: 500 * time.Millisecond, Workers: 64, Dial: d.DialContext}
}

// ScanLAN probes the local /24 for port, skipping our own address.
func ScanLAN(ctx context.Context, port int) ([]DiscoveredHost, error) {
	localIP, err := GetLocalIP()
	if err != nil {
		return nil, fmt.Errorf("failed to get local IP: %w", err)
	}

	parts := strings.Split(localIP, ".")
	if len(parts) != 4 {
		return nil, fmt.Errorf("invalid IP address format: %s", localIP)
	}
	subnet := strings.Join(parts[:3], ".")

	hosts := make([]string, 0, 253)
	for i := 1; i <= 254; i++ {
		ip := fmt.Sprintf("%s.%d", subnet, i)
		if ip != localIP {
			hosts = append(hosts, ip)
		}
	}
	return NewScanner().Scan(ctx, hosts, port), nil
}

// Scan probes every host and returns those that accepted, ordered by address.
func (s *Scanner) Scan(ctx context.Context, hosts []string, port int) []DiscoveredHost {
	workers := s.Workers
	if workers <= 0 {
		workers = 1
	}

	var (
		found []DiscoveredHost
		mu    sync.Mutex
		wg    sync.WaitGroup
		jobs  = make(chan string)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ip := range jobs {
				if s.probe(ctx, ip, port) {
					mu.Lock()
					found = append(found, DiscoveredHost{IP: ip, Port: port})
					mu.Unlock()
				}
			}
		}()
	}

feed:
	for _, ip := range hosts {
		select {
		case jobs <- ip:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	sort.Slice(found, func(i, j int) bool {
		return ipLess(found[i].IP, found[j].IP)
	})
	return found
}

func (s *Scanner) probe(ctx context.Context, ip string, port int) bool {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	conn, err := s.Dial(ctx, "tcp", net.JoinHostPort(ip, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func ipLess(a, b string) bool {
	ia, ib := net.ParseIP(a).To4(), net.ParseIP(b).To4()
	if ia == nil || ib == nil {
		return a < b
	}
	for i := range ia {
		if ia[i] != ib[i] {
			return ia[i] < ib[i]
		}
	}
	return false
}

// GetLocalIPs returns all available local IPv4 addresses
func GetLocalIPs() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var ips []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue // interface down
		}
		if iface.Flags&net.FlagLoopback != 0 {
			continue // loopback interface
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.IsLoopback() {
				continue
			}
			ip = ip.To4()
			if ip == nil {
				continue // not an ipv4 address
			}
			ips = append(ips, ip.String())
		}
	}
	return ips, nil
}
