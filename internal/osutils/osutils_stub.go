//go:build !windows

package osutils

import "os"

// IsAdmin reports whether the process runs as root.
func IsAdmin() bool {
	return os.Geteuid() == 0
}

// EnsureFirewallRules is a no-op outside Windows.
func EnsureFirewallRules(ports ...Port) error {
	return nil
}
