// Package osutils holds platform helpers for exposing the capture ports.
package osutils

import (
	"fmt"
	"strings"
)

// FirewallRuleName prefixes the inbound rules created for the capture ports.
const FirewallRuleName = "vtouch capture"

// Port is one inbound port to allow.
type Port struct {
	Number   int
	Protocol string // "TCP" or "UDP"
}

// RuleName returns the display name of the rule for p.
func (p Port) RuleName() string {
	return fmt.Sprintf("%s %s %d", FirewallRuleName, strings.ToUpper(p.Protocol), p.Number)
}

// firewallScript returns the PowerShell command that replaces the rule for p.
func firewallScript(p Port) string {
	name := p.RuleName()
	return fmt.Sprintf(
		"Remove-NetFirewallRule -DisplayName '%s' -ErrorAction SilentlyContinue; New-NetFirewallRule -DisplayName '%s' -Direction Inbound -LocalPort %d -Protocol %s -Action Allow -Profile Any",
		name, name, p.Number, strings.ToUpper(p.Protocol),
	)
}

// ruleMatches reports whether netsh output shows an allow rule for p.
func ruleMatches(output string, p Port) bool {
	return strings.Contains(output, p.RuleName()) &&
		strings.Contains(output, fmt.Sprintf("%d", p.Number)) &&
		strings.Contains(output, "Allow")
}
