package osutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirewallScript(t *testing.T) {
	p := Port{Number: 18081, Protocol: "udp"}
	assert.Equal(t, "vtouch capture UDP 18081", p.RuleName())
	assert.Equal(t,
		"Remove-NetFirewallRule -DisplayName 'vtouch capture UDP 18081' -ErrorAction SilentlyContinue; "+
			"New-NetFirewallRule -DisplayName 'vtouch capture UDP 18081' -Direction Inbound -LocalPort 18081 -Protocol UDP -Action Allow -Profile Any",
		firewallScript(p))
}

func TestRuleMatches(t *testing.T) {
	p := Port{Number: 18080, Protocol: "TCP"}
	out := "Rule Name:  vtouch capture TCP 18080\nLocalPort:  18080\nAction:  Allow\n"
	assert.True(t, ruleMatches(out, p))
	assert.False(t, ruleMatches("No rules match the specified criteria.", p))
	assert.False(t, ruleMatches("Rule Name:  vtouch capture TCP 18080\nLocalPort:  18080\nAction:  Block\n", p))
}
