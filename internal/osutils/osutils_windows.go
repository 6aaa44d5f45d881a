//go:build windows

package osutils

import (
	"fmt"
	"os/exec"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"
)

// IsAdmin checks if the current process has administrative privileges
func IsAdmin() bool {
	var token windows.Token
	h, _ := windows.GetCurrentProcess()
	err := windows.OpenProcessToken(h, windows.TOKEN_QUERY, &token)
	if err != nil {
		return false
	}
	defer token.Close()

	var sid *windows.SID
	err = windows.AllocateAndInitializeSid(
		&windows.SECURITY_NT_AUTHORITY,
		2,
		windows.SECURITY_BUILTIN_DOMAIN_RID,
		windows.DOMAIN_ALIAS_RID_ADMINS,
		0, 0, 0, 0, 0, 0,
		&sid,
	)
	if err != nil {
		return false
	}
	defer windows.FreeSid(sid)

	member, err := token.IsMember(sid)
	if err != nil {
		return false
	}
	return member
}

// EnsureFirewallRules makes sure an inbound allow rule exists for every port,
// elevating through UAC when the process is not an administrator.
func EnsureFirewallRules(ports ...Port) error {
	var scripts []string
	for _, p := range ports {
		out, err := exec.Command("netsh", "advfirewall", "firewall", "show", "rule", "name="+p.RuleName()).CombinedOutput()
		if err == nil && ruleMatches(string(out), p) {
			log.Debugf("Firewall: rule %q present", p.RuleName())
			continue
		}
		log.Printf("Firewall: creating rule %q", p.RuleName())
		scripts = append(scripts, firewallScript(p))
	}
	if len(scripts) == 0 {
		return nil
	}
	psCommand := strings.Join(scripts, "; ")

	if !IsAdmin() {
		log.Println("Firewall: process is not elevated, requesting UAC elevation")

		verbPtr, _ := syscall.UTF16PtrFromString("runas")
		exePtr, _ := syscall.UTF16PtrFromString("powershell.exe")
		argPtr, _ := syscall.UTF16PtrFromString(fmt.Sprintf("-NoProfile -WindowStyle Hidden -Command \"%s\"", psCommand))

		var showCmd int32 = 0 // SW_HIDE
		if err := windows.ShellExecute(0, verbPtr, exePtr, argPtr, nil, showCmd); err != nil {
			return fmt.Errorf("failed to launch elevated powershell: %w", err)
		}
		return nil
	}

	cmd := exec.Command("powershell", "-NoProfile", "-Command", psCommand)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to create firewall rules: %w (output: %s)", err, strings.TrimSpace(string(output)))
	}
	return nil
}
