package guard

import (
	"context"
	"net/http"
	"strings"
)

// WhitelistPolicy admits only client IPs present in the configured set.
// Matching is exact string membership, no CIDR or prefix logic. A disabled
// policy, or one whose list is empty after trimming blanks, admits everyone.
type WhitelistPolicy struct {
	enabled bool
	ips     map[string]struct{}
}

func NewWhitelistPolicy(enabled bool, ips []string) *WhitelistPolicy {
	set := make(map[string]struct{}, len(ips))
	for _, ip := range ips {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			set[ip] = struct{}{}
		}
	}
	return &WhitelistPolicy{enabled: enabled, ips: set}
}

func (p *WhitelistPolicy) Name() string { return "ip_whitelist" }

// Allowed reports the whitelist standing of an IP without evaluating the
// full chain.
func (p *WhitelistPolicy) Allowed(ip string) bool {
	if !p.enabled || len(p.ips) == 0 {
		return true
	}
	_, ok := p.ips[ip]
	return ok
}

func (p *WhitelistPolicy) Evaluate(_ context.Context, req *Request) *Denial {
	if p.Allowed(req.ClientIP) {
		return nil
	}
	return &Denial{
		Status:  http.StatusForbidden,
		Reason:  "ip_blocked",
		Message: "your IP address is not on the allowed list",
	}
}
