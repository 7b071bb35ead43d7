// Package netx fetches user-supplied image URLs without letting them reach
// the local machine or private networks.
package netx

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/photodrop/internal/common"
)

var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("::/128"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("fc00::/7"),
}

const (
	messageBadURL     = "Only images served over HTTPS can be uploaded."
	messagePrivateURL = "Images on local or private network addresses can not be uploaded."
)

// ValidateURL checks that raw is an https URL whose host is not localhost or
// an IP literal in a loopback, private, link-local or carrier-NAT range. It
// performs no network I/O; hostnames are checked again at dial time.
func ValidateURL(raw string) (*url.URL, error) {
	return validateURL(raw, false)
}

func validateURL(raw string, allowPrivate bool) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, common.Validation(messageBadURL, common.ErrInvalidURL)
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, common.Validation(messageBadURL, fmt.Errorf("%w: %v", common.ErrInvalidURL, err))
	}
	if !strings.EqualFold(u.Scheme, "https") {
		return nil, common.Validation(messageBadURL, fmt.Errorf("%w: %q", common.ErrUnsupportedScheme, u.Scheme))
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil, common.Validation(messageBadURL, fmt.Errorf("%w: missing host", common.ErrInvalidURL))
	}
	if allowPrivate {
		return u, nil
	}
	if isLocalHostname(host) {
		return nil, common.Validation(messagePrivateURL, fmt.Errorf("%w: %s", common.ErrPrivateNetwork, host))
	}
	if addr, err := netip.ParseAddr(host); err == nil && IsBlockedAddr(addr) {
		return nil, common.Validation(messagePrivateURL, fmt.Errorf("%w: %s", common.ErrPrivateNetwork, host))
	}
	return u, nil
}

// IsBlockedAddr reports whether addr is in a range photodrop never fetches from.
func IsBlockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func isLocalHostname(host string) bool {
	host = strings.TrimSuffix(host, ".")
	return host == "localhost" || strings.HasSuffix(host, ".localhost")
}
