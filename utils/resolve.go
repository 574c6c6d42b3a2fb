package utils

import (
	"fmt"
	"net"

	log "github.com/sirupsen/logrus"
)

// ResolveIPv4 resolves host to its first IPv4 address.
// If host is already a literal IP it is returned as is.
func ResolveIPv4(host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), nil
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return "", fmt.Errorf("failed resolving %q: %w", host, err)
	}

	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			log.Debugf("resolved %s to %s", host, v4)
			return v4.String(), nil
		}
	}

	return "", fmt.Errorf("no IPv4 address found for %q", host)
}
