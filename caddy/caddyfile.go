package caddy

import (
	"fmt"
	"strings"
)

// Caddyfile renders the minimal platform vhost for deployments that run the
// platform containers next to the proxy. The challenge routing lives in the
// JSON config; this file only fronts the platform API and frontend.
func Caddyfile(platformDomain string, enableHTTPS bool) (string, error) {
	if platformDomain == "" {
		return "", fmt.Errorf("platform domain must not be empty")
	}
	if strings.HasSuffix(platformDomain, ".localhost") && enableHTTPS {
		return "", fmt.Errorf("cannot use a .localhost domain with HTTPS enabled")
	}

	matcher := platformDomain
	if !enableHTTPS {
		matcher = "http://" + platformDomain
	}

	return fmt.Sprintf(`%s {
	reverse_proxy /api/* api:3333
	reverse_proxy /* frontend:3334

	log {
		output file /var/log/caddy/access.log {
			roll_size 1gb
			roll_keep 20
			roll_keep_for 720h
		}
	}
}
`, matcher), nil
}
