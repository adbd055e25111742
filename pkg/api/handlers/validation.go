// Package handlers holds the gin handlers of the REST API.
package handlers

import (
	"fmt"
	"net"
	"regexp"
	"strings"
)

var (
	// hostnameRegex validates a DNS name made of DNS-1123 labels
	hostnameRegex = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?)(\.[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?)*$`)

	// tokenIDRegex validates an API token ID, optionally qualified as user@realm!id
	tokenIDRegex = regexp.MustCompile(`^([^\s@!]+@[^\s@!]+!)?[a-zA-Z][a-zA-Z0-9\-_.]*$`)
)

// validateConnection checks the fields a Proxmox API client is built from
func validateConnection(domain string, port int, user, tokenID string) error {
	if domain != "" && net.ParseIP(domain) == nil && (len(domain) > 253 || !hostnameRegex.MatchString(domain)) {
		return fmt.Errorf("invalid domain %q", domain)
	}
	if port < 0 || port > 65535 {
		return fmt.Errorf("invalid port %d", port)
	}
	if user != "" && !strings.Contains(user, "@") {
		return fmt.Errorf("user %q must include a realm, e.g. root@pam", user)
	}
	if tokenID != "" && !tokenIDRegex.MatchString(tokenID) {
		return fmt.Errorf("invalid token ID %q", tokenID)
	}
	return nil
}
