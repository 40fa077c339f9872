package netutils

import (
	"net"
	"strings"
)

// ShortName returns the first label of a dotted host name. IP literals are
// returned unchanged since their first octet does not identify a node.
func ShortName(host string) string {
	if net.ParseIP(host) != nil {
		return host
	}

	name, _, _ := strings.Cut(host, ".")
	return name
}
