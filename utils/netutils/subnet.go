package netutils

import (
	"net"
	"strings"
)

// ThirdOctet returns the third octet of an IPv4 address. It is used as a
// stand-in for "same subnet" when spreading servers across zones, since the
// provisioned VPC subnets differ in that octet.
func ThirdOctet(addr string) (byte, bool) {
	ip := net.ParseIP(strings.TrimSpace(addr))
	if ip == nil {
		return 0, false
	}

	ip4 := ip.To4()
	if ip4 == nil {
		return 0, false
	}

	return ip4[2], true
}

// SameThirdOctet reports whether both addresses are IPv4 and share their third octet.
func SameThirdOctet(a, b string) bool {
	aOctet, ok := ThirdOctet(a)
	if !ok {
		return false
	}

	bOctet, ok := ThirdOctet(b)
	if !ok {
		return false
	}

	return aOctet == bOctet
}
