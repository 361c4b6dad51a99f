// Package privacy reduces request metadata to what logs actually need.
package privacy

import (
	"net"
	"net/netip"
)

// ClientNetwork returns the network a remote address belongs to, never the
// host: /24 for IPv4 and /48 for IPv6. remoteAddr may carry a port, as
// http.Request.RemoteAddr does. Unparseable input yields "invalid" and empty
// input "unknown".
func ClientNetwork(remoteAddr string) string {
	if remoteAddr == "" {
		return "unknown"
	}
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return "invalid"
	}
	addr = addr.Unmap().WithZone("")

	bits := 48
	if addr.Is4() {
		bits = 24
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.String()
}
