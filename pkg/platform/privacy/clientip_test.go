package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientNetwork(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"ipv4 host", "192.168.1.47", "192.168.1.0/24"},
		{"ipv4 with port", "192.168.1.47:52814", "192.168.1.0/24"},
		{"ipv4 mapped ipv6", "::ffff:10.1.2.3", "10.1.2.0/24"},
		{"ipv6 host", "2001:db8:85a3::8a2e:370:7334", "2001:db8:85a3::/48"},
		{"ipv6 with port", "[2001:db8:85a3::1]:443", "2001:db8:85a3::/48"},
		{"ipv6 loopback", "::1", "::/48"},
		{"empty", "", "unknown"},
		{"hostname", "localhost:8080", "invalid"},
		{"truncated ipv4", "192.168.1", "invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClientNetwork(tt.input))
		})
	}
}

func TestClientNetworkGroupsHostsOfOneNetwork(t *testing.T) {
	for _, ip := range []string{"172.16.50.1", "172.16.50.128", "172.16.50.255"} {
		assert.Equal(t, "172.16.50.0/24", ClientNetwork(ip))
	}
}
