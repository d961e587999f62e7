package urlutil

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		name    string
		ip      string
		private bool
	}{
		// Loopback
		{"loopback 127.0.0.1", "127.0.0.1", true},
		{"loopback IPv6", "::1", true},

		// RFC 1918
		{"rfc1918 10.0.0.1", "10.0.0.1", true},
		{"rfc1918 172.16.0.1", "172.16.0.1", true},
		{"rfc1918 192.168.0.1", "192.168.0.1", true},

		// Link-local
		{"link-local 169.254.169.254", "169.254.169.254", true},
		{"link-local IPv6 fe80::1", "fe80::1", true},

		// CGNAT (RFC 6598)
		{"cgnat 100.64.0.1", "100.64.0.1", true},

		// "This" network and multicast
		{"this-network 0.0.0.0", "0.0.0.0", true},
		{"multicast 224.0.0.1", "224.0.0.1", true},

		// IPv6 unique local
		{"unique-local fd00::1", "fd00::1", true},

		// Public IPs
		{"public 8.8.8.8", "8.8.8.8", false},
		{"public 93.184.216.34", "93.184.216.34", false},
		{"public 172.32.0.1", "172.32.0.1", false},
		{"public 100.128.0.1", "100.128.0.1", false},
		{"public IPv6 2001:db8::1", "2001:db8::1", false},

		// Nil
		{"nil IP", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ip net.IP
			if tt.ip != "" {
				ip = net.ParseIP(tt.ip)
				require.NotNil(t, ip, "failed to parse test IP: %s", tt.ip)
			}
			assert.Equal(t, tt.private, IsPrivateIP(ip))
		})
	}
}

func TestValidateHostNotPrivateIP(t *testing.T) {
	tests := []struct {
		name      string
		hostname  string
		wantError bool
	}{
		// Private IP literals should be blocked
		{"blocks loopback", "127.0.0.1", true},
		{"blocks rfc1918", "10.0.0.1", true},
		{"blocks metadata endpoint", "169.254.169.254", true},
		{"blocks IPv6 loopback", "::1", true},

		// Public IP literals should pass
		{"allows public IP", "8.8.8.8", false},

		// Domain names should pass (no DNS resolution)
		{"allows domain", "example.com", false},
		{"allows subdomain", "internal.example.com", false},
		{"allows localhost domain", "localhost", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHostNotPrivateIP(tt.hostname)
			if tt.wantError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "private/reserved")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
