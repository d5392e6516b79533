package monitor

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSSRFProtection_CheckHost(t *testing.T) {
	strict := NewSSRFProtection(false)
	lenient := NewSSRFProtection(true)

	tests := []struct {
		host          string
		strictBlocked bool
		lenientBlocks bool
	}{
		{"example.com", false, false},
		{"localhost", true, false},
		{"127.0.0.1", true, false},
		{"[::1]", true, false},
		{"10.1.2.3", true, false},
		{"192.168.1.10", true, false},
		{"8.8.8.8", false, false},
		{"169.254.169.254", true, true},
		{"metadata.google.internal", true, true},
		{"", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.strictBlocked, strict.CheckHost(tt.host) != nil)
			assert.Equal(t, tt.lenientBlocks, lenient.CheckHost(tt.host) != nil)
		})
	}
}

func TestSSRFProtection_Control(t *testing.T) {
	strict := NewSSRFProtection(false)

	assert.Error(t, strict.Control("tcp", "127.0.0.1:80", nil))
	assert.Error(t, strict.Control("tcp", "[fd12::1]:443", nil))
	assert.NoError(t, strict.Control("tcp", "93.184.216.34:443", nil))
	assert.Error(t, strict.Control("tcp", "not-an-address", nil))
}

func TestSSRFProtection_CheckIP(t *testing.T) {
	strict := NewSSRFProtection(false)
	assert.Error(t, strict.CheckIP(net.ParseIP("0.0.0.0")))
	assert.Error(t, strict.CheckIP(net.ParseIP("224.0.0.1")))
	assert.Error(t, strict.CheckIP(net.ParseIP("100.64.0.1")))
	assert.NoError(t, strict.CheckIP(net.ParseIP("1.1.1.1")))
}
