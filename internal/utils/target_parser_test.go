package utils

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		defaultPort uint16
		want        Target
	}{
		{"port only", "22", 80, Target{Address: "localhost", Port: 22}},
		{"https with port and path", "https://dev.local:9000/path", 80, Target{Address: "dev.local", Port: 9000, IsSecure: true}},
		{"https canonical port", "https://dev.local", 80, Target{Address: "dev.local", Port: 443, IsSecure: true}},
		{"empty", "", 443, Target{Address: "localhost", Port: 443}},
		{"whitespace is not trimmed", "   ", 22, Target{Address: "   ", Port: 22}},
		{"padded port is not a port", " 22", 80, Target{Address: " 22", Port: 80}},
		{"invalid port suffix", "10.0.0.5:notaport", 22, Target{Address: "10.0.0.5:notaport", Port: 22}},
		{"host and port", "192.168.1.5:8080", 22, Target{Address: "192.168.1.5", Port: 8080}},
		{"bare host", "192.168.1.5", 80, Target{Address: "192.168.1.5", Port: 80}},
		{"http scheme keeps matching default", "http://dev.local", 80, Target{Address: "dev.local", Port: 80}},
		{"http scheme over tls default", "http://dev.local", 443, Target{Address: "dev.local", Port: 80}},
		{"https scheme matching default", "https://dev.local", 443, Target{Address: "dev.local", Port: 443, IsSecure: true}},
		{"uppercase scheme is not a scheme", "HTTPS://dev.local", 80, Target{Address: "HTTPS:", Port: 80}},
		{"explicit default port with scheme", "https://dev.local:80", 80, Target{Address: "dev.local", Port: 443, IsSecure: true}},
		{"query keeps the port suffix invalid", "dev.local:8080?q=1", 80, Target{Address: "dev.local:8080?q=1", Port: 80}},
		{"fragment stays in the address", "dev.local#frag:9000", 80, Target{Address: "dev.local#frag", Port: 9000}},
		{"query after path is dropped", "https://dev.local:8443/x?a=b#c", 80, Target{Address: "dev.local", Port: 8443, IsSecure: true}},
		{"scheme only", "https://", 80, Target{Address: "localhost", Port: 443, IsSecure: true}},
		{"empty host with port", ":3000", 80, Target{Address: "localhost", Port: 3000}},
		{"zero port suffix", "dev.local:0", 22, Target{Address: "dev.local:0", Port: 22}},
		{"port out of range", "70000", 22, Target{Address: "localhost", Port: 22}},
		{"zero digits", "0", 22, Target{Address: "localhost", Port: 22}},
		{"ipv6 last colon", "[::1]:8443", 443, Target{Address: "[::1]", Port: 8443}},
		{"zero default", "", 0, Target{Address: "localhost", Port: 80}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTarget(tt.raw, tt.defaultPort))
		})
	}
}

func TestParseTarget_Total(t *testing.T) {
	alphabet := []byte("0123456789:/?#.htps[]abcHTPS -")
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 5000; i++ {
		b := make([]byte, rng.Intn(24))
		for j := range b {
			b[j] = alphabet[rng.Intn(len(alphabet))]
		}
		raw := string(b)
		port := uint16(rng.Intn(65536))

		got := ParseTarget(raw, port)
		assert.GreaterOrEqual(t, got.Port, uint16(1), "input %q", raw)
		assert.NotEmpty(t, got.Address, "input %q", raw)
		assert.Equal(t, got, ParseTarget(raw, port), "deterministic for %q", raw)
	}
}
