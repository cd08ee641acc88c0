package utils

import (
	"strconv"
	"strings"

	"github.com/benmeehan/iotctl/internal/constants"
)

const (
	fallbackPort     = 80
	httpsScheme      = "https://"
	httpScheme       = "http://"
	httpsDefaultPort = 443
	httpDefaultPort  = 80
)

// Target is the device-local endpoint a tunnel forwards to.
type Target struct {
	Address  string
	Port     uint16
	IsSecure bool
}

// ParseTarget parses a user supplied tunnel target such as "8080", "host:port"
// or "https://host/path". It never fails: anything it cannot interpret falls back
// to localhost and defaultPort. A zero defaultPort is treated as 80.
// Input is taken verbatim: it is not trimmed and schemes are matched in lowercase only.
func ParseTarget(raw string, defaultPort uint16) Target {
	if defaultPort == 0 {
		defaultPort = fallbackPort
	}

	value := raw
	if value == "" {
		return Target{Address: constants.DefaultTargetHost, Port: defaultPort}
	}

	if isDigits(value) {
		port, ok := parsePort(value)
		if !ok {
			port = defaultPort
		}
		return Target{Address: constants.DefaultTargetHost, Port: port}
	}

	target := Target{Port: defaultPort}
	schemePort := uint16(0)
	switch {
	case strings.HasPrefix(value, httpsScheme):
		value = value[len(httpsScheme):]
		target.IsSecure = true
		schemePort = httpsDefaultPort
	case strings.HasPrefix(value, httpScheme):
		value = value[len(httpScheme):]
		schemePort = httpDefaultPort
	}

	// Only the path is cut. Query and fragment characters stay part of the host or port.
	if i := strings.Index(value, "/"); i >= 0 {
		value = value[:i]
	}

	target.Address = value
	if i := strings.LastIndex(value, ":"); i >= 0 {
		if port, ok := parsePort(value[i+1:]); ok {
			target.Address = value[:i]
			target.Port = port
		}
	}

	if schemePort != 0 && target.Port == defaultPort && schemePort != defaultPort {
		target.Port = schemePort
	}

	if target.Address == "" {
		target.Address = constants.DefaultTargetHost
	}
	return target
}

// parsePort accepts a decimal integer in (0, 65535].
func parsePort(s string) (uint16, bool) {
	if !isDigits(s) {
		return 0, false
	}
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint16(n), true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
