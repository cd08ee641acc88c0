package models

// ProxyTarget is where a tunnel terminates, behind the device.
type ProxyTarget struct {
	Type    string `json:"type"`    // Always "address" for CLI tunnels
	User    string `json:"user"`    // Owner of the device
	Device  string `json:"device"`  // Device the route goes through
	Address string `json:"address"` // Address reachable from the device
	Port    uint16 `json:"port"`    // Port on that address
	Secure  bool   `json:"secure"`  // Whether the target speaks TLS
}

// ProxySource is the server-side listening endpoint exposed to the operator.
type ProxySource struct {
	Port   uint16 `json:"port"`
	Secure bool   `json:"secure"`
}

// ProxyConfig groups the routing part of a proxy registration.
type ProxyConfig struct {
	Target   ProxyTarget `json:"target"`
	Protocol string      `json:"protocol"` // tcp-tunnel or http-tunnel
	Source   ProxySource `json:"source"`
}

// ProxyDescriptor represents one server-side proxy route. It is both the
// registration body and the locally cached view of what should exist on the server.
type ProxyDescriptor struct {
	Enabled     bool        `json:"enabled"`
	Config      ProxyConfig `json:"config"`
	ProxyID     string      `json:"proxy"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
}
