package constants

// Tunnel kinds accepted on the command line.
const (
	TunnelKindTCP  = "tcp"
	TunnelKindTLS  = "tls"
	TunnelKindHTTP = "http"
)

// Wire-level proxy protocol categories. TLS tunnels use the tcp category
// with a secure target.
const (
	ProxyProtocolTCP  = "tcp-tunnel"
	ProxyProtocolHTTP = "http-tunnel"
)

const (
	// DefaultTCPPort is the target port for plain tcp tunnels when none is given.
	DefaultTCPPort uint16 = 22

	// DefaultTLSPort is the target port for tls tunnels when none is given.
	DefaultTLSPort uint16 = 443

	// DefaultHTTPPort is the target port for http tunnels when none is given.
	DefaultHTTPPort uint16 = 80

	// SourcePortMin and SourcePortMax bound the randomly chosen server-side listening port.
	SourcePortMin = 50000
	SourcePortMax = 51000

	// ProxyIDDevicePrefixLen is how many characters of the device id go into a proxy id.
	ProxyIDDevicePrefixLen = 8

	// DefaultTargetHost is used when a target names no address.
	DefaultTargetHost = "localhost"

	// TargetTypeAddress is the only target type the CLI registers.
	TargetTypeAddress = "address"
)
