package constants

import "time"

// Platform API paths.
const (
	EndpointProxies         = "/v1/proxies"
	EndpointUserDevices     = "/v1/users/%s/devices"
	EndpointDevice          = "/v1/users/%s/devices/%s"
	EndpointDeviceResource  = "/v3/users/%s/devices/%s/resources/%s"
	EndpointDeviceProperty  = "/v3/users/%s/devices/%s/properties/%s"
	EndpointTerminalStream  = "/v3/users/%s/devices/%s/resources/$terminal/%s"
	EndpointTerminalParams  = "/v3/users/%s/devices/%s/resources/$terminal/%s/params"
	TerminalStreamRawQuery  = "raw=1"
	ProductDevicesQueryName = "product"
)

const (
	// DefaultHTTPTimeout is the fixed request timeout of the transport.
	DefaultHTTPTimeout = 30 * time.Second

	// WSHandshakeTimeout bounds the terminal stream handshake.
	WSHandshakeTimeout = 15 * time.Second

	// DeregisterTimeout bounds the best-effort proxy deletion on shutdown.
	DeregisterTimeout = 10 * time.Second

	// DefaultFleetWorkers is the default fan-out for product-wide queries.
	DefaultFleetWorkers = 4

	// Version is the CLI version reported by the version command.
	Version = "0.4.0"
)
