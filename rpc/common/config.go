package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	DefaultTimeoutSecond        = 10
	DefaultRetryCount           = 3
	DefaultPoolSize             = 4
	DefaultRefreshIntervalSec   = 30
	DefaultStreamChannels       = 4
	DefaultMaxConcurrentStreams = 100
	DefaultLogLevel             = "info"
)

// DefaultClientConfig returns a ClientConfig with all tunables set to their
// defaults. Callers fill in Credential and Discovery.BaseURL (or
// Discovery.StaticEndpoint) before use.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		TimeoutSecond: DefaultTimeoutSecond,
		LogLevel:      DefaultLogLevel,
		Discovery: DiscoveryConf{
			RefreshIntervalSec: DefaultRefreshIntervalSec,
		},
		Transport: ClientTransportConfig{
			SecurityMode: SecurityTLS,
			PoolSize:     DefaultPoolSize,
			RetryCount:   DefaultRetryCount,
			TCPConf: TCPConf{
				TCPNoDelay: true,
			},
		},
		Stream: StreamConf{
			Channels:             DefaultStreamChannels,
			MaxConcurrentStreams: DefaultMaxConcurrentStreams,
		},
	}
}

// --------------------------------------------------------------------------
// Security Mode
// --------------------------------------------------------------------------

// SecurityMode selects how the transport to a cache endpoint is built.
// It is a closed set, dispatched exactly once per connection attempt.
type SecurityMode uint8

const (
	// SecurityTLS opens a TLS stream and validates the server certificate
	// against the configured hostname.
	SecurityTLS SecurityMode = iota
	// SecurityTLSUnverified opens a TLS stream but skips certificate
	// validation. Development use only.
	SecurityTLSUnverified
	// SecurityInsecure opens a plaintext TCP stream.
	SecurityInsecure
)

// String returns the string representation of a SecurityMode.
func (m SecurityMode) String() string {
	switch m {
	case SecurityTLS:
		return "tls"
	case SecurityTLSUnverified:
		return "tls-unverified"
	case SecurityInsecure:
		return "insecure"
	default:
		return "unknown"
	}
}

// ParseSecurityMode converts a string to a SecurityMode.
func ParseSecurityMode(s string) (SecurityMode, error) {
	switch strings.ToLower(s) {
	case "tls":
		return SecurityTLS, nil
	case "tls-unverified":
		return SecurityTLSUnverified, nil
	case "insecure":
		return SecurityInsecure, nil
	default:
		return SecurityTLS, fmt.Errorf("invalid security mode %q. must be one of tls, tls-unverified, insecure", s)
	}
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// DiscoveryConf configures how candidate endpoints are resolved.
type DiscoveryConf struct {
	// BaseURL is the discovery service of the target cell,
	// e.g. "https://cell-1.api.cachelink.io".
	BaseURL string
	// Zone prefers endpoints of one availability zone. Empty means all zones.
	Zone string
	// PrivateEndpoints requests private network addresses from discovery.
	PrivateEndpoints bool
	// RefreshIntervalSec is the background refresh interval. Zero disables
	// the background task (the snapshot is still refreshed on demand).
	RefreshIntervalSec int
	// StaticEndpoint bypasses discovery with a fixed "host:port" address.
	StaticEndpoint string
}

// SocketConf holds settings supported by all socket based transports
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP specific settings
type TCPConf struct {
	TCPKeepAliveSec int
	TCPLingerSec    int
	TCPNoDelay      bool
}

// ClientTransportConfig configures the unary connection layer.
type ClientTransportConfig struct {
	// SecurityMode selects TLS, unverified TLS or plaintext.
	SecurityMode SecurityMode
	// TLSHostname is used for SNI and certificate validation. Defaults to
	// the host of Discovery.BaseURL when empty.
	TLSHostname string
	// PoolSize is the number of pooled unary connections.
	PoolSize int
	// RetryCount is how often the pool retries establishing a connection.
	RetryCount int

	SocketConf
	TCPConf
}

// StreamConf configures the streaming (subscription) layer.
type StreamConf struct {
	// Channels is the number of pre-established streaming channels.
	Channels int
	// MaxConcurrentStreams caps active subscriptions across all channels.
	MaxConcurrentStreams int
	// ResubscribeDelayMs is slept between failed resubscribe attempts.
	// Zero retries immediately, matching the wire protocol's reference
	// client behavior.
	ResubscribeDelayMs int
}

// ClientConfig holds all configuration parameters for the Cachelink client.
type ClientConfig struct {
	// Credential is the data-plane credential. It is sent as the
	// authorization header to discovery and as the Authenticate payload
	// during the connection handshake.
	Credential string

	// TimeoutSecond is the per-call deadline for unary requests.
	TimeoutSecond int

	// Logging configuration
	LogLevel string

	Discovery DiscoveryConf
	Transport ClientTransportConfig
	Stream    StreamConf
}

// TLSHostname returns the hostname used for SNI and certificate validation:
// the explicitly configured one, else the host of the discovery base URL.
func (c *ClientConfig) TLSHostname() string {
	if c.Transport.TLSHostname != "" {
		return c.Transport.TLSHostname
	}

	host := c.Discovery.BaseURL
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	host = strings.TrimSuffix(host, "/")
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	return host
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Log Level", c.LogLevel)

	// Discovery
	addSection("Discovery")
	if c.Discovery.StaticEndpoint != "" {
		addField("Static Endpoint", c.Discovery.StaticEndpoint)
	} else {
		addField("Base URL", c.Discovery.BaseURL)
		addField("Zone", c.Discovery.Zone)
		addField("Private Endpoints", strconv.FormatBool(c.Discovery.PrivateEndpoints))
		addField("Refresh Interval", fmt.Sprintf("%d sec", c.Discovery.RefreshIntervalSec))
	}

	// Transport
	addSection("Transport")
	addField("Security Mode", c.Transport.SecurityMode.String())
	addField("TLS Hostname", c.TLSHostname())
	addField("Pool Size", strconv.Itoa(c.Transport.PoolSize))
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	addField("TCP NoDelay", strconv.FormatBool(c.Transport.TCPNoDelay))

	// Streaming
	addSection("Streaming")
	addField("Channels", strconv.Itoa(c.Stream.Channels))
	addField("Max Concurrent Streams", strconv.Itoa(c.Stream.MaxConcurrentStreams))
	addField("Resubscribe Delay", fmt.Sprintf("%d ms", c.Stream.ResubscribeDelayMs))

	return sb.String()
}
