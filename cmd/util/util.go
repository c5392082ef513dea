package util

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cachelink/cachelink-go/rpc/common"
	"github.com/cachelink/cachelink-go/rpc/serializer"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupRPCClientFlags adds common client connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "credential"
	cmd.PersistentFlags().String(key, "", WrapString("The data-plane credential. Usually set via the CACHELINK_CREDENTIAL environment variable"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, common.DefaultTimeoutSecond, WrapString("The timeout in seconds for each operation"))

	key = "log-level"
	cmd.PersistentFlags().String(key, common.DefaultLogLevel, WrapString("The level at which logs will be output (debug, info, warn, error)"))

	key = "discovery-url"
	cmd.PersistentFlags().String(key, "", WrapString("The discovery base URL of the target cell (e.g. https://cell-1.api.cachelink.io)"))

	key = "discovery-zone"
	cmd.PersistentFlags().String(key, "", WrapString("Prefer endpoints of this availability zone. Empty means all zones"))

	key = "discovery-private"
	cmd.PersistentFlags().Bool(key, false, WrapString("Request private network addresses from discovery"))

	key = "discovery-refresh-interval"
	cmd.PersistentFlags().Int(key, common.DefaultRefreshIntervalSec, WrapString("The background endpoint refresh interval in seconds. 0 disables the background task"))

	key = "endpoint"
	cmd.PersistentFlags().String(key, "", WrapString("A fixed host:port address that bypasses discovery. Intended for development setups"))

	key = "security"
	cmd.PersistentFlags().String(key, "tls", WrapString("How connections are secured (tls, tls-unverified, insecure)"))

	key = "tls-hostname"
	cmd.PersistentFlags().String(key, "", WrapString("Hostname for SNI and certificate validation. Defaults to the discovery URL host"))

	key = "pool-size"
	cmd.PersistentFlags().Int(key, common.DefaultPoolSize, WrapString("Number of pooled unary connections"))

	key = "retries"
	cmd.PersistentFlags().Int(key, common.DefaultRetryCount, WrapString("How many times to retry establishing a connection"))

	key = "write-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the socket write buffer (in KB, 0 leaves the OS default)"))

	key = "read-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the socket read buffer (in KB, 0 leaves the OS default)"))

	key = "tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY for unary connections"))

	key = "tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The TCP keepalive interval in seconds (0 disables)"))

	key = "tcp-linger"
	cmd.PersistentFlags().Int(key, 0, WrapString("The TCP linger time in seconds"))

	key = "channels"
	cmd.PersistentFlags().Int(key, common.DefaultStreamChannels, WrapString("Number of streaming channels subscriptions are multiplexed over"))

	key = "max-streams"
	cmd.PersistentFlags().Int(key, common.DefaultMaxConcurrentStreams, WrapString("Maximum number of concurrent subscriptions across all channels"))

	key = "resubscribe-delay"
	cmd.PersistentFlags().Int(key, 0, WrapString("Delay in milliseconds between failed resubscribe attempts (0 retries immediately)"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("cachelink")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() (*common.ClientConfig, error) {
	securityMode, err := common.ParseSecurityMode(viper.GetString("security"))
	if err != nil {
		return nil, err
	}

	conf := &common.ClientConfig{
		Credential:    viper.GetString("credential"),
		TimeoutSecond: viper.GetInt("timeout"),
		LogLevel:      viper.GetString("log-level"),
		Discovery: common.DiscoveryConf{
			BaseURL:            viper.GetString("discovery-url"),
			Zone:               viper.GetString("discovery-zone"),
			PrivateEndpoints:   viper.GetBool("discovery-private"),
			RefreshIntervalSec: viper.GetInt("discovery-refresh-interval"),
			StaticEndpoint:     viper.GetString("endpoint"),
		},
		Transport: common.ClientTransportConfig{
			SecurityMode: securityMode,
			TLSHostname:  viper.GetString("tls-hostname"),
			PoolSize:     viper.GetInt("pool-size"),
			RetryCount:   viper.GetInt("retries"),
			SocketConf: common.SocketConf{
				WriteBufferSize: viper.GetInt("write-buffer") * 1024,
				ReadBufferSize:  viper.GetInt("read-buffer") * 1024,
			},
			TCPConf: common.TCPConf{
				TCPKeepAliveSec: viper.GetInt("tcp-keepalive"),
				TCPLingerSec:    viper.GetInt("tcp-linger"),
				TCPNoDelay:      viper.GetBool("tcp-nodelay"),
			},
		},
		Stream: common.StreamConf{
			Channels:             viper.GetInt("channels"),
			MaxConcurrentStreams: viper.GetInt("max-streams"),
			ResubscribeDelayMs:   viper.GetInt("resubscribe-delay"),
		},
	}

	return conf, nil
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	switch viper.GetString("serializer") {
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "gob":
		return serializer.NewGOBSerializer(), nil
	case "binary":
		return serializer.NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}
}

// GetNamespace retrieves the configured cache namespace
func GetNamespace() string {
	return viper.GetString("namespace")
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
