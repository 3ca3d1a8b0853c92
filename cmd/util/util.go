package util

import (
	"fmt"
	"github.com/ValentinKolb/dBridge/bridge/common"
	"github.com/ValentinKolb/dBridge/bridge/transport"
	"github.com/ValentinKolb/dBridge/bridge/transport/tcp"
	"github.com/ValentinKolb/dBridge/bridge/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
	"time"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// DefaultTCPEndpoint is used when the tcp transport is selected without an endpoint
	DefaultTCPEndpoint = "127.0.0.1:7780"
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

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupBridgeFlags adds the flags shared by both peers to a command
func SetupBridgeFlags(cmd *cobra.Command) {
	key := "endpoint"
	cmd.PersistentFlags().String(key, "", WrapString("Socket path (unix) or loopback address (tcp) of the bridge. Defaults to "+common.DefaultSocketPath+" or "+DefaultTCPEndpoint))

	key = "message-interval"
	cmd.PersistentFlags().Duration(key, common.DefaultMessageInterval, WrapString("Flush cadence of the deferred text commands"))

	key = "geometry-interval"
	cmd.PersistentFlags().Duration(key, common.DefaultGeometryInterval, WrapString("Flush cadence of the coalesced geometry updates"))

	key = "tick-interval"
	cmd.PersistentFlags().Duration(key, common.DefaultTickInterval, WrapString("Interval of the tick loop that drains inbound messages and flushes the queues"))

	key = "stats-interval"
	cmd.PersistentFlags().Duration(key, common.DefaultStatsInterval, WrapString("Interval of the inbound statistics report (logged at debug level)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "info", WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// InitConfig loads the env files and enables DBRIDGE_<FLAG> environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dbridge")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetConfig reads the shared bridge configuration from viper. Role specific fields
// are set by the commands, which validate the result.
func GetConfig(role common.Role) *common.Config {
	conf := common.DefaultConfig(role)

	conf.Transport = viper.GetString("transport")
	conf.Endpoint = viper.GetString("endpoint")
	if conf.Endpoint == "" {
		conf.Endpoint = defaultEndpoint(conf.Transport)
	}
	conf.MessageInterval = durationOr(viper.GetDuration("message-interval"), common.DefaultMessageInterval)
	conf.GeometryInterval = durationOr(viper.GetDuration("geometry-interval"), common.DefaultGeometryInterval)
	conf.TickInterval = durationOr(viper.GetDuration("tick-interval"), common.DefaultTickInterval)
	conf.StatsInterval = durationOr(viper.GetDuration("stats-interval"), common.DefaultStatsInterval)
	conf.LogLevel = viper.GetString("log-level")

	return conf
}

func defaultEndpoint(transport string) string {
	if transport == "tcp" {
		return DefaultTCPEndpoint
	}
	return common.DefaultSocketPath
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// SplitList splits a comma separated flag value, empty entries are dropped
func SplitList(s string) []string {
	var result []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}

// GetClientTransport creates the dialing transport based on configuration
func GetClientTransport(conf *common.Config) (transport.IBridgeClientTransport, error) {
	switch conf.Transport {
	case "tcp":
		return tcp.NewTCPClientTransport(), nil
	case "unix":
		return unix.NewUnixClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", conf.Transport)
	}
}

// GetServerTransport creates the listening transport based on configuration
func GetServerTransport(conf *common.Config) (transport.IBridgeServerTransport, error) {
	switch conf.Transport {
	case "tcp":
		return tcp.NewTCPServerTransport(), nil
	case "unix":
		return unix.NewUnixDefaultServerTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", conf.Transport)
	}
}
