package util

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/ValentinKolb/rKV/rpc/client"
	"github.com/ValentinKolb/rKV/rpc/cluster"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/transport/tcp"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
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

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupClientFlags adds the cluster connection flags to a command
func SetupClientFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()

	key := "config"
	flags.String(key, "", WrapString("Optional config file (yaml, json or toml) with the same keys as the flags"))

	key = "nodes"
	flags.String(key, "localhost:8087", WrapString("Comma separated list of nodes (host or host:port, the default port is 8087)"))

	key = "pool-size"
	flags.Int(key, common.DefaultPoolSize, WrapString("Maximum number of connections per node"))

	key = "connect-timeout"
	flags.Duration(key, common.DefaultTimeout, WrapString("Timeout for connecting to a node, including the TLS handshake"))

	key = "read-timeout"
	flags.Duration(key, common.DefaultTimeout, WrapString("Timeout for reading a response frame"))

	key = "write-timeout"
	flags.Duration(key, common.DefaultTimeout, WrapString("Timeout for writing a request frame"))

	key = "retries"
	flags.Int(key, common.DefaultRetryCount, WrapString("How many attempts are made per request (across all nodes)"))

	key = "retry-wait"
	flags.Duration(key, common.DefaultRetryWaitTime, WrapString("How long to wait between two attempts"))

	key = "compact"
	flags.Bool(key, false, WrapString("Use the compact (msgpack) payload encoding instead of json"))

	key = "allow-list"
	flags.Bool(key, false, WrapString("Allow expensive list operations (e.g. listing all keys of a bucket)"))

	key = "tcp-keepalive"
	flags.Duration(key, 0, WrapString("Keep-alive period of the tcp sockets (0 uses the system default, negative disables it)"))

	key = "username"
	flags.String(key, "", WrapString("Username, enables TLS and authentication if set"))

	key = "password"
	flags.String(key, "", WrapString("Password of the user"))

	key = "ca-file"
	flags.String(key, "", WrapString("PEM file with the certificate authorities trusted to sign node certificates (system roots if empty)"))

	key = "client-cert"
	flags.String(key, "", WrapString("PEM file with the client certificate for certificate based authentication"))

	key = "client-key"
	flags.String(key, "", WrapString("PEM file with the key of the client certificate"))

	key = "server-name"
	flags.String(key, "", WrapString("Name expected in the node certificates (defaults to the node host)"))

	key = "check-revocation"
	flags.Bool(key, false, WrapString("Require a stapled OCSP response proving the node certificate is not revoked"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("rkv")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper and reads the config file if one was given
func BindCommandFlags(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if file := viper.GetString("config"); file != "" {
		viper.SetConfigFile(file)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}
	return nil
}

// ParseNodes parses a comma separated list of host or host:port entries
func ParseNodes(list string) ([]common.NodeConfig, error) {
	var nodes []common.NodeConfig
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		host, portStr, err := net.SplitHostPort(entry)
		if err != nil {
			// no port given
			nodes = append(nodes, common.NodeConfig{Host: strings.Trim(entry, "[]")})
			continue
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid port in node %q: %w", entry, err)
		}
		nodes = append(nodes, common.NodeConfig{Host: host, Port: port})
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("no nodes given")
	}
	return nodes, nil
}

// GetClusterConfig reads the cluster configuration from viper
func GetClusterConfig() (common.ClusterConfig, error) {
	nodes, err := ParseNodes(viper.GetString("nodes"))
	if err != nil {
		return common.ClusterConfig{}, err
	}

	var auth *common.AuthConfig
	if viper.GetString("username") != "" {
		auth = &common.AuthConfig{
			Username:                   viper.GetString("username"),
			Password:                   viper.GetString("password"),
			ClientCertificateFile:      viper.GetString("client-cert"),
			ClientKeyFile:              viper.GetString("client-key"),
			CertificateAuthorityFile:   viper.GetString("ca-file"),
			ServerName:                 viper.GetString("server-name"),
			CheckCertificateRevocation: viper.GetBool("check-revocation"),
		}
	}

	for i := range nodes {
		nodes[i].PoolSize = viper.GetInt("pool-size")
		nodes[i].UseCompactEncoding = viper.GetBool("compact")
		nodes[i].ConnectTimeout = viper.GetDuration("connect-timeout")
		nodes[i].ReadTimeout = viper.GetDuration("read-timeout")
		nodes[i].WriteTimeout = viper.GetDuration("write-timeout")
	}

	config := common.ClusterConfig{
		Nodes:                 nodes,
		RetryCount:            viper.GetInt("retries"),
		RetryWaitTime:         viper.GetDuration("retry-wait"),
		DisableListExceptions: viper.GetBool("allow-list"),
		Auth:                  auth,
	}
	return config.WithDefaults()
}

// NewEndpoint creates the failover controller for the configured cluster
func NewEndpoint() (*client.Endpoint, error) {
	config, err := GetClusterConfig()
	if err != nil {
		return nil, err
	}

	registry, err := cluster.NewRegistry(config, tcp.NewTCPConnectorWithKeepAlive(viper.GetDuration("tcp-keepalive")), common.DefaultCodeMap())
	if err != nil {
		return nil, err
	}
	return client.NewEndpoint(registry), nil
}
