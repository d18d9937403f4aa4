package kv

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/rKV/cmd/util"
	"github.com/ValentinKolb/rKV/rpc/client"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/VictoriaMetrics/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	endpoint *client.Endpoint

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform key-value operations against a cluster",
		PersistentPreRunE:  setupKVClient,
		PersistentPostRunE: teardownKVClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add the cluster connection flags to the KV command
	util.SetupClientFlags(KeyValueCommands)

	key := "bucket"
	KeyValueCommands.PersistentFlags().String(key, "default", util.WrapString("Bucket the keys belong to"))

	key = "print-metrics"
	KeyValueCommands.PersistentFlags().Bool(key, false, util.WrapString("Print the client metrics in Prometheus text format after the command"))

	// Add subcommands
	KeyValueCommands.AddCommand(pingCmd)
	KeyValueCommands.AddCommand(infoCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(putCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(keysCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupKVClient initializes the loggers and the failover controller
func setupKVClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	if err := common.InitLoggers(viper.GetString("log-level")); err != nil {
		return err
	}

	var err error
	endpoint, err = util.NewEndpoint()
	return err
}

// teardownKVClient closes all connections and optionally dumps the metrics
func teardownKVClient(_ *cobra.Command, _ []string) error {
	if endpoint == nil {
		return nil
	}
	err := endpoint.Close()
	if viper.GetBool("print-metrics") {
		fmt.Println()
		metrics.WritePrometheus(os.Stdout, false)
	}
	return err
}

// bucket returns the configured bucket
func bucket() string {
	return viper.GetString("bucket")
}
