package kv

import (
	"github.com/spf13/cobra"

	"github.com/cachelink/cachelink-go/cmd/util"
	"github.com/cachelink/cachelink-go/rpc/client"
)

var (
	rpcClient *client.Client

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:               "kv",
		Short:             "Perform cache operations",
		PersistentPreRunE: setupKVClient,
		PersistentPostRun: teardownKVClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common client flags to the KV command
	util.SetupRPCClientFlags(KeyValueCommands)

	// Cache namespace all KV operations run against
	KeyValueCommands.PersistentFlags().String("namespace", "default", util.WrapString("The cache namespace to operate on"))

	// Add subcommands
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(setECmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(hasCmd)
	KeyValueCommands.AddCommand(locateCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupKVClient initializes the cache client
func setupKVClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Get client configuration
	config, err := util.GetClientConfig()
	if err != nil {
		return err
	}

	// Get serializer
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	// Create the cache client
	rpcClient, err = client.NewWithSerializer(*config, s)
	return err
}

// teardownKVClient releases the client of the finished command
func teardownKVClient(_ *cobra.Command, _ []string) {
	if rpcClient != nil {
		rpcClient.Close()
	}
}
