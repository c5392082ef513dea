package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cachelink/cachelink-go/cmd/kv"
	"github.com/cachelink/cachelink-go/cmd/topic"
	"github.com/cachelink/cachelink-go/cmd/util"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "cachelink",
		Short: "client for the Cachelink cache service",
		Long: fmt.Sprintf(`Cachelink (v%s)

Command line client for the Cachelink hosted cache and topics service.
Cache operations run over pooled binary RPC connections, topic
subscriptions over multiplexed streaming channels.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of the cachelink client",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("cachelink v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(topic.TopicCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (json, gob, binary)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
