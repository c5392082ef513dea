package topic

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cachelink/cachelink-go/cmd/util"
	"github.com/cachelink/cachelink-go/rpc/client"
	"github.com/cachelink/cachelink-go/rpc/stream"
)

var (
	rpcClient *client.Client

	// TopicCommands represents the topic command group
	TopicCommands = &cobra.Command{
		Use:               "topic",
		Short:             "Perform topic operations",
		PersistentPreRunE: setupTopicClient,
		PersistentPostRun: teardownTopicClient,
	}

	// publishCmd represents the publish command
	publishCmd = &cobra.Command{
		Use:   "publish [topic] [value]",
		Short: "Publish a value to a topic",
		Args:  cobra.ExactArgs(2),
		RunE:  runPublish,
	}

	// subscribeCmd represents the subscribe command
	subscribeCmd = &cobra.Command{
		Use:   "subscribe [topic]",
		Short: "Subscribe to a topic and print its items",
		Long:  "Subscribe to a topic and print every received item until the process is interrupted. The subscription starts at the current tail of the topic and survives stream failures by resubscribing at the last received sequence number.",
		Args:  cobra.ExactArgs(1),
		RunE:  runSubscribe,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add subcommands to topic command
	TopicCommands.AddCommand(publishCmd)
	TopicCommands.AddCommand(subscribeCmd)

	// Add common client flags to the topic command
	util.SetupRPCClientFlags(TopicCommands)

	// Cache namespace the topics live in
	TopicCommands.PersistentFlags().String("namespace", "default", util.WrapString("The cache namespace the topic belongs to"))
}

// setupTopicClient initializes the topic client
func setupTopicClient(cmd *cobra.Command, _ []string) error {
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

	// Create the topic client
	rpcClient, err = client.NewWithSerializer(*config, s)
	return err
}

// teardownTopicClient releases the client of the finished command
func teardownTopicClient(_ *cobra.Command, _ []string) {
	if rpcClient != nil {
		rpcClient.Close()
	}
}

// runPublish handles the publish command
func runPublish(_ *cobra.Command, args []string) error {
	topic := args[0]
	value := args[1]

	seqNo, err := rpcClient.Publish(context.Background(), util.GetNamespace(), topic, []byte(value))
	if err != nil {
		return fmt.Errorf("failed to publish: %v", err)
	}

	fmt.Printf("published, seqNo=%d\n", seqNo)
	return nil
}

// runSubscribe handles the subscribe command
func runSubscribe(_ *cobra.Command, args []string) error {
	topic := args[0]

	// The subscription runs until the user interrupts the process
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := rpcClient.Subscribe(ctx, util.GetNamespace(), topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %v", err)
	}
	defer session.Close()

	fmt.Printf("subscribed to %s/%s\n", util.GetNamespace(), topic)

	for {
		event, err := session.Event(ctx)
		if err != nil {
			if ctx.Err() != nil {
				fmt.Println("\nsubscription closed")
				return nil
			}
			return err
		}

		switch event.Kind {
		case stream.EventValue:
			fmt.Printf("seqNo=%d value=%s\n", event.SequenceNumber, event.Value)
		case stream.EventDiscontinuity:
			fmt.Printf("discontinuity: continuing at seqNo=%d\n", event.NewSequenceNumber)
		}
	}
}
