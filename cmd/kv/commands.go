package kv

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cachelink/cachelink-go/cmd/util"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value := args[1]
			if err := rpcClient.Set(context.Background(), util.GetNamespace(), key, []byte(value)); err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	setECmd = &cobra.Command{
		Use:   "setE [key] [value] [expireIn]",
		Short: "Sets the value for a key with a time to live in seconds",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value := args[1]
			expireIn, err := strconv.ParseUint(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("expireIn must be a number: %w", err)
			}
			if err := rpcClient.SetE(context.Background(), util.GetNamespace(), key, []byte(value), expireIn); err != nil {
				return err
			}
			fmt.Println("setE successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			resp, ok, err := rpcClient.Get(context.Background(), util.GetNamespace(), key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%v, resp=%s\n", key, ok, resp)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if err := rpcClient.Delete(context.Background(), util.GetNamespace(), key); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	hasCmd = &cobra.Command{
		Use:   "has [key]",
		Short: "Checks if a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			found, err := rpcClient.Has(context.Background(), util.GetNamespace(), key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%t\n", key, found)
			return nil
		},
	}
	locateCmd = &cobra.Command{
		Use:   "locate [key]",
		Short: "Shows the placement order of the known endpoints for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			ranked := rpcClient.RankEndpoints([]byte(key), 0)
			if len(ranked) == 0 {
				fmt.Println("no endpoints known yet")
				return nil
			}
			fmt.Printf("key=%s, endpoints=%d\n", key, len(ranked))
			for i, addr := range ranked {
				fmt.Printf("  %d. %s\n", i+1, addr)
			}
			return nil
		},
	}
)
