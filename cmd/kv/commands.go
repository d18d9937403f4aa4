package kv

import (
	"fmt"

	"github.com/ValentinKolb/rKV/rpc/commands"
	"github.com/spf13/cobra"
)

var (
	keysDelayed bool

	pingCmd = &cobra.Command{
		Use:   "ping",
		Short: "Checks that the cluster answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result := endpoint.Execute(commands.NewPing())
			if err := result.Err(); err != nil {
				return err
			}
			fmt.Printf("pong from %s (attempts=%d)\n", result.Node, result.Attempts)
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints name and version of a node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result := endpoint.Execute(commands.NewGetServerInfo())
			if err := result.Err(); err != nil {
				return err
			}
			info := result.First().(*commands.ServerInfo)
			fmt.Printf("node=%s, version=%s\n", info.Node, info.ServerVersion)
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			result := endpoint.Execute(commands.NewGet(bucket(), key))
			if err := result.Err(); err != nil {
				return err
			}
			resp := result.First().(*commands.GetResponse)
			fmt.Printf("key=%s, found=%v, resp=%s\n", key, resp.Found, resp.Value)
			return nil
		},
	}
	putCmd = &cobra.Command{
		Use:   "put [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			contentType, _ := cmd.Flags().GetString("content-type")
			result := endpoint.Execute(commands.NewPut(bucket(), args[0], []byte(args[1]), contentType))
			if err := result.Err(); err != nil {
				return err
			}
			fmt.Println("put successfully")
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result := endpoint.Execute(commands.NewDelete(bucket(), args[0]))
			if err := result.Err(); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	keysCmd = &cobra.Command{
		Use:   "keys",
		Short: "Lists all keys of the bucket (requires --allow-list)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdList := commands.NewListKeys(bucket(), endpoint.Registry().Config().DisableListExceptions)
			if keysDelayed {
				return printKeysDelayed(cmdList)
			}

			count := 0
			cmdList.OnKeys(func(keys []string) {
				for _, k := range keys {
					fmt.Println(k)
				}
				count += len(keys)
			})
			result := endpoint.Execute(cmdList)
			if err := result.Err(); err != nil {
				return err
			}
			fmt.Printf("%d keys\n", count)
			return nil
		},
	}
)

func init() {
	putCmd.Flags().String("content-type", "text/plain", "Content type stored with the value")
	keysCmd.Flags().BoolVar(&keysDelayed, "delayed", false, "Read the listing lazily, frame by frame")
}

// printKeysDelayed prints the keys while the frames arrive
func printKeysDelayed(cmd *commands.ListKeys) error {
	stream, result := endpoint.UseDelayedConnection(cmd)
	if err := result.Err(); err != nil {
		return err
	}

	count := 0
	for resp := range stream.All() {
		for _, k := range resp.(*commands.ListKeysResponse).Keys {
			fmt.Println(k)
			count++
		}
	}
	if err := stream.Err(); err != nil {
		return err
	}
	fmt.Printf("%d keys (from %s)\n", count, stream.Node())
	return nil
}
