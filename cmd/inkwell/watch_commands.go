package main

import (
	"github.com/spf13/cobra"

	"inkwell/internal/ipc"
)

func newWatchCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <dir>",
		Short: "Add a directory to the periodic ingest scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.dial()
			if err != nil {
				return err
			}
			defer client.Close()

			resp, err := client.Watch(ipc.WatchRequest{Dir: args[0]})
			if err != nil {
				return err
			}
			if resp.Changed {
				cmd.Println("Watching", args[0])
			} else {
				cmd.Println("Already watching", args[0])
			}
			return nil
		},
	}
}

func newUnwatchCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "unwatch <dir>",
		Short: "Remove a directory from the periodic ingest scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.dial()
			if err != nil {
				return err
			}
			defer client.Close()

			resp, err := client.Watch(ipc.WatchRequest{Dir: args[0], Remove: true})
			if err != nil {
				return err
			}
			if resp.Changed {
				cmd.Println("Stopped watching", args[0])
			} else {
				cmd.Println("Was not watching", args[0])
			}
			return nil
		},
	}
}
