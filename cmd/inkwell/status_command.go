package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"inkwell/internal/ipc"
)

func newStatusCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and pool state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			socket, err := flags.socket()
			if err != nil {
				return err
			}
			client, err := ipc.Dial(socket)
			if err != nil {
				cmd.Println("Daemon: not running (start it with 'inkwell start')")
				cmd.Println("Socket:", socket)
				return nil
			}
			defer client.Close()

			resp, err := client.Status()
			if err != nil {
				return fmt.Errorf("query status: %w", err)
			}
			status := resp.Status

			rows := []table.Row{
				{"Running", fmt.Sprintf("%t", status.Running)},
				{"PID", fmt.Sprintf("%d", status.PID)},
				{"Session", status.SessionID},
				{"Socket", status.SocketPath},
				{"Archive", status.ArchivePath},
				{"Workers", fmt.Sprintf("%d", status.Workers)},
				{"Outstanding", fmt.Sprintf("%d / %d", status.Outstanding, status.Capacity)},
			}
			if len(status.Watched) > 0 {
				rows = append(rows, table.Row{"Watched", strings.Join(status.Watched, "\n")})
			}
			if status.Degraded != "" {
				rows = append(rows, table.Row{"Degraded", status.Degraded})
			}
			cmd.Println(renderTable(table.Row{"Field", "Value"}, rows))
			return nil
		},
	}
}
