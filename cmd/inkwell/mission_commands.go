package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"inkwell/internal/api"
	"inkwell/internal/ipc"
)

func newListCommand(flags *rootFlags) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active and recently finished missions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := flags.dial()
			if err != nil {
				return err
			}
			defer client.Close()

			resp, err := client.List()
			if err != nil {
				return err
			}
			if len(resp.Active) == 0 && len(resp.Recent) == 0 {
				cmd.Println("No missions")
				return nil
			}
			if len(resp.Active) > 0 {
				cmd.Println("Active")
				cmd.Println(missionTable(resp.Active, false))
			}
			if len(resp.Recent) > 0 {
				recent := resp.Recent
				if !all && len(recent) > 20 {
					recent = recent[:20]
				}
				cmd.Println("Recent")
				cmd.Println(missionTable(recent, true))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "show the full recent history instead of the last 20")
	return cmd
}

func missionTable(missions []api.Mission, finished bool) string {
	headers := table.Row{"ID", "Status", "Size", "Retries", "Source"}
	if finished {
		headers = append(headers, "Duration")
	}
	rows := make([]table.Row, 0, len(missions))
	for _, m := range missions {
		row := table.Row{
			strconv.FormatInt(m.ID, 10),
			m.Status,
			m.Size,
			strconv.Itoa(m.RetryCount),
			m.SourcePath,
		}
		if finished {
			row = append(row, missionDuration(m))
		}
		rows = append(rows, row)
	}
	return renderTable(headers, rows, 0, 2, 3)
}

func missionDuration(m api.Mission) string {
	if m.EndTime.IsZero() {
		return ""
	}
	return m.EndTime.Sub(m.JoinTime).Round(time.Millisecond).String()
}

func newAddCommand(flags *rootFlags) *cobra.Command {
	var targetDir string
	cmd := &cobra.Command{
		Use:   "add <path>...",
		Short: "Queue files or directories for conversion",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.dial()
			if err != nil {
				return err
			}
			defer client.Close()

			for _, path := range args {
				info, err := os.Stat(path)
				if err != nil {
					return err
				}
				resp, err := client.Add(ipc.AddRequest{
					Path:      path,
					TargetDir: targetDir,
					Dir:       info.IsDir(),
				})
				if err != nil {
					return fmt.Errorf("add %s: %w", path, err)
				}
				if info.IsDir() {
					cmd.Printf("Added %d mission(s) from %s\n", resp.Added, path)
				} else {
					cmd.Printf("Added mission %d for %s\n", resp.MissionID, path)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&targetDir, "target-dir", "", "directory for the produced PDFs (defaults to the configured one)")
	return cmd
}

func newCancelCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a mission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid mission id %q", args[0])
			}
			client, err := flags.dial()
			if err != nil {
				return err
			}
			defer client.Close()

			if _, err := client.Cancel(id); err != nil {
				return err
			}
			cmd.Printf("Canceled mission %d\n", id)
			return nil
		},
	}
}
