package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"inkwell/internal/config"
	"inkwell/internal/ipc"
)

type rootFlags struct {
	configPath string
	socketPath string
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "inkwell",
		Short:         "Control the inkwell conversion daemon",
		Long:          "inkwell converts office documents to PDF through a background daemon.\nUse the subcommands to start the daemon, submit files, and inspect progress.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to the config file")
	cmd.PersistentFlags().StringVar(&flags.socketPath, "socket", "", "daemon socket path (defaults to the configured one)")

	cmd.AddCommand(
		newStartCommand(flags),
		newRunCommand(flags),
		newStopCommand(flags),
		newStatusCommand(flags),
		newListCommand(flags),
		newAddCommand(flags),
		newCancelCommand(flags),
		newWatchCommand(flags),
		newUnwatchCommand(flags),
		newConfigCommand(flags),
	)
	return cmd
}

// socket resolves the daemon socket path, loading the config only when the
// flag is unset.
func (f *rootFlags) socket() (string, error) {
	if f.socketPath != "" {
		return f.socketPath, nil
	}
	cfg, _, _, err := config.Load(f.configPath)
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	return cfg.SocketPath(), nil
}

// dial connects to the daemon and wraps connection failures with a hint.
func (f *rootFlags) dial() (*ipc.Client, error) {
	socket, err := f.socket()
	if err != nil {
		return nil, err
	}
	client, err := ipc.Dial(socket)
	if err != nil {
		return nil, fmt.Errorf("daemon not reachable at %s (is it running? try 'inkwell start'): %w", socket, err)
	}
	return client, nil
}
