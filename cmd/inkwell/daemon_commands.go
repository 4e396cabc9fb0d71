package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"inkwell/internal/daemonrun"
	"inkwell/internal/ipc"
)

const startWaitTimeout = 10 * time.Second

func newStartCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Launch the daemon in the background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			socket, err := flags.socket()
			if err != nil {
				return err
			}
			if client, err := ipc.Dial(socket); err == nil {
				_ = client.Close()
				cmd.Println("Daemon already running")
				return nil
			}

			executable, err := daemonExecutable()
			if err != nil {
				return err
			}
			if err := launchDaemon(executable, flags.configPath); err != nil {
				return err
			}
			client, err := waitForClient(socket, startWaitTimeout)
			if err != nil {
				return err
			}
			defer client.Close()

			cmd.Println("Daemon started")
			if resp, err := client.Status(); err == nil && resp.Status.Degraded != "" {
				cmd.Println("Warning:", resp.Status.Degraded)
			}
			return nil
		},
	}
}

func newRunCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return daemonrun.Run(cmd.Context(), daemonrun.Options{ConfigPath: flags.configPath})
		},
	}
	return cmd
}

func newStopCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Shut down the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := flags.dial()
			if err != nil {
				return err
			}
			defer client.Close()
			if _, err := client.Stop(); err != nil {
				return err
			}

			socket, err := flags.socket()
			if err != nil {
				return err
			}
			if err := waitForShutdown(socket, startWaitTimeout); err != nil {
				return err
			}
			cmd.Println("Daemon stopped")
			return nil
		},
	}
}

// daemonExecutable locates inkwelld, preferring a sibling of the current
// binary over PATH.
func daemonExecutable() (string, error) {
	if self, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(self), "inkwelld")
		if info, err := os.Stat(sibling); err == nil && !info.IsDir() {
			return sibling, nil
		}
	}
	path, err := exec.LookPath("inkwelld")
	if err != nil {
		return "", fmt.Errorf("inkwelld not found next to inkwell or on PATH: %w", err)
	}
	return path, nil
}

func launchDaemon(executable, configPath string) error {
	args := []string{}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	proc := exec.Command(executable, args...)
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

func waitForClient(socket string, timeout time.Duration) (*ipc.Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socket)
		if err == nil {
			return client, nil
		}
		lastErr = err
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = errors.New("timeout")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

func waitForShutdown(socket string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socket)
		if err != nil {
			return nil
		}
		_ = client.Close()
		time.Sleep(200 * time.Millisecond)
	}
	return errors.New("daemon did not stop in time")
}
