package main

import (
	"github.com/spf13/cobra"

	"inkwell/internal/config"
)

func newConfigCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(newConfigInitCommand(flags), newConfigPathCommand(flags))
	return cmd
}

func newConfigInitCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a commented sample config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := flags.configPath
			if path == "" {
				var err error
				path, err = config.DefaultConfigPath()
				if err != nil {
					return err
				}
			}
			if err := config.CreateSample(path); err != nil {
				return err
			}
			cmd.Println("Wrote sample config to", path)
			return nil
		},
	}
}

func newConfigPathCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path in effect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, path, found, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			if !found {
				cmd.Println(path, "(not present, defaults in effect)")
				return nil
			}
			cmd.Println(path)
			return nil
		},
	}
}
