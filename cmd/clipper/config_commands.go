package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clipper-camera/clipper-app/internal/config"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:         "config",
		Short:       "Manage the clipper configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand())
	configCmd.AddCommand(newConfigShowCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(targetPath)
			if path == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = defaultPath
			}

			expanded, err := config.ExpandPath(path)
			if err != nil {
				return err
			}
			if overwrite {
				if err := os.Remove(expanded); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("remove existing config: %w", err)
				}
			}
			if err := config.WriteSample(expanded); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", expanded)
			fmt.Fprintln(cmd.OutOrStdout(), "Set endpoint.base_url and endpoint.user_key before uploading.")
			return nil
		},
	}

	cmd.Flags().StringVar(&targetPath, "path", "", "Destination path (defaults to ~/.config/clipper/config.toml)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing configuration file")
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that the configuration file parses and validates",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			cfg, resolvedPath, exists, err := config.Load(configPath)

			fmt.Fprintf(stdout, "Config path: %s\n", resolvedPath)
			fmt.Fprintf(stdout, "Exists:      %s\n", yesNo(exists))
			if err != nil {
				fmt.Fprintf(stdout, "Valid:       no (%v)\n", err)
				return err
			}
			fmt.Fprintln(stdout, "Valid:       yes")
			fmt.Fprintf(stdout, "Endpoint:    %s\n", yesNo(cfg.EndpointConfigured()))
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "path", "", "Configuration file to validate (defaults to the standard search path)")
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, resolvedPath, exists, err := config.Load(configPath)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "Config path:      %s (exists: %s)\n", resolvedPath, yesNo(exists))
			fmt.Fprintf(stdout, "Endpoint URL:     %s\n", orDash(cfg.Endpoint.BaseURL))
			fmt.Fprintf(stdout, "User key set:     %s\n", yesNo(cfg.Endpoint.UserKey != ""))
			fmt.Fprintf(stdout, "Health path:      %s\n", cfg.Endpoint.HealthPath)
			fmt.Fprintf(stdout, "Data directory:   %s\n", cfg.Paths.DataDir)
			fmt.Fprintf(stdout, "Log directory:    %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(stdout, "Contacts file:    %s\n", orDash(cfg.Contacts.Path))
			fmt.Fprintf(stdout, "Max retries:      %d\n", cfg.Workflow.MaxRetries)
			fmt.Fprintf(stdout, "Allow metered:    %s\n", yesNo(cfg.Transport.AllowMetered))
			fmt.Fprintf(stdout, "Notifications:    %s\n", yesNo(cfg.Notifications.NtfyTopic != ""))
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "path", "", "Configuration file to show (defaults to the standard search path)")
	return cmd
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
