package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iamrohanmehra/task-twin-betax/internal/config"
)

func checkCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the config file",
		Long:  `Load and validate the config file without starting the server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Printf("ok: listen on %s, store %s, cache %s\n",
				cfg.Addr(), storeMode(cfg), cacheBackend(cfg))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "tasktwin.json", "Path to the config file")

	return cmd
}

func storeMode(cfg *config.Config) string {
	if cfg.Store.Mode == "" {
		return "local"
	}
	return cfg.Store.Mode
}

func cacheBackend(cfg *config.Config) string {
	if cfg.Cache.Backend == "" {
		return "memory"
	}
	return cfg.Cache.Backend
}
