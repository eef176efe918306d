package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iamrohanmehra/task-twin-betax/internal/config"
)

func initCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		Long:  `Write a tasktwin.json with the default settings to the working directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(config.ConfigFileName); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", config.ConfigFileName)
			}
			if err := config.Default().SaveTo(config.ConfigFileName); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", config.ConfigFileName)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config file")

	return cmd
}
