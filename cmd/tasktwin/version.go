package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/iamrohanmehra/task-twin-betax/internal/version"
)

func versionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if short {
				fmt.Println(version.Version)
				return
			}
			fmt.Printf("Version:    %s\n", version.Version)
			fmt.Printf("Commit:     %s\n", version.Commit)
			fmt.Printf("Built:      %s\n", version.Date)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only version number")

	return cmd
}
