package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var upCmd = &cobra.Command{
	Use:   "up <host>",
	Short: "Compile the network and apply one host's transaction",
	Example: `  meshctl up office-gw
  meshctl up --mock -c network.yaml hostA`,
	Args: cobra.ExactArgs(1),
	RunE: runUp,
}

func init() {
	rootCmd.AddCommand(upCmd)
}

func runUp(cmd *cobra.Command, args []string) error {
	host := args[0]

	engine, err := buildEngine(configPath)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx := context.Background()
	if err := engine.Up(ctx, host); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrApplyHost, host, err)
	}

	fmt.Printf("up: %s\n", host)
	return nil
}
