package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var downCmd = &cobra.Command{
	Use:   "down <host>",
	Short: "Revert one host's transaction",
	Args:  cobra.ExactArgs(1),
	RunE:  runDown,
}

func init() {
	rootCmd.AddCommand(downCmd)
}

func runDown(cmd *cobra.Command, args []string) error {
	host := args[0]

	engine, err := buildEngine(configPath)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.Down(context.Background(), host); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRevertHost, host, err)
	}

	fmt.Printf("down: %s\n", host)
	return nil
}
