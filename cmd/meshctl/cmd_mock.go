package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Drive the namespace-isolated mock network harness (C6)",
}

var mockUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Create the hub namespace and per-host veths, then bring up every host",
	Args:  cobra.NoArgs,
	RunE:  runMockUp,
}

var mockDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Tear down every host, then the hub namespace and veths",
	Args:  cobra.NoArgs,
	RunE:  runMockDown,
}

func init() {
	mockCmd.AddCommand(mockUpCmd, mockDownCmd)
	rootCmd.AddCommand(mockCmd)
}

func runMockUp(cmd *cobra.Command, args []string) error {
	engine, err := buildEngine(configPath)
	if err != nil {
		return err
	}
	defer engine.Close()

	if !engine.Network.IsMockNet() {
		return fmt.Errorf("%w: config does not set mock_net and --mock was not passed", ErrApplyMockNet)
	}

	ctx := context.Background()
	if err := engine.Network.UpMockNet(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrApplyMockNet, err)
	}
	fmt.Println("mock net up: hub namespace and per-host veths created")

	for _, host := range engine.Network.HostNames() {
		if err := engine.Up(ctx, host); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrApplyHost, host, err)
		}
		fmt.Printf("up: %s\n", host)
	}

	return nil
}

func runMockDown(cmd *cobra.Command, args []string) error {
	engine, err := buildEngine(configPath)
	if err != nil {
		return err
	}
	defer engine.Close()

	if !engine.Network.IsMockNet() {
		return fmt.Errorf("%w: config does not set mock_net and --mock was not passed", ErrRevertMockNet)
	}

	ctx := context.Background()
	names := engine.Network.HostNames()
	for i := len(names) - 1; i >= 0; i-- {
		if err := engine.Down(ctx, names[i]); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrRevertHost, names[i], err)
		}
		fmt.Printf("down: %s\n", names[i])
	}

	if err := engine.Network.DownMockNet(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrRevertMockNet, err)
	}
	fmt.Println("mock net down")

	return nil
}
