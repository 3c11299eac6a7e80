package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	stateDir   string
	mockNet    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "meshctl",
	Short: "Compile and drive a declarative WireGuard mesh",
	Long: `meshctl reads a declarative YAML network description, compiles it into
per-host routing and firewall state, and applies or reverts that state on
the local machine (or, with --mock, inside a namespace-isolated harness for
local testing without real WAN addresses).`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "runtime state directory (default: ~/.meshctl)")
	rootCmd.PersistentFlags().BoolVar(&mockNet, "mock", false, "use the namespace-isolated mock network harness")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "meshctl.yaml", "network description file")
	_ = viper.BindPFlag("state_dir", rootCmd.PersistentFlags().Lookup("state-dir"))
	_ = viper.BindPFlag("mock", rootCmd.PersistentFlags().Lookup("mock"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

// Execute runs the root command, printing any error to stderr and setting
// a non-zero exit code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
