package main

import (
	"errors"
	"fmt"
	"os"

	"trading-gate/internal/cli"
	"trading-gate/internal/config"
	"trading-gate/internal/logging"
)

func main() {
	cfg, err := config.Load(os.Getenv("GATE_CONFIG_DIR"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLoggerWithConfig(logging.FromConfig(cfg.Logging))

	rootCmd := cli.NewRootCmd(cfg, logger)
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, cli.ErrRejected) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
