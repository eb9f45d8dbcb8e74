package main

import (
	"log/slog"
	"os"

	"github.com/mdale/monzo-lunchmoney-sync/internal/cli"
)

func main() {
	flags := cli.ParseServeFlags()

	cfg, _, err := cli.Setup("", flags.Verbose)
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := cli.RunServe(cfg, flags); err != nil {
		slog.Error("Server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
