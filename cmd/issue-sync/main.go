package main

import (
	"log/slog"
	"os"

	"github.com/renderinc/issue-sync/cmd/issue-sync/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		slog.Error("issue-sync failed", "error", err)
		os.Exit(1)
	}
}
