package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/qrtrack/internal/cli"
	"github.com/JonMunkholm/qrtrack/internal/core"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if hint := core.MapError(err); hint.Code != "ERR000" {
			fmt.Fprintf(os.Stderr, "%s (%s)\n", hint.Action, hint.Code)
		}
		stop()
		os.Exit(1)
	}
}
