// Package main provides the entry point for the tracecmp command.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"tracecmp/internal/cli"
)

func main() {
	// Cancelled on SIGINT/SIGTERM so `serve` can shut down gracefully.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], cli.Options{Stdout: os.Stdout, Stderr: os.Stderr})
	stop()
	os.Exit(code)
}
