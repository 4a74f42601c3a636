package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopqa/shopqa/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Run(ctx, os.Args[1:], cli.Options{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Plain:  os.Getenv("NO_COLOR") != "",
	})
	stop()
	os.Exit(code)
}
