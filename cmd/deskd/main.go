package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/grovetools/deskd/cli"
	"github.com/grovetools/deskd/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, cmd.NewRootCmd())
	stop()
	os.Exit(code)
}
