package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ivoronin/ec2bastion/internal/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	status := cmd.Execute(ctx, cmd.DefaultEnv(), os.Args[1:])

	stop()
	os.Exit(status)
}
