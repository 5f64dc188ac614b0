package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/femibol/propel-command-center/internal/app"
)

func main() {
	var cli app.CLI
	kctx := kong.Parse(&cli,
		kong.Name("propel"),
		kong.Description("Turns passive screen activity into a weekly per-task timesheet."),
		kong.UsageOnError(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := kctx.Run(&app.Context{
		Ctx:        ctx,
		ConfigPath: cli.Config,
		EnvFile:    cli.EnvFile,
		Out:        os.Stdout,
		In:         os.Stdin,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
