package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/pixil98/go-arena/cmd/arena/command"
	"github.com/pixil98/go-arena/internal/arena"
	"github.com/pixil98/go-service"
)

func main() {
	app, err := service.NewApp(&command.Config{}, command.BuildWorkers)
	if err != nil {
		slog.Error("creating application", "error", err)
		os.Exit(1)
	}

	err = app.Run(context.Background())
	if errors.Is(err, arena.ErrRestartRequested) {
		slog.Info("exiting for restart")
		os.Exit(command.RestartExitCode)
	}
	if err != nil {
		slog.Error("running application", "error", err)
		os.Exit(1)
	}

	slog.Info("exiting")
}
