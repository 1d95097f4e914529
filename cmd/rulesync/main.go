package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"

	"rulesync/internal/cli"
	"rulesync/pkg/version"
)

func main() {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		slog.Warn("load .env file", slog.Any("err", err))
	}

	err = fang.Execute(context.Background(), cli.NewRootCmd(),
		fang.WithVersion(version.GetVersion()),
		fang.WithErrorHandler(cli.ErrorHandler),
	)
	if err != nil {
		os.Exit(1)
	}
}
