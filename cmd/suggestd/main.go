// Package main is the entry point for the suggestd server application.
package main

import (
	"log/slog"
	"os"
	"strings"

	"gopkg.in/urfave/cli.v1"
)

// serverHeader is sent with every HTTP response.
const serverHeader = "suggestd"

func main() {
	app := cli.NewApp()
	app.Name = "suggestd"
	app.HelpName = os.Args[0]
	app.Usage = "ranked suggestions from a periodically reloaded dataset"
	app.HideVersion = true
	app.Commands = []cli.Command{
		serveCommand,
		checkCommand,
	}
	if err := app.Run(os.Args); err != nil {
		slog.Error("suggestd", "error", err)
		os.Exit(1)
	}
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
