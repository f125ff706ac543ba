// Package main is the entry point for the lqasync CLI application.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/danielolaszy/lqasync/cmd"
	"github.com/danielolaszy/lqasync/internal/logging"
)

func main() {
	logging.Debug("starting lqasync", "log_level", os.Getenv("LOG_LEVEL"))

	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, cmd.ErrRunFailed) {
			logging.Error("command execution failed", "error", err)
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
