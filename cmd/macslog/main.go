package main

import (
	"fmt"
	"os"

	"github.com/doitaljosh/macs-logger/internal/logging"
)

func main() {
	logging.ConfigureRuntime()
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "macslog: %v\n", err)
		os.Exit(1)
	}
}
