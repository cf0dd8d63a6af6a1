package main

import (
	"os"

	"github.com/gridsight-dev/gridsight/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
