package main

import (
	"os"

	"github.com/splat-replay/splat-replay/cmd/splat-replay/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
