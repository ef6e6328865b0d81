package main

import (
	"os"

	"github.com/rustyeddy/swingsim/cmd/swingsim/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
