package main

import (
	"os"

	"github.com/Carmen-Shannon/oxy-gravity/cmd/oxy-gravity/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
