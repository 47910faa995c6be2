package main

import (
	"os"

	"github.com/JonMunkholm/gridkit/cmd/gridctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
