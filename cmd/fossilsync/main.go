package main

import (
	"fmt"
	"os"

	"github.com/nhle/fossilsync/cmd/fossilsync/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, commands.FormatError(err))
		os.Exit(1)
	}
}
