package main

import (
	"fmt"
	"os"

	"github.com/dukerupert/shoplist/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", cli.ErrorMessage(err))
		os.Exit(cli.GetExitCode(err))
	}
}
