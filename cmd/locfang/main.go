// Package main provides the entry point for the locfang CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/Sumatoshi-tech/locfang/cmd/locfang/commands"
)

func main() {
	err := commands.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(commands.ExitCode(err))
	}
}
