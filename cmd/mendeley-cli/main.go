package main

import (
	"fmt"
	"os"

	"github.com/shuichiro-makigaki/mendeley-cli/internal/cli"
)

var version = "dev"

func main() {
	cli.Version = version

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
