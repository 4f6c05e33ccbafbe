package main

import (
	"fmt"
	"os"

	"github.com/phantomssr/phantom/pkg/cli"
)

// Set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		fmt.Fprintf(os.Stderr, "👻 [Phantom] Error: %v\n", err)
		os.Exit(1)
	}
}
