package main

import (
	"os"

	"github.com/eshaffer321/invoice-reconciler/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
