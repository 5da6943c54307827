package main

import (
	"os"

	"github.com/hhkuy/sums-qz/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
