package main

import (
	"os"

	"github.com/weft-sh/weft/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
