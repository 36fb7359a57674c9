package main

import (
	"os"

	"github.com/rustyeddy/btledger/cmd/btledger/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
