package main

import (
	"os"

	"github.com/congo-pay/sendbtc/cmd/sendbtc/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
