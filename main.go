package main

import (
	"os"

	"github.com/evdealer/contractedit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
