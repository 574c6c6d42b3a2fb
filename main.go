package main

import (
	"os"

	"github.com/javaarchive/nerine-tweaks/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
