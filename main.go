package main

import (
	"os"

	"github.com/CodeMonkeyCybersecurity/bountywatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
