package main

import (
	"fmt"
	"os"

	"transcript_harvester/cmd/harvest"
)

func main() {
	if err := harvest.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
