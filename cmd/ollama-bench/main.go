package main

import (
	"fmt"
	"os"

	"github.com/ollama-bench/ollama-bench/cmd/ollama-bench/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
