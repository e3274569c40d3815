package main

import (
	"os"

	"github.com/intelogroup/usmle-trivia-sub009/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
