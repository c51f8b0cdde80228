package main

import (
	"fmt"
	"os"

	"github.com/roach88/rewind/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rewind:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
