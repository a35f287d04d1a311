package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"autoflow/app/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "autoflow:", err)
		os.Exit(1)
	}
}
