package main

import (
	"context"
	"fmt"
	"os"

	"github.com/telekom/autofix-notifier/pkg/cli"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if err := cli.Execute(context.Background(), args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
