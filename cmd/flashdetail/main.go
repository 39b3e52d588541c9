package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	cmd, ctx := newRootCommand()
	err := cmd.Execute()
	ctx.close()
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
