package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/marmos91/dittocheck/cmd/dittocheck/commands"
)

func main() {
	if err := commands.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, commands.ErrCheckFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
