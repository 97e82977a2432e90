package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cppla/rollcall/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "rollcall:", err)
		os.Exit(1)
	}
}
