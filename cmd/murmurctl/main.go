// Command murmurctl administers a murmur social graph.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/jacentio/murmur/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "murmurctl:", err)
		stop()
		os.Exit(1)
	}
}
