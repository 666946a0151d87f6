// Command wsnembed loads a wireless sensor network embedding scenario and
// inspects it, plays greedy episodes on it, or evaluates many of them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root, a := newRootCmd()
	if err := executeRoot(ctx, root, a); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
