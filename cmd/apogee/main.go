package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		// interrupt during a run is a clean shutdown, not a failure
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "apogee:", err)
		}
		os.Exit(1)
	}
}
