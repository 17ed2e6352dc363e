// Command malbatch runs transforms over malware sample datasets in batches
// and summarizes the results.
//
// Usage:
//
//	malbatch scan --dataset bodmas --transform scan --batch-size 100 --mode process
//	malbatch list bodmas_armed --limit 10
//	malbatch get bodmas <sha256> --check
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
