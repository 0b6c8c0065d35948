package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pixelgardenlabs/arcmirror/cmd"
	"github.com/pixelgardenlabs/arcmirror/pkg/buildinfo"
	"github.com/pixelgardenlabs/arcmirror/pkg/flagparse"
	"github.com/pixelgardenlabs/arcmirror/pkg/plog"
)

// run encapsulates the main application logic and returns an error if
// something goes wrong, allowing main to handle exit codes.
func run(ctx context.Context) error {
	r, err := flagparse.Parse(os.Args[1:])
	if err != nil {
		return err
	}

	switch r.Command {
	case flagparse.None:
		return nil
	case flagparse.Version:
		return cmd.RunVersion(buildinfo.Name, buildinfo.Version)
	case flagparse.Init:
		return cmd.RunInit(ctx, r)
	case flagparse.Link:
		return cmd.RunLink(ctx, r)
	case flagparse.Unlink:
		return cmd.RunUnlink(ctx, r)
	case flagparse.Push:
		return cmd.RunPush(ctx, r)
	case flagparse.Pull:
		return cmd.RunPull(ctx, r)
	case flagparse.Merge:
		return cmd.RunMerge(ctx, r)
	case flagparse.Watch:
		return cmd.RunWatch(ctx, r)
	case flagparse.Diff:
		return cmd.RunDiff(ctx, r)
	case flagparse.Prune:
		return cmd.RunPrune(ctx, r)
	default:
		return fmt.Errorf("internal error: unknown command %q", r.Command)
	}
}

func main() {
	// Set up a context that is canceled when an interrupt signal is received.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Listen for interrupt signals (like Ctrl+C) in a separate goroutine.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := run(ctx); err != nil {
		plog.Error(buildinfo.Name+" exited with error", "error", err)
		os.Exit(1)
	}
}
