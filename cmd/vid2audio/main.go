// Command vid2audio converts a video file or a directory of videos into
// audio files, skipping byte-identical duplicates.
//
// It parses flags and an optional config file, then either converts, shows
// what a run would do (plan), checks the installed tools (check) or prunes
// the fingerprint cache (prune-cache).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "1.0.0"
	commit  = "unknown"
)

// exitCodeError carries a process exit code out of a command without
// printing anything further.
type exitCodeError struct{ code int }

func (e *exitCodeError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func exitCode(code int) error {
	if code == 0 {
		return nil
	}
	return &exitCodeError{code: code}
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:]))
}

func run(ctx context.Context, args []string) int {
	root := newRootCommand()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ec *exitCodeError
	if errors.As(err, &ec) {
		return ec.code
	}
	// Bootstrap errors: the logger may not exist yet.
	fmt.Fprintf(os.Stderr, "vid2audio: %v\n", err)
	return 1
}

func newRootCommand() *cobra.Command {
	env := newCommandEnv()

	rootCmd := &cobra.Command{
		Use:           "vid2audio [flags] <input> [output_dir]",
		Short:         "Batch-convert videos to audio files",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.convert(cmd, args)
		},
	}
	env.flags.Register(rootCmd.Flags())

	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newCheckCommand())
	rootCmd.AddCommand(newPruneCommand())
	return rootCmd
}
