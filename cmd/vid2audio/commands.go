package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/backmassage/vid2audio/internal/check"
	"github.com/backmassage/vid2audio/internal/config"
	"github.com/backmassage/vid2audio/internal/display"
	"github.com/backmassage/vid2audio/internal/hashcache"
	"github.com/backmassage/vid2audio/internal/logging"
	"github.com/backmassage/vid2audio/internal/pipeline"
)

// commandEnv is the configuration one command resolves from its flags.
type commandEnv struct {
	cfg   config.Config
	flags *config.Flags
}

func newCommandEnv() *commandEnv {
	e := &commandEnv{cfg: config.DefaultConfig()}
	e.flags = config.NewFlags(&e.cfg)
	return e
}

// setup resolves flags, the config file and positional args, then opens the
// logger and prints the banner. Errors returned here happen before a logger
// exists.
func (e *commandEnv) setup(cmd *cobra.Command, args []string, needInput bool) (*logging.Logger, error) {
	if err := e.flags.Resolve(cmd.Flags(), args); err != nil {
		return nil, err
	}
	if needInput {
		if err := e.cfg.RequireInput(); err != nil {
			return nil, err
		}
	}
	log, err := logging.NewLogger(&e.cfg)
	if err != nil {
		return nil, err
	}
	display.PrintBanner(os.Stdout)
	return log, nil
}

// indexOptions opens the fingerprint cache when one is configured. The
// returned func closes it.
func (e *commandEnv) indexOptions(log *logging.Logger) ([]pipeline.Option, func(), error) {
	if e.cfg.HashCache == "" {
		return nil, func() {}, nil
	}
	store, err := hashcache.Open(e.cfg.HashCache)
	if err != nil {
		return nil, nil, err
	}
	log.Debug(e.cfg.Verbose, "Fingerprint cache: %s", store.Path())
	closer := func() {
		if err := store.Close(); err != nil {
			log.Warn("Close fingerprint cache: %v", err)
		}
	}
	return []pipeline.Option{pipeline.WithIndex(pipeline.NewIndex(&e.cfg, store))}, closer, nil
}

// interruptContext cancels on SIGINT or SIGTERM so running engines are
// stopped and queued files are dropped without leaving partial output.
func interruptContext(parent context.Context, log *logging.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			log.Warn("Received interrupt, stopping conversions...")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func (e *commandEnv) convert(cmd *cobra.Command, args []string) error {
	log, err := e.setup(cmd, args, true)
	if err != nil {
		return err
	}
	defer log.Close()

	log.Info("=== vid2audio v%s (%s) ===", version, commit)

	opts, closeIndex, err := e.indexOptions(log)
	if err != nil {
		log.Error("Open fingerprint cache: %v", err)
		return exitCode(pipeline.ExitSetupError)
	}
	defer closeIndex()

	ctx, cancel := interruptContext(cmd.Context(), log)
	defer cancel()

	reporter := newReporter(os.Stderr, log)
	res, err := pipeline.Run(ctx, &e.cfg, log, reporter, opts...)
	if err != nil {
		log.Error("%v", err)
		if errors.Is(err, context.Canceled) {
			return exitCode(pipeline.ExitInterrupted)
		}
		return exitCode(pipeline.ExitSetupError)
	}

	fmt.Println(display.RenderSummary(res))
	if failures := display.RenderFailures(res); failures != "" {
		fmt.Println(failures)
	}
	if path := log.FilePath(); path != "" {
		log.Info("Log: %s", path)
	}
	return exitCode(res.ExitCode())
}

func newPlanCommand() *cobra.Command {
	env := newCommandEnv()
	cmd := &cobra.Command{
		Use:   "plan [flags] <input> [output_dir]",
		Short: "Show what a conversion would do without running the engine",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := env.setup(cmd, args, true)
			if err != nil {
				return err
			}
			defer log.Close()

			opts, closeIndex, err := env.indexOptions(log)
			if err != nil {
				log.Error("Open fingerprint cache: %v", err)
				return exitCode(pipeline.ExitSetupError)
			}
			defer closeIndex()

			ctx, cancel := interruptContext(cmd.Context(), log)
			defer cancel()

			conv := pipeline.NewConverter(&env.cfg, log, opts...)
			plan, err := conv.Plan(ctx, env.cfg.InputPath)
			if err != nil {
				log.Error("%v", err)
				return exitCode(pipeline.ExitSetupError)
			}
			if plan.Scanned == 0 {
				log.Warn("No video files found in %s", env.cfg.InputPath)
				return exitCode(pipeline.ExitSetupError)
			}
			infos, err := conv.Inspect(ctx, plan)
			if err != nil {
				log.Error("%v", err)
				return exitCode(pipeline.ExitInterrupted)
			}
			fmt.Println(display.RenderPlan(infos, plan.Duplicates))
			return nil
		},
	}
	env.flags.Register(cmd.Flags())
	return cmd
}

func newCheckCommand() *cobra.Command {
	env := newCommandEnv()
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report engine, prober and encoder availability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := env.setup(cmd, nil, false)
			if err != nil {
				return err
			}
			defer log.Close()

			if !check.RunCheck(cmd.Context(), &env.cfg, log) {
				return exitCode(pipeline.ExitSetupError)
			}
			return nil
		},
	}
	env.flags.Register(cmd.Flags())
	return cmd
}

func newPruneCommand() *cobra.Command {
	env := newCommandEnv()
	cmd := &cobra.Command{
		Use:   "prune-cache",
		Short: "Drop cached fingerprints of files that no longer exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := env.setup(cmd, nil, false)
			if err != nil {
				return err
			}
			defer log.Close()

			if env.cfg.HashCache == "" {
				log.Error("No fingerprint cache configured (use --hash-cache or 'hash_cache' in the config file)")
				return exitCode(pipeline.ExitSetupError)
			}
			store, err := hashcache.Open(env.cfg.HashCache)
			if err != nil {
				log.Error("Open fingerprint cache: %v", err)
				return exitCode(pipeline.ExitSetupError)
			}
			defer store.Close()

			n, err := store.Prune(cmd.Context())
			if err != nil {
				log.Error("Prune %s: %v", store.Path(), err)
				return exitCode(pipeline.ExitSetupError)
			}
			log.Success("Removed %d stale fingerprint(s) from %s", n, store.Path())
			return nil
		},
	}
	env.flags.Register(cmd.Flags())
	return cmd
}
