package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/coco/internal/build"
	"github.com/conneroisu/coco/internal/config"
	"github.com/conneroisu/coco/internal/logging"
	"github.com/conneroisu/coco/internal/watcher"
)

// runWatch compiles every matching file below root, then keeps recompiling on
// change until interrupted. Faults are reported and never end the watch.
func runWatch(cmd *cobra.Command, cfg *config.Config, logger logging.Logger, root string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return watchTree(ctx, cmd, cfg, logger, root, nil)
}

// watchTree runs the watcher and the scheduler until ctx is done. ready, when
// not nil, is closed once the initial scan has been queued.
func watchTree(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger logging.Logger, root string, ready chan<- struct{}) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}

	fileWatcher, err := watcher.NewFileWatcher(root, logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	fileWatcher.AddFilter(watcher.ExtensionFilter(cfg.Build.SourceExt))
	fileWatcher.AddFilter(watcher.GlobFilter(fileWatcher.Root(), cfg.Watch.Pattern))
	if err := fileWatcher.Ignore(cfg.Watch.Ignore...); err != nil {
		_ = fileWatcher.Stop()
		return err
	}

	pipeline := newPipeline(cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr(), wd)
	scheduler := build.NewScheduler(pipeline, logger)

	fileWatcher.AddHandler(func(event watcher.ChangeEvent) error {
		return scheduler.Enqueue(event.Path, event.Type == watcher.EventUnlink)
	})

	fmt.Fprintf(cmd.OutOrStdout(), "watcher starts looking out for %q, but not %q\n",
		path.Join(filepath.ToSlash(fileWatcher.Root()), cfg.Watch.Pattern),
		strings.Join(cfg.Watch.Ignore, ", "))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	g.Go(func() error {
		if err := fileWatcher.Start(gctx); err != nil {
			_ = fileWatcher.Stop()
			return fmt.Errorf("failed to start file watcher: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "coco ready")
		if ready != nil {
			close(ready)
		}

		<-gctx.Done()
		scheduler.Close()
		return fileWatcher.Stop()
	})

	err = g.Wait()

	m := scheduler.Metrics()
	logger.Info(ctx, "watch stopped",
		"jobs", m.TotalBuilds,
		"failed", m.FailedBuilds,
		"superseded", m.Superseded,
		"success_rate", fmt.Sprintf("%.1f%%", m.GetSuccessRate()),
		"average", m.AverageDuration.String(),
	)

	return err
}
