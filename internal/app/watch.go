// # internal/app/watch.go
package app

import (
	"context"

	"rustfuse/internal/core/errors"
	"rustfuse/internal/policy"
	"rustfuse/internal/shared/observability"
	"rustfuse/internal/watcher"
)

// Watch refuses on every batched source change until ctx is cancelled.
// Watch mode is batch-only: a prompt popping up on a background refusion
// would be useless, so open candidates are auto-excluded.
func (p *Pipeline) Watch(ctx context.Context) error {
	if _, isBatch := p.provider.(policy.BatchProvider); !isBatch {
		// keep the configured provider out of background runs
		p.provider = policy.BatchProvider{AutoExclude: true}
	}
	p.Interactive = nil

	if _, err := p.Run(ctx); err != nil && !errors.IsCode(err, errors.CodeNotFound) {
		return err
	}

	w, err := watcher.NewWatcher(p.cfg.Watch.Debounce, p.cfg.Exclude.Dirs, p.cfg.Exclude.Files,
		func(paths []string) {
			observability.WatcherEventsTotal.Add(float64(len(paths)))
			p.log.Info("sources changed, refusing", "files", len(paths))
			if _, err := p.Run(ctx); err != nil {
				p.log.Error("refusion failed", "error", err)
			}
		})
	if err != nil {
		return err
	}
	defer w.Close()

	roots := append([]string{p.cfg.Crates.Binary}, p.cfg.Crates.Libraries...)
	if err := w.Watch(roots); err != nil {
		return err
	}

	p.log.Info("watching for changes", "roots", len(roots))
	<-ctx.Done()
	return nil
}
