package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay collapses the burst of filesystem events an editor emits while
// saving into a single reload.
const settleDelay = 250 * time.Millisecond

// Watcher reloads the config file on change and hands each successfully
// parsed Config to apply. A reload that fails to parse or validate leaves
// the running config untouched.
type Watcher struct {
	path  string
	log   *slog.Logger
	apply func(*Config)
}

func NewWatcher(path string, log *slog.Logger, apply func(*Config)) *Watcher {
	return &Watcher{path: path, log: log, apply: apply}
}

// Run blocks until ctx is cancelled or the filesystem watch cannot be
// established.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(w.path); err != nil {
		return err
	}
	w.log.Info("watching config", "path", w.path)

	var settle *time.Timer
	var settleC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			// Atomic saves replace the inode, showing up as Create rather
			// than Write.
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if settle == nil {
				settle = time.NewTimer(settleDelay)
				settleC = settle.C
			} else {
				settle.Reset(settleDelay)
			}

		case <-settleC:
			settle, settleC = nil, nil
			w.reload()
			// The watched inode may have been replaced by the save.
			_ = fsw.Add(w.path)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("config watch error", "err", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.log.Error("config reload failed, keeping previous", "path", w.path, "err", err)
		return
	}
	w.log.Info("config reloaded", "path", w.path, "chains", len(cfg.Chains))
	w.apply(cfg)
}
