package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/suykerbuyk/verve/internal/bank"
	"github.com/suykerbuyk/verve/internal/content"
	"github.com/suykerbuyk/verve/internal/forge"
	"github.com/suykerbuyk/verve/internal/journal"
	"github.com/suykerbuyk/verve/internal/mode"
	"github.com/suykerbuyk/verve/internal/profile"
	"github.com/suykerbuyk/verve/internal/tutor"
)

// runtimeOptions select which collaborators a command wires up.
type runtimeOptions struct {
	// persist attaches the profile store and journal to the session.
	persist bool
	// hydrate loads learner state from the profile when it exists, without
	// writing to it.
	hydrate bool
	// offline skips the forge generator.
	offline bool
	// replay drives time from the trace instead of the wall clock.
	replay bool
	clock  func() time.Time
	// mode overrides the starting mode.
	mode mode.Mode
}

// runtime is a session and the collaborators feeding and recording it.
type runtime struct {
	sess    *tutor.Session
	bank    *bank.Bank
	store   *profile.Store
	journal *journal.Writer
	watcher *bank.Watcher

	cleanup []func()
}

func newRuntime(ctx context.Context, opts runtimeOptions) (*runtime, error) {
	rt := &runtime{}
	ok := false
	defer func() {
		if !ok {
			rt.Close()
		}
	}()

	rt.bank = bank.New(bank.WithLogger(logger.Named("bank")))
	if err := rt.bank.LoadDir(cfg.Bank.Dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("no problem bank", zap.String("dir", cfg.Bank.Dir))
		} else {
			logger.Warn("problem bank", zap.Error(err))
		}
	}

	start, err := startingState()
	if err != nil {
		return nil, err
	}
	if opts.persist || opts.hydrate {
		if err := rt.openProfile(ctx, opts.persist, &start); err != nil {
			return nil, err
		}
	}
	if opts.mode != "" {
		start.Mode = opts.mode
	}

	sessCfg := tutor.Config{
		Thresholds:    cfg.Stress.Thresholds(),
		MasteryStreak: cfg.Controller.MasteryStreak,
		Static:        rt.bank,
		DefaultZone:   cfg.Content.DefaultZone,
		Logger:        logger,
		Clock:         opts.clock,
		NoWatchdog:    opts.replay,
	}
	if !opts.offline {
		sessCfg.Content = forgeOptions(ctx)
	}

	rt.sess, err = tutor.New(start, sessCfg)
	if err != nil {
		return nil, err
	}
	rt.cleanup = append(rt.cleanup, rt.sess.Close)

	if opts.persist {
		if rt.store != nil {
			rt.cleanup = append(rt.cleanup, rt.store.Attach(rt.sess, learner, logger.Named("profile")))
		}
		if err := rt.openJournal(); err != nil {
			return nil, err
		}
		if cfg.Bank.Watch {
			rt.watch(ctx)
		}
	}

	ok = true
	return rt, nil
}

// startingState reads the configured initial mode and level.
func startingState() (tutor.Initial, error) {
	m, err := mode.ParseMode(cfg.Controller.InitialMode)
	if err != nil {
		return tutor.Initial{}, fmt.Errorf("controller.initial_mode: %w", err)
	}
	return tutor.Initial{Mode: m, Level: mode.ClampLevel(cfg.Controller.InitialLevel)}, nil
}

// openProfile hydrates start and the bank's seen history from the learner
// profile. A read-only caller skips a profile that does not exist yet.
func (rt *runtime) openProfile(ctx context.Context, create bool, start *tutor.Initial) error {
	if !create {
		if _, err := os.Stat(cfg.Profile.Path); err != nil {
			return nil
		}
	}
	store, err := profile.Open(cfg.Profile.Path)
	if err != nil {
		return err
	}
	rt.store = store

	saved, err := store.Load(ctx, learner)
	if err != nil {
		return err
	}
	if saved.Mode != "" {
		*start = saved
	}

	seen, err := store.SeenStatic(ctx, learner)
	if err != nil {
		return err
	}
	for node, ids := range seen {
		rt.bank.MarkSeen(node, ids...)
	}
	logger.Debug("profile loaded",
		zap.String("learner", learner),
		zap.String("mode", string(start.Mode)),
		zap.Int("level", int(start.Level)))
	return nil
}

func (rt *runtime) openJournal() error {
	if !cfg.Journal.Enabled {
		return nil
	}
	w, err := journal.Create(cfg.Journal.Dir, rt.sess.ID())
	if err != nil {
		return err
	}
	rt.journal = w
	detach := journal.Attach(rt.sess, w)
	rt.cleanup = append(rt.cleanup, detach)
	return nil
}

func (rt *runtime) watch(ctx context.Context) {
	w, err := bank.NewWatcher(rt.bank, cfg.Bank.Dir, logger.Named("bank"))
	if err != nil {
		logger.Warn("bank watcher", zap.Error(err))
		return
	}
	if err := w.Start(ctx); err != nil {
		logger.Warn("bank watcher", zap.Error(err))
		w.Stop()
		return
	}
	rt.watcher = w
}

// forgeOptions wires the configured generator, if any, into the provider.
func forgeOptions(ctx context.Context) []content.Option {
	gen, err := forge.New(ctx, cfg.Forge)
	switch {
	case errors.Is(err, forge.ErrDisabled):
		logger.Debug("forge unavailable", zap.Error(err))
		return nil
	case err != nil:
		logger.Warn("forge", zap.Error(err))
		return nil
	}

	limit := rate.Inf
	if cfg.Forge.RatePerSecond > 0 {
		limit = rate.Limit(cfg.Forge.RatePerSecond)
	}
	burst := cfg.Forge.Burst
	if burst < 1 {
		burst = 1
	}
	logger.Debug("forge enabled", zap.String("generator", gen.Name()))
	return []content.Option{
		content.WithGenerator(gen),
		content.WithLimiter(rate.NewLimiter(limit, burst)),
		content.WithTimeout(cfg.Forge.Timeout()),
	}
}

// Close releases everything in reverse order of acquisition.
func (rt *runtime) Close() {
	if rt.watcher != nil {
		rt.watcher.Stop()
	}
	for i := len(rt.cleanup) - 1; i >= 0; i-- {
		rt.cleanup[i]()
	}
	if rt.journal != nil {
		if err := rt.journal.Close(); err != nil {
			logger.Warn("close journal", zap.Error(err))
		} else {
			logger.Debug("journal written",
				zap.String("path", rt.journal.Path()),
				zap.Int("entries", rt.journal.Count()))
		}
	}
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			logger.Warn("close profile", zap.Error(err))
		}
	}
}
