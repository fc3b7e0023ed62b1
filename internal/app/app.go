// Package app builds the services from configuration. The server and the
// operator CLI share it so both see the same wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/audit"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/config"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/db"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/notify"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/override"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/resolve"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/rotation"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/schedule"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/snapshot"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/storage"
)

type App struct {
	Config    *config.Config
	Store     db.Store
	Audit     *audit.Log
	Snapshot  *snapshot.Writer
	Cache     storage.Storage
	Engine    *resolve.Engine
	Schedule  *schedule.Service
	Overrides *override.Manager
	Rotation  *rotation.Scheduler
	Notifier  notify.Notifier
	Hub       *notify.Hub
	Now       func() time.Time

	closers []func() error
}

// Deps are the externally owned pieces Build assembles services around.
type Deps struct {
	Store    db.Store
	Cache    storage.Storage
	Notifier notify.Notifier
	Now      func() time.Time
}

// New opens the database, static cache and notifier named by cfg.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	conn, err := db.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	store := db.NewStore(conn)

	cache, closeCache, err := NewStorage(ctx, cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	var notifier notify.Notifier
	var closeNotifier func() error
	if cfg.MQTTBrokerURL != "" {
		n, err := notify.NewMQTTNotifier(cfg.MQTTBrokerURL, cfg.MQTTClientID)
		if err != nil {
			log.Warn().Err(err).Msg("MQTT notifications disabled")
		} else {
			notifier = n
			closeNotifier = func() error { n.Close(); return nil }
		}
	}

	a := Build(cfg, Deps{Store: store, Cache: cache, Notifier: notifier})
	a.closers = append(a.closers, store.Close)
	if closeCache != nil {
		a.closers = append(a.closers, closeCache)
	}
	if closeNotifier != nil {
		a.closers = append(a.closers, closeNotifier)
	}
	log.Info().
		Str("database", cfg.DatabaseDriver).
		Str("static_cache", cache.Name()).
		Str("timezone", cfg.Location().String()).
		Msg("application wired")
	return a, nil
}

// Build wires the services over already-open dependencies.
func Build(cfg *config.Config, deps Deps) *App {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	hub := notify.NewHub()
	var notifier notify.Notifier = hub
	if deps.Notifier != nil {
		notifier = notify.Multi{hub, deps.Notifier}
	}
	loc := cfg.Location()
	catalog := cfg.Catalog()

	a := &App{Config: cfg, Store: deps.Store, Cache: deps.Cache, Notifier: notifier, Hub: hub, Now: now}
	a.closers = append(a.closers, func() error { hub.Close(); return nil })
	a.Audit = audit.New(deps.Store, now)
	a.Snapshot = snapshot.NewWriter(deps.Store, a.Audit, cfg.SnapshotPath, loc, now)
	a.Engine = resolve.New(resolve.Options{
		Store:        deps.Store,
		SnapshotPath: cfg.SnapshotPath,
		Cache:        deps.Cache,
		Location:     loc,
		LayerTimeout: cfg.LayerTimeout.Duration,
		Now:          now,
	})
	a.Schedule = schedule.NewService(schedule.Options{
		Store:    deps.Store,
		Audit:    a.Audit,
		Catalog:  catalog,
		Location: loc,
		Now:      now,
		Snapshot: a.Snapshot,
		Notifier: notifier,
	})
	a.Overrides = override.NewManager(override.Options{
		Store:    deps.Store,
		Audit:    a.Audit,
		Catalog:  catalog,
		Now:      now,
		Snapshot: a.Snapshot,
		Notifier: notifier,
	})
	a.Rotation = rotation.New(rotation.Options{
		Store:         deps.Store,
		Audit:         a.Audit,
		Engine:        a.Engine,
		Overrides:     a.Overrides,
		Snapshot:      a.Snapshot,
		Notifier:      notifier,
		Catalog:       catalog,
		Location:      loc,
		Hour:          cfg.RotationHour,
		Minute:        cfg.RotationMinute,
		CheckInterval: cfg.RotationCheckInterval.Duration,
		LockPath:      cfg.RotationLockPath,
		Now:           now,
	})
	return a
}

// Close releases everything New opened, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
