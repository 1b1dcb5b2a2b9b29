package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"transferbot/internal/config"
	"transferbot/internal/cursor"
	"transferbot/internal/feed"
	"transferbot/internal/imagery"
	"transferbot/internal/monitor"
	"transferbot/internal/notifier"
	"transferbot/internal/observability/metrics"
	"transferbot/internal/runtime/supervisor"
	"transferbot/internal/storage"
	"transferbot/internal/task/scheduler"
	"transferbot/internal/transfer"
	telegram "transferbot/internal/transport/telegram/adapter"
	logx "transferbot/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	adapter *telegram.Adapter
	cursors *cursor.Store
	notif   *notifier.Service
	mon     *monitor.Monitor
	sched   *scheduler.Service
	metrics *metrics.Service
}

// New loads and validates the config and wires every component. Nothing
// runs until Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
	tgTimeout, err := config.ParseDurationOrDefault("telegram.timeout", cfg.Telegram.Timeout, 15*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token, Timeout: tgTimeout}, bootLog)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}

	logSvc, root := logx.New(mapLoggingConfig(cfg), ad)
	log := root.With(logx.String("comp", "app"))

	sc, err := StorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	backend, err := storage.Open(sc, root.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	cursors := cursor.New(backend, root.With(logx.String("comp", "cursor")))
	log.Info("state store opened", logx.String("driver", sc.Driver))

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	notif := notifier.New(ncfg, ad, root.With(logx.String("comp", "notifier")))

	// Upstream calls carry their own per-request timeouts.
	client := &http.Client{}

	icfg, err := mapImagesConfig(cfg)
	if err != nil {
		return nil, err
	}
	images, err := imagery.New(icfg, client, root.With(logx.String("comp", "imagery")))
	if err != nil {
		return nil, err
	}
	builder := transfer.NewBuilder(images, transfer.LoadLocation(cfg.Monitor.Timezone))

	feedTimeout, err := config.ParseDurationOrDefault("http.feed_timeout", cfg.HTTP.FeedTimeout, 12*time.Second)
	if err != nil {
		return nil, err
	}
	poller := feed.NewPoller(client, feedTimeout, cfg.HTTP.UserAgent, root.With(logx.String("comp", "feed")))

	feeds, err := FeedDescriptors(cfg)
	if err != nil {
		return nil, err
	}
	mon := monitor.New(monitor.Deps{
		Poller:   poller,
		Renderer: builder,
		Sender:   notif,
		Cursors:  cursors,
	}, feeds, channelTarget(cfg), root.With(logx.String("comp", "monitor")))

	sched := scheduler.New(scheduler.Config{Timezone: cfg.Monitor.Timezone}, root.With(logx.String("comp", "scheduler")))

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		adapter: ad,
		cursors: cursors,
		notif:   notif,
		mon:     mon,
		sched:   sched,
	}
	a.metrics = metrics.New(mapMetricsConfig(cfg), metrics.Probes{
		Health: a.health,
		State:  func() any { return a.State() },
	}, root.With(logx.String("comp", "metrics")))
	return a, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.NewSupervisor(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return config.Validate(cfg)
	})

	if err := a.adapter.Start(a.sup.Context()); err != nil {
		return err
	}

	cfg := a.cfgm.Get()
	if _, err := a.sched.AddSchedule(cycleTask, cfg.Monitor.Interval, 0, a.cycle); err != nil {
		return fmt.Errorf("monitor.interval: %w", err)
	}
	a.sched.Start(a.sup.Context())

	a.metrics.Reconfigure(a.sup.Context(), mapMetricsConfig(cfg))

	announce := config.BoolOr(cfg.Monitor.Announce, true)
	runOnStart := config.BoolOr(cfg.Monitor.RunOnStart, true)
	a.sup.Go0("monitor.startup", func(c context.Context) {
		if announce {
			_ = a.mon.Announce(c)
		}
		if runOnStart {
			if err := a.sched.RunNow(cycleTask); err != nil {
				a.log.Warn("initial cycle not started", logx.Err(err))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		prev := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(c, prev, next)
				prev = next
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.sup.Go0("systemd.watchdog", func(c context.Context) { watchdog(c, a.log) })
	sdNotify(a.log, daemon.SdNotifyReady)

	a.log.Info("app started",
		logx.Int("feeds", len(a.mon.Feeds())),
		logx.String("interval", cfg.Monitor.Interval),
		logx.Int64("channel", cfg.Telegram.ChannelID),
	)
	return nil
}

// cycle is the scheduled job. Feed failures are reported by the monitor and
// never fail the task.
func (a *App) cycle(ctx context.Context) error {
	a.mon.RunCycle(ctx)
	return nil
}

// applyConfig hot-applies the parts of cfg that can change at runtime.
func (a *App) applyConfig(c context.Context, prev, next *config.Config) {
	a.logs.Apply(mapLoggingConfig(next))

	if feeds, err := FeedDescriptors(next); err != nil {
		a.log.Warn("invalid feeds config; keeping previous", logx.Err(err))
	} else {
		a.mon.SetFeeds(feeds)
	}
	a.mon.SetTarget(channelTarget(next))

	if ncfg, err := mapNotifierConfig(next); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		a.notif.Apply(ncfg)
	}

	a.sched.Apply(scheduler.Config{Timezone: next.Monitor.Timezone})
	if prev == nil || prev.Monitor.Interval != next.Monitor.Interval {
		if _, err := a.sched.AddSchedule(cycleTask, next.Monitor.Interval, 0, a.cycle); err != nil {
			a.log.Warn("invalid monitor.interval; keeping previous", logx.Err(err))
		}
	}

	a.metrics.Reconfigure(c, mapMetricsConfig(next))

	if prev != nil {
		if prev.State != next.State {
			a.log.Warn("state config changed; restart required for changes to take effect")
		}
		if prev.Telegram.Token != next.Telegram.Token || prev.Telegram.Timeout != next.Telegram.Timeout {
			a.log.Warn("telegram credentials changed; restart required for changes to take effect")
		}
		if prev.Images != next.Images || prev.HTTP != next.HTTP || prev.Monitor.Timezone != next.Monitor.Timezone {
			a.log.Warn("http, image or timezone config changed; restart required for changes to take effect")
		}
	}
	a.log.Info("config reloaded", logx.Int("feeds", len(next.Feeds)), logx.String("interval", next.Monitor.Interval))
}

// health fails when the most recent cycle could not fetch a feed.
func (a *App) health() error {
	if !a.sched.Snapshot().Running {
		return errors.New("scheduler not running")
	}
	rep, ok := a.mon.LastReport()
	if !ok || rep.Healthy() {
		return nil
	}
	return errors.New("last cycle had feed errors")
}

// StateView is served on /state.
type StateView struct {
	LastCycle     *monitor.CycleReport   `json:"last_cycle,omitempty"`
	Scheduler     scheduler.Snapshot     `json:"scheduler"`
	Notifications []notifier.HistoryItem `json:"notifications"`
}

func (a *App) State() StateView {
	v := StateView{
		Scheduler:     a.sched.Snapshot(),
		Notifications: a.notif.Snapshot(),
	}
	if rep, ok := a.mon.LastReport(); ok {
		v.LastCycle = &rep
	}
	return v
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	sdNotify(a.log, daemon.SdNotifyStopping)

	// First, cancel the app run context so background loops start unwinding immediately.
	a.sup.Cancel()

	a.step(ctx, "scheduler", 5*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	a.step(ctx, "metrics", time.Second, func(c context.Context) error { a.metrics.Stop(c); return nil })
	a.step(ctx, "adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	a.step(ctx, "storage", time.Second, func(c context.Context) error { return a.cursors.Close() })

	// Finally, wait for supervised goroutines (config watch/reload, startup, watchdog).
	a.step(ctx, "supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// step runs a shutdown step with an upper bound so one component can't stall the whole stop.
func (a *App) step(ctx context.Context, name string, limit time.Duration, fn func(context.Context) error) {
	start := time.Now()
	a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", limit))

	// respect the caller's deadline; never extend it
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem < limit {
			limit = rem
		}
	}
	if limit <= 0 {
		a.log.Warn("stop step skipped: deadline exhausted", logx.String("name", name))
		return
	}
	stepCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		// Contract: fn MUST honor stepCtx and return promptly. If it doesn't, log a leak signal.
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Err(stepCtx.Err()),
			logx.Duration("elapsed", time.Since(start)),
		)
	}
}
