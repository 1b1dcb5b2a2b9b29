// Package monitor runs the polling cycle: load cursors, poll every feed in
// order, announce new transfers and persist the advanced cursors.
package monitor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"transferbot/internal/feed"
	"transferbot/internal/storage"
	"transferbot/internal/transfer"
	kit "transferbot/internal/transport"
	"transferbot/pkg/logx"
)

const saveTimeout = 5 * time.Second

// Poller fetches one feed and selects records above the cursor.
type Poller interface {
	Poll(ctx context.Context, desc feed.Descriptor, cursor int64) feed.Result
}

// Renderer turns a record into a card.
type Renderer interface {
	Build(ctx context.Context, rec *feed.Record, desc feed.Descriptor) (kit.Card, error)
	Location() *time.Location
}

type Sender interface {
	Send(ctx context.Context, n kit.Notification) (kit.MessageRef, error)
}

// Cursors is the cursor store. Load never fails and Save swallows errors.
type Cursors interface {
	Load(ctx context.Context, keys []string) storage.CursorState
	Save(ctx context.Context, st storage.CursorState)
}

type Deps struct {
	Poller   Poller
	Renderer Renderer
	Sender   Sender
	Cursors  Cursors
}

// FeedReport is the outcome of one feed within a cycle.
type FeedReport struct {
	Key       string      `json:"key"`
	Status    feed.Status `json:"status"`
	Error     string      `json:"error,omitempty"`
	New       int         `json:"new"`
	Cards     int         `json:"cards"`
	Fallbacks int         `json:"fallbacks"`
	Failed    int         `json:"failed"`
	Cursor    int64       `json:"cursor"`
}

type CycleReport struct {
	ID       string           `json:"id"`
	Started  time.Time        `json:"started"`
	Duration time.Duration    `json:"duration"`
	Skipped  string           `json:"skipped,omitempty"`
	Feeds    []FeedReport     `json:"feeds"`
	Cursors  map[string]int64 `json:"cursors,omitempty"`
}

// Healthy reports whether every feed was fetched.
func (r CycleReport) Healthy() bool {
	for _, f := range r.Feeds {
		if f.Status == feed.StatusError {
			return false
		}
	}
	return true
}

type Monitor struct {
	deps Deps
	log  logx.Logger

	mu     sync.Mutex
	feeds  []feed.Descriptor
	target kit.ChatTarget

	// run serializes cycles.
	run sync.Mutex

	rmu  sync.RWMutex
	last *CycleReport
}

func New(deps Deps, feeds []feed.Descriptor, target kit.ChatTarget, log logx.Logger) *Monitor {
	if log.IsZero() {
		log = logx.Nop()
	}
	m := &Monitor{deps: deps, log: log}
	m.SetFeeds(feeds)
	m.SetTarget(target)
	return m
}

// SetFeeds replaces the feed list. It takes effect on the next cycle.
func (m *Monitor) SetFeeds(feeds []feed.Descriptor) {
	m.mu.Lock()
	m.feeds = append([]feed.Descriptor(nil), feeds...)
	m.mu.Unlock()
}

func (m *Monitor) SetTarget(t kit.ChatTarget) {
	m.mu.Lock()
	m.target = t
	m.mu.Unlock()
}

func (m *Monitor) Feeds() []feed.Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]feed.Descriptor(nil), m.feeds...)
}

func (m *Monitor) LastReport() (CycleReport, bool) {
	m.rmu.RLock()
	defer m.rmu.RUnlock()
	if m.last == nil {
		return CycleReport{}, false
	}
	return *m.last, true
}

// Announce sends the "online" card listing the monitored feeds.
func (m *Monitor) Announce(ctx context.Context) error {
	m.mu.Lock()
	feeds := append([]feed.Descriptor(nil), m.feeds...)
	target := m.target
	m.mu.Unlock()
	if target.ChatID == 0 {
		return nil
	}
	card := transfer.OnlineCard(feeds)
	_, err := m.deps.Sender.Send(ctx, kit.Notification{Target: target, Card: &card})
	if err != nil {
		m.log.Warn("online announcement failed", logx.Err(err))
	}
	return err
}

// RunCycle performs one full pass over the feeds. Cursors are persisted at
// the end even when the cycle panics or ctx is cancelled.
func (m *Monitor) RunCycle(ctx context.Context) (rep CycleReport) {
	m.run.Lock()
	defer m.run.Unlock()

	m.mu.Lock()
	feeds := append([]feed.Descriptor(nil), m.feeds...)
	target := m.target
	m.mu.Unlock()

	rep = CycleReport{ID: uuid.NewString(), Started: time.Now()}
	log := m.log.With(logx.String("cycle", rep.ID))

	defer func() {
		rep.Duration = time.Since(rep.Started)
		cycleDuration.Observe(rep.Duration.Seconds())
		m.rmu.Lock()
		last := rep
		m.last = &last
		m.rmu.Unlock()
	}()

	if target.ChatID == 0 {
		rep.Skipped = "channel not configured"
		log.Warn("cycle skipped: channel not configured")
		return rep
	}

	keys := make([]string, 0, len(feeds))
	for _, d := range feeds {
		keys = append(keys, d.Key)
	}
	state := m.deps.Cursors.Load(ctx, keys)

	defer func() {
		if r := recover(); r != nil {
			log.Error("cycle panic", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
		m.deps.Cursors.Save(sctx, state)
		cancel()
		rep.Cursors = state.Clone().LastIDs
	}()

	for _, d := range feeds {
		fr := m.runFeed(ctx, log, d, target, state.Get(d.Key))
		state.Set(d.Key, fr.Cursor)
		cursorGauge.WithLabelValues(d.Key).Set(float64(fr.Cursor))
		rep.Feeds = append(rep.Feeds, fr)
	}

	log.Debug("cycle finished", logx.Int("feeds", len(feeds)))
	return rep
}

// runFeed never panics: a failure in one feed must not stop the others.
func (m *Monitor) runFeed(ctx context.Context, log logx.Logger, d feed.Descriptor, target kit.ChatTarget, cursor int64) (fr FeedReport) {
	fr = FeedReport{Key: d.Key, Cursor: cursor}
	flog := log.With(logx.String("feed", d.Key))
	defer func() {
		if r := recover(); r != nil {
			fr.Status = feed.StatusError
			fr.Error = fmt.Sprintf("panic: %v", r)
			flog.Error("feed panic", logx.Any("panic", r))
		}
	}()

	res := m.deps.Poller.Poll(ctx, d, cursor)
	fr.Status = res.Status
	pollsTotal.WithLabelValues(d.Key, string(res.Status)).Inc()
	if res.Err != nil {
		fr.Error = res.Err.Error()
		flog.Warn("feed poll failed", logx.Err(res.Err))
		return fr
	}
	fr.New = len(res.Records)

	for i := range res.Records {
		rec := &res.Records[i]
		switch m.deliver(ctx, flog, rec, d, target) {
		case "card":
			fr.Cards++
		case "fallback":
			fr.Fallbacks++
		default:
			fr.Failed++
		}
		// Advance even when delivery failed: a broken record must not block the feed.
		if rec.ID > fr.Cursor {
			fr.Cursor = rec.ID
		}
	}
	if fr.New > 0 {
		flog.Info("transfers announced", logx.Int("new", fr.New), logx.Int("fallbacks", fr.Fallbacks), logx.Int("failed", fr.Failed), logx.Int64("cursor", fr.Cursor))
	}
	return fr
}

// deliver sends the card, falling back to one text line. It returns the kind
// that got through: card, fallback or failed.
func (m *Monitor) deliver(ctx context.Context, log logx.Logger, rec *feed.Record, d feed.Descriptor, target kit.ChatTarget) (kind string) {
	defer func() { notificationsTotal.WithLabelValues(d.Key, kind).Inc() }()

	card, err := m.deps.Renderer.Build(ctx, rec, d)
	if err == nil {
		if _, err = m.deps.Sender.Send(ctx, kit.Notification{Target: target, Card: &card}); err == nil {
			return "card"
		}
		log.Warn("card send failed; sending fallback", logx.Int64("id", rec.ID), logx.Err(err))
	} else {
		log.Warn("card build failed; sending fallback", logx.Int64("id", rec.ID), logx.Err(err))
	}

	text := transfer.FallbackText(rec, d.Label, m.deps.Renderer.Location())
	if _, err := m.deps.Sender.Send(ctx, kit.Notification{Target: target, Text: text}); err != nil {
		log.Error("fallback send failed", logx.Int64("id", rec.ID), logx.Err(err))
		return "failed"
	}
	return "fallback"
}
