package notifier

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	kit "transferbot/internal/transport"
	"transferbot/pkg/logx"
)

var (
	ErrNoAdapter = errors.New("notifier: no transport adapter")
	ErrEmpty     = errors.New("notifier: empty notification")
)

// Service is safe for concurrent use.
type Service struct {
	mu      sync.Mutex
	log     logx.Logger
	adapter kit.Adapter
	cfg     Config
	limiter *rate.Limiter

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, adapter kit.Adapter, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{adapter: adapter, log: log}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	s.cfg = cfg
	// Token bucket: burst = rate per sec, so short spikes don't block too hard.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Send delivers n once. A Card takes precedence over Text.
func (s *Service) Send(ctx context.Context, n kit.Notification) (kit.MessageRef, error) {
	s.mu.Lock()
	ad := s.adapter
	lim := s.limiter
	timeout := s.cfg.SendTimeout
	s.mu.Unlock()

	if ad == nil {
		return kit.MessageRef{}, ErrNoAdapter
	}
	kind, summary := describe(n)
	if kind == "" {
		return kit.MessageRef{}, ErrEmpty
	}

	if err := lim.Wait(ctx); err != nil {
		return kit.MessageRef{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		ref kit.MessageRef
		err error
	)
	if n.Card != nil {
		ref, err = ad.SendCard(callCtx, n.Target, *n.Card)
	} else {
		ref, err = ad.SendText(callCtx, n.Target, n.Text, n.Options)
	}

	item := HistoryItem{At: time.Now(), Kind: kind, Summary: summary, MessageID: ref.MessageID}
	if err != nil {
		item.Error = err.Error()
		s.log.Debug("notify send failed", logx.String("kind", kind), logx.Err(err))
	}
	s.appendHistory(item)
	return ref, err
}

func describe(n kit.Notification) (kind, summary string) {
	switch {
	case n.Card != nil:
		return "card", n.Card.Title
	case strings.TrimSpace(n.Text) != "":
		return "text", n.Text
	default:
		return "", ""
	}
}

func (s *Service) Snapshot() []HistoryItem {
	s.hmu.Lock()
	out := append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	return out
}

func (s *Service) appendHistory(item HistoryItem) {
	s.mu.Lock()
	limit := s.cfg.HistorySize
	s.mu.Unlock()

	s.hmu.Lock()
	s.history = append(s.history, item)
	if len(s.history) > limit {
		s.history = s.history[len(s.history)-limit:]
	}
	s.hmu.Unlock()
}
