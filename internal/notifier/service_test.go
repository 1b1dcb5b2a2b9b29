package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kit "transferbot/internal/transport"
	"transferbot/pkg/logx"
)

type recordingAdapter struct {
	mu      sync.Mutex
	cards   []kit.Card
	texts   []string
	failAll error
	block   bool
}

func (a *recordingAdapter) Start(context.Context) error { return nil }
func (a *recordingAdapter) Stop(context.Context) error  { return nil }

func (a *recordingAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	if a.block {
		<-ctx.Done()
		return kit.MessageRef{}, ctx.Err()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failAll != nil {
		return kit.MessageRef{}, a.failAll
	}
	a.texts = append(a.texts, text)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(a.texts)}, nil
}

func (a *recordingAdapter) SendCard(ctx context.Context, to kit.ChatTarget, card kit.Card) (kit.MessageRef, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failAll != nil {
		return kit.MessageRef{}, a.failAll
	}
	a.cards = append(a.cards, card)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: 100 + len(a.cards)}, nil
}

func TestSendPrefersCard(t *testing.T) {
	ad := &recordingAdapter{}
	s := New(Config{RatePerSec: 100}, ad, logx.Nop())

	ref, err := s.Send(context.Background(), kit.Notification{
		Target: kit.ChatTarget{ChatID: -100},
		Card:   &kit.Card{Title: "[Holland] Transfer: a"},
		Text:   "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, 101, ref.MessageID)
	assert.Len(t, ad.cards, 1)
	assert.Empty(t, ad.texts)

	_, err = s.Send(context.Background(), kit.Notification{Target: kit.ChatTarget{ChatID: -100}, Text: "plain"})
	require.NoError(t, err)
	assert.Equal(t, []string{"plain"}, ad.texts)

	hist := s.Snapshot()
	require.Len(t, hist, 2)
	assert.Equal(t, "card", hist[0].Kind)
	assert.Equal(t, "[Holland] Transfer: a", hist[0].Summary)
	assert.Equal(t, "text", hist[1].Kind)
}

func TestSendErrors(t *testing.T) {
	_, err := New(Config{}, nil, logx.Nop()).Send(context.Background(), kit.Notification{Text: "x"})
	assert.ErrorIs(t, err, ErrNoAdapter)

	s := New(Config{RatePerSec: 100}, &recordingAdapter{}, logx.Nop())
	_, err = s.Send(context.Background(), kit.Notification{Text: "   "})
	assert.ErrorIs(t, err, ErrEmpty)

	boom := errors.New("telegram down")
	s = New(Config{RatePerSec: 100}, &recordingAdapter{failAll: boom}, logx.Nop())
	_, err = s.Send(context.Background(), kit.Notification{Text: "x"})
	assert.ErrorIs(t, err, boom)
	hist := s.Snapshot()
	require.Len(t, hist, 1)
	assert.Equal(t, "telegram down", hist[0].Error)
}

func TestSendTimeout(t *testing.T) {
	s := New(Config{RatePerSec: 100, SendTimeout: 20 * time.Millisecond}, &recordingAdapter{block: true}, logx.Nop())
	start := time.Now()
	_, err := s.Send(context.Background(), kit.Notification{Text: "x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestHistoryIsBounded(t *testing.T) {
	s := New(Config{RatePerSec: 1000, HistorySize: 3}, &recordingAdapter{}, logx.Nop())
	for i := 0; i < 5; i++ {
		_, err := s.Send(context.Background(), kit.Notification{Text: string(rune('a' + i))})
		require.NoError(t, err)
	}
	hist := s.Snapshot()
	require.Len(t, hist, 3)
	assert.Equal(t, "c", hist[0].Summary)
	assert.Equal(t, "e", hist[2].Summary)
}
