package adapter

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	tele "gopkg.in/telebot.v4"

	kit "transferbot/internal/transport"
	logx "transferbot/pkg/logx"
)

// Config configures the Telegram adapter.
type Config struct {
	Token string
	// Timeout bounds each Bot API call.
	Timeout time.Duration
	// Offline skips the getMe call in New (tests, dry runs).
	Offline bool
}

// Adapter sends messages through the Telegram Bot API. It is send-only:
// the bot never polls for updates.
type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot

	runMu   sync.Mutex
	running bool
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Client:  &http.Client{Timeout: timeout},
		Offline: cfg.Offline,
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{cfg: cfg, log: log, bot: b}, nil
}

func (a *Adapter) Start(ctx context.Context) error {
	_ = ctx
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.running {
		return nil
	}
	a.running = true
	if me := a.bot.Me; me != nil && me.Username != "" {
		a.log.Info("telegram ready", logx.String("bot", me.Username))
	} else {
		a.log.Info("telegram ready")
	}
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	_ = ctx
	a.runMu.Lock()
	wasRunning := a.running
	a.running = false
	a.runMu.Unlock()
	if !wasRunning {
		a.log.Debug("telegram stop called but not running")
	}
	return nil
}

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}

	chunks := splitText(text, textLimit, opt.ParseMode)
	if len(chunks) == 0 {
		chunks = []string{""}
	}

	chat := &tele.Chat{ID: to.ChatID}

	var first kit.MessageRef
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return first, err
		}
		msg, err := a.bot.Send(chat, chunk, &tele.SendOptions{
			ParseMode:             opt.ParseMode,
			DisableWebPagePreview: opt.DisablePreview,
			ThreadID:              to.ThreadID,
		})
		if err != nil {
			return first, err
		}
		if i == 0 {
			first = kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}
		}
	}
	return first, nil
}

// SendCard sends card as a photo with an HTML caption when it carries an image
// and the caption fits, otherwise as an HTML text message. A photo the Bot
// API cannot fetch degrades to the text form.
func (a *Adapter) SendCard(ctx context.Context, to kit.ChatTarget, card kit.Card) (kit.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return kit.MessageRef{}, err
	}
	body := renderCard(card)

	if img := cardImage(card); img != "" && utf8.RuneCountInString(body) <= captionLimit {
		photo := &tele.Photo{File: tele.FromURL(img), Caption: body}
		msg, err := a.bot.Send(&tele.Chat{ID: to.ChatID}, photo, &tele.SendOptions{
			ParseMode: tele.ModeHTML,
			ThreadID:  to.ThreadID,
		})
		if err == nil {
			return kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}, nil
		}
		a.log.Debug("photo send failed; sending text card", logx.String("image", img), logx.Err(err))
	}

	return a.SendText(ctx, to, body, &kit.SendOptions{ParseMode: tele.ModeHTML, DisablePreview: true})
}

func cardImage(c kit.Card) string {
	if c.ImageURL != "" {
		return c.ImageURL
	}
	return c.ThumbnailURL
}
