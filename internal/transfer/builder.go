// Package transfer turns feed records into chat notifications.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"transferbot/internal/feed"
	"transferbot/internal/transport"
)

const (
	freeAgent   = "Free agent"
	onlineColor = 0x2ECC71
)

var ErrNilRecord = errors.New("transfer: nil record")

// Images is the subset of the image resolver the builder needs.
type Images interface {
	ByID(ctx context.Context, id string) (string, bool)
	Logo(ctx context.Context, id, slug string) (string, bool)
	TeamURL(slug string) string
}

type Builder struct {
	images Images
	loc    *time.Location
}

// NewBuilder renders timestamps in loc. A nil images disables enrichment and
// team links.
func NewBuilder(images Images, loc *time.Location) *Builder {
	if loc == nil {
		loc = time.UTC
	}
	return &Builder{images: images, loc: loc}
}

func (b *Builder) Location() *time.Location { return b.loc }

// Build renders one record. Image lookups never fail the build; an error
// means the record could not be rendered at all and the caller should send
// FallbackText instead.
func (b *Builder) Build(ctx context.Context, rec *feed.Record, desc feed.Descriptor) (card transport.Card, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transfer: build panic: %v", r)
		}
	}()
	if rec == nil {
		return transport.Card{}, ErrNilRecord
	}

	from := orDefault(rec.FromName, freeAgent)
	to := orDefault(rec.ToName, freeAgent)

	card = transport.Card{
		Title:       fmt.Sprintf("[%s] Transfer: %s", desc.Label, orDefault(rec.Username, unknown)),
		Description: from + " → " + to,
		Color:       desc.Accent,
		Fields: []transport.CardField{
			b.teamField("From", from, rec.FromSlug),
			b.teamField("To", to, rec.ToSlug),
			{Name: "Fee", Value: rec.Amount.String(), Inline: true},
		},
		Footer: FormatWhen(rec.Datetime, b.loc),
	}
	if t, ok := ParseTimestamp(rec.Datetime); ok {
		card.Timestamp = t
	}

	if b.images == nil {
		return card, nil
	}
	if u, ok := b.images.ByID(ctx, rec.Avatar); ok {
		card.ThumbnailURL = u
	}
	if u, ok := b.images.Logo(ctx, rec.ToLogo, rec.ToSlug); ok {
		card.ImageURL = u
	} else if u, ok := b.images.Logo(ctx, rec.FromLogo, rec.FromSlug); ok {
		card.ImageURL = u
	}
	return card, nil
}

func (b *Builder) teamField(name, team, slug string) transport.CardField {
	f := transport.CardField{Name: name, Value: team, Inline: true}
	if slug = strings.TrimSpace(slug); slug != "" && b.images != nil {
		f.URL = b.images.TeamURL(slug)
	}
	return f
}

// FallbackText is the single-line summary sent when a card cannot be built
// or delivered.
func FallbackText(rec *feed.Record, label string, loc *time.Location) string {
	if rec == nil {
		return fmt.Sprintf("[%s] Transfer: %s", label, unknown)
	}
	return fmt.Sprintf("[%s] Transfer: %s — %s → %s • %s",
		label,
		orDefault(rec.Username, unknown),
		orDefault(rec.FromName, freeAgent),
		orDefault(rec.ToName, freeAgent),
		FormatWhen(rec.Datetime, loc),
	)
}

// OnlineCard announces that monitoring started.
func OnlineCard(feeds []feed.Descriptor) transport.Card {
	labels := lo.Map(feeds, func(d feed.Descriptor, _ int) string { return d.Label })
	return transport.Card{
		Title:       "Transfer bot online",
		Description: fmt.Sprintf("Monitoring feeds: %s.", strings.Join(labels, ", ")),
		Color:       onlineColor,
	}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
